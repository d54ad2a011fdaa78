package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
)

const (
	stateCookie = "oauth_state"
	stateMaxAge = 10 * time.Minute
)

var ErrStateMismatch = errors.New("auth: oauth state mismatch")

type oauthState struct {
	Value    string `json:"v"`
	Provider string `json:"p"`
}

// StateManager 用签名加密的 cookie 保存 OAuth state，防止 CSRF。
type StateManager struct {
	sc     *securecookie.SecureCookie
	secure bool
}

// NewStateManager 的 hashKey/blockKey 为 hex 编码；为空时生成随机密钥（重启后进行中的登录失效）。
func NewStateManager(hashKeyHex, blockKeyHex string, secure bool) *StateManager {
	hashKey := decodeKey(hashKeyHex, 32)
	blockKey := decodeKey(blockKeyHex, 32)
	sc := securecookie.New(hashKey, blockKey)
	sc.MaxAge(int(stateMaxAge.Seconds()))
	return &StateManager{sc: sc, secure: secure}
}

func decodeKey(h string, n int) []byte {
	if b, err := hex.DecodeString(h); err == nil && len(b) >= n {
		return b[:n]
	}
	return securecookie.GenerateRandomKey(n)
}

// Issue 生成新的 state 并写入 cookie，返回 state 供拼接授权地址。
func (m *StateManager) Issue(w http.ResponseWriter, provider string) (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	st := oauthState{Value: hex.EncodeToString(buf), Provider: provider}
	encoded, err := m.sc.Encode(stateCookie, st)
	if err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    encoded,
		Path:     "/",
		MaxAge:   int(stateMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return st.Value, nil
}

// Verify 校验回调中的 state 并清除 cookie。
func (m *StateManager) Verify(w http.ResponseWriter, r *http.Request, provider, state string) error {
	cookie, err := r.Cookie(stateCookie)
	if err != nil {
		return ErrStateMismatch
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true, Secure: m.secure})
	var st oauthState
	if err := m.sc.Decode(stateCookie, cookie.Value, &st); err != nil {
		return ErrStateMismatch
	}
	if st.Value == "" || st.Value != state || st.Provider != provider {
		return ErrStateMismatch
	}
	return nil
}
