package server

import (
	"errors"
	"net/http"
	"net/url"

	"stackit/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func (h *Handler) provider(c *gin.Context) (auth.Provider, bool) {
	p, ok := h.providers[c.Param("provider")]
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "unknown provider"})
	}
	return p, ok
}

// OAuthStart 写入签名的 state cookie 并跳转到第三方授权页。
func (h *Handler) OAuthStart(c *gin.Context) {
	p, ok := h.provider(c)
	if !ok {
		return
	}
	state, err := h.state.Issue(c.Writer, p.Name())
	if err != nil {
		writeError(c, "oauth state", err)
		return
	}
	c.Redirect(http.StatusFound, p.AuthURL(state))
}

// OAuthCallback 校验 state、换取身份并带着会话 token 跳回前端。
func (h *Handler) OAuthCallback(c *gin.Context) {
	p, ok := h.provider(c)
	if !ok {
		return
	}
	if err := h.state.Verify(c.Writer, c.Request, p.Name(), c.Query("state")); err != nil {
		h.oauthFailed(c, p.Name(), "state_mismatch", err)
		return
	}
	code := c.Query("code")
	if code == "" {
		h.oauthFailed(c, p.Name(), "missing_code", errors.New("missing code"))
		return
	}
	identity, err := p.Exchange(c.Request.Context(), code)
	if err != nil {
		h.oauthFailed(c, p.Name(), "exchange_failed", err)
		return
	}
	res, err := h.svc.Users.OAuthLogin(c.Request.Context(), *identity)
	if err != nil {
		h.oauthFailed(c, p.Name(), "login_failed", err)
		return
	}
	c.Redirect(http.StatusFound, h.frontendURL+"/oauth/callback?token="+url.QueryEscape(res.Token))
}

func (h *Handler) oauthFailed(c *gin.Context, provider, reason string, err error) {
	log.Warn().Err(err).Str("provider", provider).Str("reason", reason).Msg("oauth callback")
	c.Redirect(http.StatusFound, h.frontendURL+"/oauth/callback?error="+url.QueryEscape(reason))
}
