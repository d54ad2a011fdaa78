package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
	"golang.org/x/oauth2/github"
)

// ProviderIdentity 是第三方登录换取到的已验证邮箱及公开资料。
type ProviderIdentity struct {
	Email     string
	Name      string
	AvatarURL string
}

type Provider interface {
	Name() string
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*ProviderIdentity, error)
}

var ErrEmailUnavailable = errors.New("auth: provider returned no verified email")

type oauthProvider struct {
	name   string
	config *oauth2.Config
	fetch  func(ctx context.Context, client *http.Client) (*ProviderIdentity, error)
}

func (p *oauthProvider) Name() string { return p.name }

func (p *oauthProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

func (p *oauthProvider) Exchange(ctx context.Context, code string) (*ProviderIdentity, error) {
	tok, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging %s code: %w", p.name, err)
	}
	ident, err := p.fetch(ctx, p.config.Client(ctx, tok))
	if err != nil {
		return nil, err
	}
	ident.Email = strings.ToLower(strings.TrimSpace(ident.Email))
	if ident.Email == "" {
		return nil, ErrEmailUnavailable
	}
	return ident, nil
}

const (
	googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
	githubAPIURL      = "https://api.github.com"
)

func NewGoogleProvider(clientID, clientSecret, callbackURL string) Provider {
	return newGoogleProvider(clientID, clientSecret, callbackURL, endpoints.Google, googleUserInfoURL)
}

func newGoogleProvider(clientID, clientSecret, callbackURL string, ep oauth2.Endpoint, userInfoURL string) Provider {
	return &oauthProvider{
		name: "google",
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     ep,
		},
		fetch: func(ctx context.Context, client *http.Client) (*ProviderIdentity, error) {
			var info struct {
				Email         string `json:"email"`
				EmailVerified bool   `json:"email_verified"`
				Name          string `json:"name"`
				Picture       string `json:"picture"`
			}
			if err := getJSON(ctx, client, userInfoURL, &info); err != nil {
				return nil, err
			}
			if !info.EmailVerified {
				return nil, ErrEmailUnavailable
			}
			return &ProviderIdentity{Email: info.Email, Name: info.Name, AvatarURL: info.Picture}, nil
		},
	}
}

func NewGitHubProvider(clientID, clientSecret, callbackURL string) Provider {
	return newGitHubProvider(clientID, clientSecret, callbackURL, github.Endpoint, githubAPIURL)
}

func newGitHubProvider(clientID, clientSecret, callbackURL string, ep oauth2.Endpoint, apiURL string) Provider {
	return &oauthProvider{
		name: "github",
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     ep,
		},
		fetch: func(ctx context.Context, client *http.Client) (*ProviderIdentity, error) {
			var user struct {
				Login     string `json:"login"`
				Name      string `json:"name"`
				AvatarURL string `json:"avatar_url"`
			}
			if err := getJSON(ctx, client, apiURL+"/user", &user); err != nil {
				return nil, err
			}
			// /user 的 email 可能被隐藏，以 /user/emails 中已验证的主邮箱为准。
			var emails []struct {
				Email    string `json:"email"`
				Primary  bool   `json:"primary"`
				Verified bool   `json:"verified"`
			}
			if err := getJSON(ctx, client, apiURL+"/user/emails", &emails); err != nil {
				return nil, err
			}
			ident := &ProviderIdentity{Name: user.Name, AvatarURL: user.AvatarURL}
			if ident.Name == "" {
				ident.Name = user.Login
			}
			for _, e := range emails {
				if e.Primary && e.Verified {
					ident.Email = e.Email
					break
				}
			}
			return ident, nil
		},
	}
}

func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("auth: calling %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("auth: %s returned status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("auth: decoding %s: %w", url, err)
	}
	return nil
}
