// Package identity talks to the external OAuth2 identity provider. The
// login flow hands it an authorization code; it returns the verified
// subject behind that code.
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	authUseCase "github.com/sshdeck/sshdeck/internal/auth/usecase"
	"github.com/sshdeck/sshdeck/internal/config"
	apperrors "github.com/sshdeck/sshdeck/internal/errors"
)

// Client exchanges authorization codes with the provider and resolves the
// subject's identity from its userinfo endpoint.
type Client struct {
	oauth       *oauth2.Config
	userinfoURL string
	timeout     time.Duration
	httpClient  *http.Client
}

// NewClient builds a client from the configured issuer. The issuer is
// expected to expose /oauth/authorize, /oauth/token, and /oauth/userinfo.
func NewClient(cfg *config.Config) (*Client, error) {
	if cfg.ExternalIdentityIssuer == "" {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "external identity issuer is not configured")
	}

	issuer := strings.TrimRight(cfg.ExternalIdentityIssuer, "/")
	return &Client{
		oauth: &oauth2.Config{
			ClientID:     cfg.ExternalIdentityClientID,
			ClientSecret: cfg.ExternalIdentityClientSecret,
			RedirectURL:  cfg.ExternalIdentityRedirectURL,
			Endpoint: oauth2.Endpoint{
				AuthURL:  issuer + "/oauth/authorize",
				TokenURL: issuer + "/oauth/token",
			},
		},
		userinfoURL: issuer + "/oauth/userinfo",
		timeout:     cfg.ExternalIdentityTimeout,
		httpClient:  &http.Client{Timeout: cfg.ExternalIdentityTimeout},
	}, nil
}

// Exchange trades an authorization code for the provider's view of the
// subject.
func (c *Client) Exchange(ctx context.Context, code string) (*authUseCase.ExternalIdentity, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	token, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to exchange authorization code")
	}

	return c.userinfo(ctx, token)
}

// userinfo resolves the subject behind an access token.
func (c *Client) userinfo(ctx context.Context, token *oauth2.Token) (*authUseCase.ExternalIdentity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userinfoURL, nil)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to build userinfo request")
	}
	token.SetAuthHeader(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to call userinfo endpoint")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.Wrapf(apperrors.ErrUnauthorized,
			"userinfo endpoint returned %d", resp.StatusCode)
	}

	var payload struct {
		Subject string `json:"sub"`
		Name    string `json:"name"`
		Email   string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, apperrors.Wrap(err, "failed to decode userinfo response")
	}
	if payload.Subject == "" {
		return nil, apperrors.Wrap(apperrors.ErrUnauthorized, "userinfo response carries no subject")
	}

	name := payload.Name
	if name == "" {
		name = payload.Email
	}
	if name == "" {
		name = fmt.Sprintf("user-%s", payload.Subject)
	}

	return &authUseCase.ExternalIdentity{
		Subject: payload.Subject,
		Name:    name,
	}, nil
}
