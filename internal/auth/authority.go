package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gplanner/pkg/logx"
)

// Authority performs the two token exchanges against the issuing provider.
type Authority interface {
	// Refresh exchanges the credential's refresh token for a new access
	// token. Fails with ErrInvalidGrant (revoked) or ErrUnreachable
	// (transient).
	Refresh(ctx context.Context, c *Credential) (*Credential, error)

	// ExchangeCode performs the one-shot authorization-code exchange.
	ExchangeCode(ctx context.Context, c *Credential, code, redirectURI string) (*Credential, error)
}

// HTTPAuthority talks to an OAuth2 token endpoint over plain form POSTs.
type HTTPAuthority struct {
	http *http.Client
	log  logx.Logger
}

const defaultAuthorityTimeout = 15 * time.Second

func NewHTTPAuthority(timeout time.Duration, log logx.Logger) *HTTPAuthority {
	if timeout <= 0 {
		timeout = defaultAuthorityTimeout
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &HTTPAuthority{http: &http.Client{Timeout: timeout}, log: log}
}

// tokenResponse is the token endpoint's success payload.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope"`
	TokenType    string `json:"token_type"`
}

type tokenError struct {
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

func (a *HTTPAuthority) Refresh(ctx context.Context, c *Credential) (*Credential, error) {
	if !c.Refreshable() {
		return nil, fmt.Errorf("%w: credential is not refreshable", ErrInvalidGrant)
	}
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {c.RefreshToken},
		"client_id":     {c.ClientID},
		"client_secret": {c.ClientSecret},
	}
	tr, err := a.post(ctx, c.TokenEndpoint, form)
	if err != nil {
		return nil, err
	}

	// Mutate-in-place semantics on a copy: the refreshed credential keeps
	// everything the exchange did not reissue.
	next := *c
	next.AccessToken = tr.AccessToken
	if tr.RefreshToken != "" {
		next.RefreshToken = tr.RefreshToken
	}
	if tr.ExpiresIn > 0 {
		next.Expiry = time.Now().UTC().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	if tr.Scope != "" {
		next.Scopes = strings.Fields(tr.Scope)
	}
	return &next, nil
}

func (a *HTTPAuthority) ExchangeCode(ctx context.Context, c *Credential, code, redirectURI string) (*Credential, error) {
	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"client_id":     {c.ClientID},
		"client_secret": {c.ClientSecret},
		"redirect_uri":  {redirectURI},
	}
	tr, err := a.post(ctx, c.TokenEndpoint, form)
	if err != nil {
		return nil, err
	}
	next := *c
	next.AccessToken = tr.AccessToken
	next.RefreshToken = tr.RefreshToken
	if tr.ExpiresIn > 0 {
		next.Expiry = time.Now().UTC().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	if tr.Scope != "" {
		next.Scopes = strings.Fields(tr.Scope)
	}
	return &next, nil
}

func (a *HTTPAuthority) post(ctx context.Context, endpoint string, form url.Values) (*tokenResponse, error) {
	if strings.TrimSpace(endpoint) == "" {
		return nil, fmt.Errorf("%w: token endpoint is empty", ErrInvalidGrant)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: reading token response: %v", ErrUnreachable, err)
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: token endpoint returned %d", ErrUnreachable, resp.StatusCode)
	case resp.StatusCode >= 400:
		var te tokenError
		_ = json.Unmarshal(body, &te)
		if te.Code == "" {
			te.Code = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: %s (%s)", ErrInvalidGrant, te.Code, strings.TrimSpace(te.Description))
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("%w: malformed token response: %v", ErrUnreachable, err)
	}
	if strings.TrimSpace(tr.AccessToken) == "" {
		return nil, fmt.Errorf("%w: token response missing access_token", ErrUnreachable)
	}
	return &tr, nil
}
