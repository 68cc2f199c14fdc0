package auth

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// expirySkew treats tokens about to expire as already expired, so a job
// never starts a provider call with a token that dies mid-flight.
const expirySkew = 30 * time.Second

// Credential is a delegated OAuth token set.
//
// A Credential is never deleted, only superseded: refresh mutates the
// token fields and the caller persists the whole value back to every sink.
type Credential struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time // zero means unknown (treated as expired)

	TokenEndpoint string
	ClientID      string
	ClientSecret  string
	Scopes        []string

	Account        string
	UniverseDomain string
}

// ValidAt reports whether the access token can be used at time t.
func (c *Credential) ValidAt(t time.Time) bool {
	if c == nil || strings.TrimSpace(c.AccessToken) == "" {
		return false
	}
	if c.Expiry.IsZero() {
		return false
	}
	return t.Add(expirySkew).Before(c.Expiry)
}

// Refreshable reports whether a refresh exchange can be attempted.
func (c *Credential) Refreshable() bool {
	return c != nil &&
		strings.TrimSpace(c.RefreshToken) != "" &&
		strings.TrimSpace(c.ClientID) != "" &&
		strings.TrimSpace(c.ClientSecret) != ""
}

// blob is the serialized combined form, wire-compatible with the
// "authorized user" JSON that the Google OAuth tooling emits.
type blob struct {
	Token          string   `json:"token"`
	RefreshToken   string   `json:"refresh_token,omitempty"`
	TokenURI       string   `json:"token_uri,omitempty"`
	ClientID       string   `json:"client_id,omitempty"`
	ClientSecret   string   `json:"client_secret,omitempty"`
	Scopes         []string `json:"scopes,omitempty"`
	Expiry         string   `json:"expiry,omitempty"`
	Account        string   `json:"account,omitempty"`
	UniverseDomain string   `json:"universe_domain,omitempty"`
}

// MarshalBlob serializes the credential as the combined JSON blob.
func (c *Credential) MarshalBlob() (string, error) {
	b := blob{
		Token:          c.AccessToken,
		RefreshToken:   c.RefreshToken,
		TokenURI:       c.TokenEndpoint,
		ClientID:       c.ClientID,
		ClientSecret:   c.ClientSecret,
		Scopes:         c.Scopes,
		Account:        c.Account,
		UniverseDomain: c.UniverseDomain,
	}
	if !c.Expiry.IsZero() {
		b.Expiry = c.Expiry.UTC().Format(time.RFC3339)
	}
	out, err := json.Marshal(b)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// ParseBlob decodes a combined JSON blob into a Credential.
//
// A blob that decodes but carries neither an access token nor a refresh
// token has the wrong shape and is rejected.
func ParseBlob(raw string) (*Credential, error) {
	var b blob
	if err := json.Unmarshal([]byte(raw), &b); err != nil {
		return nil, fmt.Errorf("decode credential blob: %w", err)
	}
	if strings.TrimSpace(b.Token) == "" && strings.TrimSpace(b.RefreshToken) == "" {
		return nil, fmt.Errorf("credential blob has neither token nor refresh_token")
	}
	c := &Credential{
		AccessToken:    b.Token,
		RefreshToken:   b.RefreshToken,
		TokenEndpoint:  b.TokenURI,
		ClientID:       b.ClientID,
		ClientSecret:   b.ClientSecret,
		Scopes:         b.Scopes,
		Account:        b.Account,
		UniverseDomain: b.UniverseDomain,
	}
	if b.Expiry != "" {
		exp, err := parseExpiry(b.Expiry)
		if err != nil {
			return nil, fmt.Errorf("credential blob expiry: %w", err)
		}
		c.Expiry = exp
	}
	return c, nil
}

// parseExpiry accepts RFC3339 with or without fractional seconds, and the
// zone-less form that some serializers emit (interpreted as UTC).
func parseExpiry(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.999999", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}
