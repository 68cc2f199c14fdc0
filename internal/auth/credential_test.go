package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialStates(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	valid := &Credential{AccessToken: "at", Expiry: now.Add(time.Hour)}
	assert.True(t, valid.ValidAt(now))

	aboutToExpire := &Credential{AccessToken: "at", Expiry: now.Add(10 * time.Second)}
	assert.False(t, aboutToExpire.ValidAt(now), "tokens inside the skew window count as expired")

	refreshable := &Credential{
		AccessToken: "at", RefreshToken: "rt",
		ClientID: "id", ClientSecret: "sec",
		Expiry: now.Add(-time.Hour),
	}
	assert.False(t, refreshable.ValidAt(now))
	assert.True(t, refreshable.Refreshable())

	dead := &Credential{AccessToken: "at", Expiry: now.Add(-time.Hour)}
	assert.False(t, dead.ValidAt(now))
	assert.False(t, dead.Refreshable())

	var nilCred *Credential
	assert.False(t, nilCred.ValidAt(now))
	assert.False(t, nilCred.Refreshable())
}

func TestBlobRoundTrip(t *testing.T) {
	t.Parallel()
	in := &Credential{
		AccessToken:   "at",
		RefreshToken:  "rt",
		Expiry:        time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC),
		TokenEndpoint: "https://oauth2.googleapis.com/token",
		ClientID:      "cid",
		ClientSecret:  "csec",
		Scopes:        []string{"a", "b"},
		Account:       "user@example.com",
	}
	raw, err := in.MarshalBlob()
	require.NoError(t, err)

	out, err := ParseBlob(raw)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestParseBlobRejectsWrongShape(t *testing.T) {
	t.Parallel()
	_, err := ParseBlob(`{"client_id":"cid"}`)
	require.Error(t, err, "blob without token or refresh_token is malformed")

	_, err = ParseBlob(`not json at all`)
	require.Error(t, err)
}

func TestParseExpiryFormats(t *testing.T) {
	t.Parallel()
	cases := []string{
		"2024-06-01T08:30:00Z",
		"2024-06-01T08:30:00.123456Z",
		"2024-06-01T08:30:00.123456", // zone-less, as python isoformat emits
		"2024-06-01T08:30:00+02:00",
	}
	for _, raw := range cases {
		if _, err := parseExpiry(raw); err != nil {
			t.Fatalf("parseExpiry(%q): %v", raw, err)
		}
	}
	if _, err := parseExpiry("yesterday"); err == nil {
		t.Fatal("expected error for junk timestamp")
	}
}
