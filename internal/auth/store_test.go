package auth

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gplanner/internal/envfile"
	"gplanner/pkg/logx"
)

func testStoreConfig() StoreConfig {
	return StoreConfig{
		DefaultTokenEndpoint: "https://oauth2.googleapis.com/token",
		Scopes:               []string{"scope-a"},
	}
}

func mustBlob(t *testing.T, c *Credential) string {
	t.Helper()
	raw, err := c.MarshalBlob()
	require.NoError(t, err)
	return raw
}

func TestResolveBlobWinsOverDiscreteFields(t *testing.T) {
	t.Parallel()
	blobCred := &Credential{AccessToken: "blob-token", RefreshToken: "blob-rt", ClientID: "cid", ClientSecret: "cs",
		Expiry: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)}
	vars := NewMapVars(map[string]string{
		keyBlob:         mustBlob(t, blobCred),
		keyToken:        "discrete-token",
		keyClientID:     "cid2",
		keyClientSecret: "cs2",
	})

	st := NewStore(testStoreConfig(), vars, nil, logx.Nop())
	got, err := st.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "blob-token", got.AccessToken, "blob source has priority")
}

func TestResolveMalformedBlobFallsThrough(t *testing.T) {
	t.Parallel()
	vars := NewMapVars(map[string]string{
		keyBlob:         "{this is not json",
		keyToken:        "discrete-token",
		keyClientID:     "cid",
		keyClientSecret: "cs",
	})
	st := NewStore(testStoreConfig(), vars, nil, logx.Nop())
	got, err := st.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "discrete-token", got.AccessToken, "undecodable blob must degrade to the next source")
	assert.Equal(t, "https://oauth2.googleapis.com/token", got.TokenEndpoint, "default endpoint filled in")
	assert.Equal(t, []string{"scope-a"}, got.Scopes)
}

func TestResolveDiscreteRequiresClientIdentity(t *testing.T) {
	t.Parallel()
	vars := NewMapVars(map[string]string{keyToken: "tok"}) // no client id/secret
	st := NewStore(testStoreConfig(), vars, nil, logx.Nop())
	_, err := st.Resolve()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveFileFallback(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), ".env")
	body := "GOOGLE_APPLICATION_TOKEN=file-token\n" +
		"GOOGLE_APPLICATION_CLIENT_ID=cid\n" +
		"GOOGLE_APPLICATION_CLIENT_SECRET=cs\n" +
		"GOOGLE_APPLICATION_REFRESH_TOKEN=rt\n" +
		"GOOGLE_APPLICATION_TOKEN_EXPIRY=2030-01-01T00:00:00Z\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	file, err := envfile.Load(path)
	require.NoError(t, err)

	st := NewStore(testStoreConfig(), NewMapVars(nil), file, logx.Nop())
	got, err := st.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "file-token", got.AccessToken)
	assert.Equal(t, "rt", got.RefreshToken)
	assert.Equal(t, 2030, got.Expiry.Year())
}

func TestResolveNothingConfigured(t *testing.T) {
	t.Parallel()
	st := NewStore(testStoreConfig(), NewMapVars(nil), nil, logx.Nop())
	_, err := st.Resolve()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPersistWritesAllSinks(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("KEEP_ME=1\n"), 0o600))
	file, err := envfile.Load(path)
	require.NoError(t, err)

	vars := NewMapVars(nil)
	st := NewStore(testStoreConfig(), vars, file, logx.Nop())

	cred := &Credential{
		AccessToken: "new-at", RefreshToken: "new-rt",
		ClientID: "cid", ClientSecret: "cs",
		TokenEndpoint: "https://oauth2.googleapis.com/token",
		Expiry:        time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	st.Persist(cred, true)

	// In-memory mirror updated.
	if v, _ := vars.Lookup(keyToken); v != "new-at" {
		t.Fatalf("vars token = %q", v)
	}
	// Durable sink rewritten, unknown key preserved.
	out, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(out), "KEEP_ME=1")
	assert.Contains(t, string(out), "GOOGLE_APPLICATION_TOKEN=new-at")

	// A fresh store over the same sinks resolves the persisted credential.
	st2 := NewStore(testStoreConfig(), vars, file, logx.Nop())
	got, err := st2.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "new-at", got.AccessToken)
}

func TestPersistInMemoryOnly(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), ".env")
	file, err := envfile.Load(path)
	require.NoError(t, err)

	vars := NewMapVars(nil)
	st := NewStore(testStoreConfig(), vars, file, logx.Nop())
	st.Persist(&Credential{AccessToken: "mem-only", ClientID: "cid", ClientSecret: "cs"}, false)

	if v, _ := vars.Lookup(keyToken); v != "mem-only" {
		t.Fatalf("vars token = %q", v)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("durable sink should not have been written, stat err = %v", err)
	}
}
