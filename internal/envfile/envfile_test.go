package envfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()
	f, err := Load(filepath.Join(t.TempDir(), "nope.env"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := f.Get("ANYTHING"); ok {
		t.Fatal("empty file should have no keys")
	}
}

func TestRewritePreservesUnknownKeysAndComments(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), ".env")
	body := "# gplanner secrets\nUNRELATED_KEY=keepme\n\nGOOGLE_APPLICATION_TOKEN=old\nTRAILING=1\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("seed: %v", err)
	}

	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := f.Set("GOOGLE_APPLICATION_TOKEN", "new"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := f.Set("GOOGLE_APPLICATION_REFRESH_TOKEN", "r1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := f.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	out, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	got := string(out)
	for _, want := range []string{
		"# gplanner secrets",
		"UNRELATED_KEY=keepme",
		"GOOGLE_APPLICATION_TOKEN=new",
		"GOOGLE_APPLICATION_REFRESH_TOKEN=r1",
		"TRAILING=1",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("rewritten file missing %q:\n%s", want, got)
		}
	}
	// Order: comment first, unrelated key before the rewritten token.
	if strings.Index(got, "UNRELATED_KEY") > strings.Index(got, "GOOGLE_APPLICATION_TOKEN") {
		t.Fatalf("line order not preserved:\n%s", got)
	}
}

func TestGetUnquotesValues(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("A=\"with space\"\nB='single'\n"), 0o600); err != nil {
		t.Fatalf("seed: %v", err)
	}
	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if v, _ := f.Get("A"); v != "with space" {
		t.Fatalf("A = %q", v)
	}
	if v, _ := f.Get("B"); v != "single" {
		t.Fatalf("B = %q", v)
	}
}

func TestSetRejectsNewlines(t *testing.T) {
	t.Parallel()
	f, err := Load(filepath.Join(t.TempDir(), ".env"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := f.Set("K", "a\nb"); err == nil {
		t.Fatal("expected error for newline in value")
	}
}
