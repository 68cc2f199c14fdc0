package auth

import (
	"os"
	"strings"
	"sync"
)

// Vars abstracts the process-wide in-memory configuration the credential
// store reads from and writes to. Components never touch os.Getenv
// directly; the one implementation backed by the process environment is
// constructed at startup, and tests use MapVars.
type Vars interface {
	Lookup(key string) (string, bool)
	Set(key, value string)
}

// OSVars is backed by the process environment.
type OSVars struct{}

func (OSVars) Lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

func (OSVars) Set(key, value string) { _ = os.Setenv(key, value) }

// MapVars is an in-memory Vars for tests.
type MapVars struct {
	mu sync.Mutex
	m  map[string]string
}

func NewMapVars(m map[string]string) *MapVars {
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return &MapVars{m: cp}
}

func (v *MapVars) Lookup(key string) (string, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	s, ok := v.m[key]
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}

func (v *MapVars) Set(key, value string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.m[key] = value
}
