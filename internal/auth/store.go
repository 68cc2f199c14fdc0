package auth

import (
	"strings"
	"sync"
	"time"

	"gplanner/internal/envfile"
	"gplanner/pkg/logx"
)

// Variable names shared by the in-process mirror and the durable env file.
const (
	keyBlob          = "GOOGLE_TOKEN_JSON"
	keyToken         = "GOOGLE_APPLICATION_TOKEN"
	keyRefreshToken  = "GOOGLE_APPLICATION_REFRESH_TOKEN"
	keyClientID      = "GOOGLE_APPLICATION_CLIENT_ID"
	keyClientSecret  = "GOOGLE_APPLICATION_CLIENT_SECRET"
	keyTokenEndpoint = "GOOGLE_APPLICATION_TOKEN_URI"
	keyTokenExpiry   = "GOOGLE_APPLICATION_TOKEN_EXPIRY"
	keyAccount       = "GOOGLE_APPLICATION_ACCOUNT"
	keyUniverse      = "GOOGLE_UNIVERSE_DOMAIN"
)

// StoreConfig is resolved by the config loader; the store itself never
// consults the environment beyond its Vars.
type StoreConfig struct {
	// DefaultTokenEndpoint fills credentials whose source omits one.
	DefaultTokenEndpoint string
	// Scopes are attached to credentials built from discrete fields.
	Scopes []string
}

// Store resolves a normalized Credential from whichever configured source
// is present, and writes refreshed credentials back to every sink.
//
// Source priority is strict: combined blob, then discrete fields, then the
// durable file. The first source yielding a structurally valid payload
// wins, even if the credential later fails validity checks.
type Store struct {
	cfg  StoreConfig
	vars Vars
	file *envfile.File
	log  logx.Logger

	// warnOnce gates the one-shot "source skipped" warnings so a broken
	// blob doesn't spam every scheduler tick.
	warnOnce sync.Map // source name -> struct{}
}

func NewStore(cfg StoreConfig, vars Vars, file *envfile.File, log logx.Logger) *Store {
	if vars == nil {
		vars = OSVars{}
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Store{cfg: cfg, vars: vars, file: file, log: log}
}

// Resolve tries each source in priority order and returns the first
// structurally valid Credential, or ErrNotFound.
func (s *Store) Resolve() (*Credential, error) {
	if cred, ok := s.fromBlob(); ok {
		return s.normalize(cred), nil
	}
	if cred, ok := s.fromDiscrete(s.vars.Lookup, "env"); ok {
		return s.normalize(cred), nil
	}
	if s.file != nil {
		if raw, ok := s.file.Get(keyBlob); ok {
			if cred, err := ParseBlob(raw); err == nil {
				return s.normalize(cred), nil
			} else {
				s.warnSourceOnce("file blob", err)
			}
		}
		if cred, ok := s.fromDiscrete(s.file.Get, "file"); ok {
			return s.normalize(cred), nil
		}
	}
	return nil, ErrNotFound
}

func (s *Store) fromBlob() (*Credential, bool) {
	raw, ok := s.vars.Lookup(keyBlob)
	if !ok {
		return nil, false
	}
	cred, err := ParseBlob(raw)
	if err != nil {
		// Degrade, don't crash: a corrupt blob falls through to the next
		// source. Warn once so the operator notices.
		s.warnSourceOnce("blob", err)
		return nil, false
	}
	return cred, true
}

// fromDiscrete assembles a credential from individual named fields.
// Token, client id and client secret are all required; anything less is
// not a usable payload and the source is skipped.
func (s *Store) fromDiscrete(lookup func(string) (string, bool), source string) (*Credential, bool) {
	token, _ := lookup(keyToken)
	clientID, _ := lookup(keyClientID)
	clientSecret, _ := lookup(keyClientSecret)
	if token == "" || clientID == "" || clientSecret == "" {
		return nil, false
	}

	cred := &Credential{
		AccessToken:  token,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scopes:       append([]string(nil), s.cfg.Scopes...),
	}
	if v, ok := lookup(keyRefreshToken); ok {
		cred.RefreshToken = v
	}
	if v, ok := lookup(keyTokenEndpoint); ok {
		cred.TokenEndpoint = v
	}
	if v, ok := lookup(keyAccount); ok {
		cred.Account = v
	}
	if v, ok := lookup(keyUniverse); ok {
		cred.UniverseDomain = v
	}
	if v, ok := lookup(keyTokenExpiry); ok {
		exp, err := parseExpiry(v)
		if err != nil {
			// Wrong shape in an otherwise usable source: keep the
			// credential but treat the expiry as unknown (= expired).
			s.warnSourceOnce(source+" expiry", err)
		} else {
			cred.Expiry = exp
		}
	}
	return cred, true
}

func (s *Store) normalize(c *Credential) *Credential {
	if strings.TrimSpace(c.TokenEndpoint) == "" {
		c.TokenEndpoint = s.cfg.DefaultTokenEndpoint
	}
	if len(c.Scopes) == 0 {
		c.Scopes = append([]string(nil), s.cfg.Scopes...)
	}
	return c
}

func (s *Store) warnSourceOnce(source string, err error) {
	if _, seen := s.warnOnce.LoadOrStore(source, struct{}{}); seen {
		return
	}
	s.log.Warn("credential source skipped", logx.String("source", source), logx.Err(err))
}

// Persist writes the credential to the in-process mirror and, when
// durable, to the env file. The durable write is best-effort: a failure
// is logged and the in-memory state stays authoritative for the life of
// the process.
func (s *Store) Persist(c *Credential, durable bool) {
	if c == nil {
		return
	}

	pairs := s.pairs(c)
	for _, kv := range pairs {
		s.vars.Set(kv[0], kv[1])
	}

	if !durable || s.file == nil {
		return
	}
	for _, kv := range pairs {
		if err := s.file.Set(kv[0], kv[1]); err != nil {
			s.log.Warn("durable credential write skipped", logx.String("key", kv[0]), logx.Err(err))
			return
		}
	}
	if err := s.file.Save(); err != nil {
		s.log.Warn("durable credential write failed; in-memory state remains authoritative",
			logx.String("path", s.file.Path()), logx.Err(err))
		return
	}
	s.log.Debug("credential persisted", logx.String("path", s.file.Path()))
}

func (s *Store) pairs(c *Credential) [][2]string {
	out := make([][2]string, 0, 8)
	if raw, err := c.MarshalBlob(); err == nil {
		out = append(out, [2]string{keyBlob, raw})
	} else {
		s.log.Warn("credential blob marshal failed", logx.Err(err))
	}
	out = append(out,
		[2]string{keyToken, c.AccessToken},
		[2]string{keyRefreshToken, c.RefreshToken},
		[2]string{keyClientID, c.ClientID},
		[2]string{keyClientSecret, c.ClientSecret},
		[2]string{keyTokenEndpoint, c.TokenEndpoint},
	)
	if !c.Expiry.IsZero() {
		out = append(out, [2]string{keyTokenExpiry, c.Expiry.UTC().Format(time.RFC3339)})
	}
	return out
}
