package tokenstore

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/aussiebroadwan/invweb/pkg/cryptox"
)

// CookieOptions configures a CookieStore.
type CookieOptions struct {
	Sealer *cryptox.Sealer
	Secure bool
	Now    func() time.Time // defaults to time.Now
}

// CookieStore is a request-scoped Store backed by sealed cookies. Writes are
// visible to later reads on the same store even though the browser only sees
// them on the next request.
type CookieStore struct {
	w    http.ResponseWriter
	r    *http.Request
	opts CookieOptions

	mu      sync.Mutex
	written map[string]*string // nil value = deleted in this request
}

// NewCookieStore returns a Store that reads from r and writes to w.
func NewCookieStore(w http.ResponseWriter, r *http.Request, opts CookieOptions) *CookieStore {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &CookieStore{
		w:       w,
		r:       r,
		opts:    opts,
		written: make(map[string]*string),
	}
}

func (s *CookieStore) Get() Bundle {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Bundle{
		AccessToken:  s.read(AccessTokenCookie),
		RefreshToken: s.read(RefreshTokenCookie),
		IDToken:      s.read(IDTokenCookie),
	}
}

func (s *CookieStore) Set(b Bundle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := []struct {
		name  string
		value string
		ttl   time.Duration
	}{
		{AccessTokenCookie, b.AccessToken, AccessTokenTTL},
		{RefreshTokenCookie, b.RefreshToken, RefreshTokenTTL},
		{IDTokenCookie, b.IDToken, IDTokenTTL},
	}

	for _, e := range entries {
		if e.value == "" {
			s.remove(e.name)
			continue
		}
		if err := s.write(e.name, e.value, e.ttl); err != nil {
			return fmt.Errorf("tokenstore: write %s: %w", e.name, err)
		}
	}
	return nil
}

func (s *CookieStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.remove(AccessTokenCookie)
	s.remove(RefreshTokenCookie)
	s.remove(IDTokenCookie)
	s.remove(StateCookie)
}

func (s *CookieStore) SetState(p PendingAuth) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.opts.Now()
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("tokenstore: encode state: %w", err)
	}
	if err := s.write(StateCookie, string(raw), StateTTL); err != nil {
		return fmt.Errorf("tokenstore: write state: %w", err)
	}
	return nil
}

func (s *CookieStore) ConsumeState() (PendingAuth, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw := s.read(StateCookie)
	s.remove(StateCookie)
	if raw == "" {
		return PendingAuth{}, false
	}

	var p PendingAuth
	if err := json.Unmarshal([]byte(raw), &p); err != nil || p.State == "" {
		return PendingAuth{}, false
	}
	if s.opts.Now().Sub(p.CreatedAt) > StateTTL {
		return PendingAuth{}, false
	}
	return p, true
}

// read returns the opened value of a cookie, preferring this request's writes.
// A cookie that cannot be opened counts as absent.
func (s *CookieStore) read(name string) string {
	if v, ok := s.written[name]; ok {
		if v == nil {
			return ""
		}
		return *v
	}

	c, err := s.r.Cookie(name)
	if err != nil || c.Value == "" {
		return ""
	}
	v, err := s.opts.Sealer.Open(c.Value, name)
	if err != nil {
		return ""
	}
	return v
}

func (s *CookieStore) write(name, value string, ttl time.Duration) error {
	sealed, err := s.opts.Sealer.Seal(value, name)
	if err != nil {
		return err
	}

	c := s.cookie(name, sealed)
	c.MaxAge = int(ttl.Seconds())
	c.Expires = s.opts.Now().Add(ttl)
	http.SetCookie(s.w, c)

	s.written[name] = &value
	return nil
}

func (s *CookieStore) remove(name string) {
	c := s.cookie(name, "")
	c.MaxAge = -1
	c.Expires = time.Unix(0, 0)
	http.SetCookie(s.w, c)

	s.written[name] = nil
}

func (s *CookieStore) cookie(name, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Secure:   s.opts.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}
