package router

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrWong99/boardroom/internal/backend"
)

// Preference selects how a chunk is transcribed.
type Preference int

const (
	// PreferenceRealtime means a separate realtime session transcribes the
	// meeting; routed chunks are ignored.
	PreferenceRealtime Preference = iota
	// PreferenceBrowser transcribes the latest chunk on this machine and
	// persists the result directly.
	PreferenceBrowser
	// PreferenceServer uploads the chunk to the backend transcribe-audio
	// function.
	PreferenceServer
)

// String returns the lower-case preference name.
func (p Preference) String() string {
	switch p {
	case PreferenceRealtime:
		return "realtime"
	case PreferenceBrowser:
		return "browser"
	case PreferenceServer:
		return "server"
	default:
		return fmt.Sprintf("Preference(%d)", int(p))
	}
}

// ParsePreference maps a stored provider string to a [Preference]. The
// backend strings are "openai_realtime" and "lovable_ai" (realtime),
// "browser" (browser) and "openai" (server); the Go names returned by
// String are accepted too. Matching ignores case and surrounding space.
func ParsePreference(s string) (Preference, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "openai_realtime", "lovable_ai", "realtime":
		return PreferenceRealtime, true
	case "browser":
		return PreferenceBrowser, true
	case "openai", "server":
		return PreferenceServer, true
	default:
		return 0, false
	}
}

// PreferenceSource resolves the transcription preference for a user.
type PreferenceSource interface {
	Preference(ctx context.Context, userID string) (Preference, error)
}

// PreferenceSourceFunc adapts a plain function to [PreferenceSource].
type PreferenceSourceFunc func(ctx context.Context, userID string) (Preference, error)

// Preference implements [PreferenceSource].
func (f PreferenceSourceFunc) Preference(ctx context.Context, userID string) (Preference, error) {
	return f(ctx, userID)
}

type cachedPreference struct {
	pref    Preference
	expires time.Time
}

// Preferences is a [PreferenceSource] backed by [backend.Preferences].
//
// With a zero TTL every call hits the backend, so a preference changed in the
// UI takes effect on the next chunk. A positive TTL caches per user. Users
// with nothing stored, an unrecognised value, or no user id at all get the
// default preference.
type Preferences struct {
	src backend.Preferences
	ttl time.Duration
	now func() time.Time

	def atomic.Int64

	mu    sync.Mutex
	cache map[string]cachedPreference
}

var _ PreferenceSource = (*Preferences)(nil)

// NewPreferences creates a Preferences reading from src.
func NewPreferences(src backend.Preferences, def Preference, ttl time.Duration) *Preferences {
	p := &Preferences{
		src:   src,
		ttl:   ttl,
		now:   time.Now,
		cache: make(map[string]cachedPreference),
	}
	p.def.Store(int64(def))
	return p
}

// Default returns the preference used when none is stored.
func (p *Preferences) Default() Preference { return Preference(p.def.Load()) }

// SetDefault replaces the default preference. Cached entries are kept.
func (p *Preferences) SetDefault(def Preference) { p.def.Store(int64(def)) }

// Invalidate drops the cached preference for userID.
func (p *Preferences) Invalidate(userID string) {
	p.mu.Lock()
	delete(p.cache, userID)
	p.mu.Unlock()
}

// Preference implements [PreferenceSource].
func (p *Preferences) Preference(ctx context.Context, userID string) (Preference, error) {
	if userID == "" {
		return p.Default(), nil
	}
	if p.ttl > 0 {
		p.mu.Lock()
		e, ok := p.cache[userID]
		p.mu.Unlock()
		if ok && p.now().Before(e.expires) {
			return e.pref, nil
		}
	}

	raw, err := p.src.TranscriptionPreference(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("router: preference lookup: %w", err)
	}
	pref, ok := ParsePreference(raw)
	if !ok {
		if raw != "" {
			slog.Debug("router: unknown transcription provider, using default", "provider", raw, "default", p.Default())
		}
		pref = p.Default()
	}

	if p.ttl > 0 {
		p.mu.Lock()
		p.cache[userID] = cachedPreference{pref: pref, expires: p.now().Add(p.ttl)}
		p.mu.Unlock()
	}
	return pref, nil
}
