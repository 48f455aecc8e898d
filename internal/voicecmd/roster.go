package voicecmd

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// RosterOption is a functional option for [NewRoster].
type RosterOption func(*Roster)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score for a
// phonetically matching participant. Default: 0.70.
func WithPhoneticThreshold(threshold float64) RosterOption {
	return func(r *Roster) { r.phoneticThreshold = threshold }
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score when no participant
// matches phonetically. Default: 0.85.
func WithFuzzyThreshold(threshold float64) RosterOption {
	return func(r *Roster) { r.fuzzyThreshold = threshold }
}

type participant struct {
	name   string
	lower  string
	tokens []string
	codes  map[string]struct{}
}

// Roster resolves spoken names to meeting participants, so that "assign this
// to sara" lands on "Sarah Tesfaye" despite the transcription.
//
// A participant is a phonetic candidate when any Double Metaphone code of a
// spoken word matches one of theirs; candidates are ranked by Jaro-Winkler
// similarity. With no phonetic candidate, plain Jaro-Winkler against every
// participant is tried with a stricter threshold.
//
// A Roster is read-only after construction and safe for concurrent use.
type Roster struct {
	participants      []participant
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// NewRoster creates a Roster over names. Blank names are ignored.
func NewRoster(names []string, opts ...RosterOption) *Roster {
	r := &Roster{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(r)
	}
	for _, n := range names {
		lower := strings.ToLower(strings.TrimSpace(n))
		if lower == "" {
			continue
		}
		tokens := strings.Fields(lower)
		r.participants = append(r.participants, participant{
			name:   strings.TrimSpace(n),
			lower:  lower,
			tokens: tokens,
			codes:  codesForTokens(tokens),
		})
	}
	return r
}

// Len returns the number of participants.
func (r *Roster) Len() int { return len(r.participants) }

// Resolve returns the participant most similar to spoken. When found is
// false, name is spoken unchanged and score is 0.
func (r *Roster) Resolve(spoken string) (name string, score float64, found bool) {
	lower := strings.ToLower(strings.TrimSpace(spoken))
	if lower == "" || len(r.participants) == 0 {
		return spoken, 0, false
	}
	tokens := strings.Fields(lower)
	codes := codesForTokens(tokens)

	var (
		best         string
		bestScore    float64
		bestPhonetic bool
	)
	for _, p := range r.participants {
		s := bestJWScore(tokens, p.tokens, lower, p.lower)
		switch {
		case codesOverlap(codes, p.codes):
			if s >= r.phoneticThreshold && (!bestPhonetic || s > bestScore) {
				best, bestScore, bestPhonetic = p.name, s, true
			}
		case !bestPhonetic:
			if s >= r.fuzzyThreshold && s > bestScore {
				best, bestScore = p.name, s
			}
		}
	}
	if best == "" {
		return spoken, 0, false
	}
	return best, bestScore, true
}

// codesForTokens returns the union of the Double Metaphone codes of tokens.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestJWScore is the highest Jaro-Winkler similarity over the full strings,
// the space-stripped strings and every token pair.
func bestJWScore(inputTokens, candTokens []string, inputFull, candFull string) float64 {
	score := matchr.JaroWinkler(inputFull, candFull, false)

	if len(inputTokens) > 1 || len(candTokens) > 1 {
		if s := matchr.JaroWinkler(strings.Join(inputTokens, ""), strings.Join(candTokens, ""), false); s > score {
			score = s
		}
	}

	for _, it := range inputTokens {
		for _, ct := range candTokens {
			if s := matchr.JaroWinkler(it, ct, false); s > score {
				score = s
			}
		}
	}
	return score
}
