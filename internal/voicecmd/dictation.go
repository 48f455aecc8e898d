package voicecmd

import "strings"

// DictationKind is what a dictated line should become.
type DictationKind string

const (
	DictationAction   DictationKind = "action"
	DictationDecision DictationKind = "decision"
	DictationNote     DictationKind = "note"
)

// Dictation is a dictated line. Content is the transcript as spoken,
// prefix included, with its original casing.
type Dictation struct {
	Kind    DictationKind
	Content string
}

var dictationPrefixes = []struct {
	kind     DictationKind
	prefixes []string
}{
	{DictationAction, []string{"action item:", "add action:", "action:", "todo:", "task:", "ተግባር:"}},
	{DictationDecision, []string{"decision:", "add decision:", "we decided:", "ውሳኔ:"}},
	{DictationNote, []string{"note:", "add note:", "ማስታወሻ:"}},
}

// MatchDictation reports whether transcript starts with a dictation prefix.
// The check ignores case and leading space; the first matching prefix wins.
func MatchDictation(transcript string) (Dictation, bool) {
	t := strings.ToLower(strings.TrimLeft(transcript, " \t\r\n"))
	if t == "" {
		return Dictation{}, false
	}
	for _, group := range dictationPrefixes {
		for _, p := range group.prefixes {
			if strings.HasPrefix(t, p) {
				return Dictation{Kind: group.kind, Content: transcript}, true
			}
		}
	}
	return Dictation{}, false
}
