package voicecmd

import (
	"regexp"
	"strings"
)

// Assignment is a request to hand the current action item to someone.
type Assignment struct {
	// Assignee is the spoken name with trailing politeness removed.
	Assignee string
	// Resolved is the roster participant the name resolved to, if a
	// roster was consulted and matched.
	Resolved string
	// Confidence is the roster match score in [0, 1].
	Confidence float64
}

var assignmentPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:re)?assign\b.*?\bto\s+(.+)$`),
	regexp.MustCompile(`(?i)\bgive\b.*?\bto\s+(.+)$`),
	regexp.MustCompile(`(?i)\bmake\s+(.+?)\s+the\s+assignee\b`),
	regexp.MustCompile(`(?i)\bchange\s+(?:the\s+)?assignee\s+to\s+(.+)$`),
}

var politeSuffix = regexp.MustCompile(`(?i)(?:^|[\s,]+)(?:please|thanks|thank\s+you)\s*$`)

// MatchAssignment extracts the assignee name from transcript. The patterns
// are tried in order and the first capture wins.
func MatchAssignment(transcript string) (Assignment, bool) {
	t := strings.TrimSpace(transcript)
	for _, re := range assignmentPatterns {
		m := re.FindStringSubmatch(t)
		if m == nil {
			continue
		}
		if name := cleanName(m[1]); name != "" {
			return Assignment{Assignee: name}, true
		}
	}
	return Assignment{}, false
}

// cleanName strips trailing punctuation and politeness words until neither
// remains.
func cleanName(s string) string {
	for {
		prev := s
		s = strings.TrimRight(s, " \t.,!?;:")
		s = politeSuffix.ReplaceAllString(s, "")
		if s == prev {
			return strings.TrimSpace(s)
		}
	}
}
