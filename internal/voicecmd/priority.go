package voicecmd

import "regexp"

// Priority is an action-item priority.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// PriorityChange is a spoken request to change an action item's priority.
type PriorityChange struct {
	Priority Priority
	// Relative is true for "raise/lower the priority" style phrases.
	Relative bool
}

var priorityPatterns = []struct {
	re       *regexp.Regexp
	priority Priority
	relative bool
}{
	{regexp.MustCompile(`(?i)\b(?:increase|raise|bump\s+up)\b.*\bpriority\b|\bescalate\b`), PriorityHigh, true},
	{regexp.MustCompile(`(?i)\b(?:decrease|lower|reduce|drop)\b.*\bpriority\b|\bde-?prioriti[sz]e\b`), PriorityLow, true},
	{regexp.MustCompile(`(?i)\b(?:low|minor|not\s+urgent|not\s+important)\b`), PriorityLow, false},
	{regexp.MustCompile(`(?i)\b(?:high|urgent|important|critical|top)\b`), PriorityHigh, false},
	{regexp.MustCompile(`(?i)\b(?:medium|normal|moderate|regular)\b`), PriorityMedium, false},
}

// MatchPriorityChange extracts a priority from transcript. Relative phrases
// are checked before keywords, and low keywords before high so that
// "not urgent" reads as low.
func MatchPriorityChange(transcript string) (PriorityChange, bool) {
	for _, p := range priorityPatterns {
		if p.re.MatchString(transcript) {
			return PriorityChange{Priority: p.priority, Relative: p.relative}, true
		}
	}
	return PriorityChange{}, false
}
