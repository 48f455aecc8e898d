package voicecmd_test

import (
	"testing"

	"github.com/MrWong99/boardroom/internal/voicecmd"
)

func TestMatchAssignment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"assign this task to Sarah, thanks", "Sarah", true},
		{"Assign it to Dawit Bekele please.", "Dawit Bekele", true},
		{"reassign the report to Hanna", "Hanna", true},
		{"give this one to Abebe!", "Abebe", true},
		{"make Meron the assignee", "Meron", true},
		{"change the assignee to Yonas, thank you", "Yonas", true},
		{"change assignee to Tigist", "Tigist", true},
		{"assign this to please", "", false},
		{"the budget looks fine", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, ok := voicecmd.MatchAssignment(tt.in)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v (got %+v)", ok, tt.ok, got)
			}
			if got.Assignee != tt.want {
				t.Errorf("Assignee = %q, want %q", got.Assignee, tt.want)
			}
			if got.Resolved != "" {
				t.Errorf("Resolved = %q without a roster", got.Resolved)
			}
		})
	}
}
