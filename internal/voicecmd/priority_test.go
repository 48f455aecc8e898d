package voicecmd_test

import (
	"testing"

	"github.com/MrWong99/boardroom/internal/voicecmd"
)

func TestMatchPriorityChange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in       string
		want     voicecmd.Priority
		relative bool
		ok       bool
	}{
		{"make this urgent", voicecmd.PriorityHigh, false, true},
		{"this is critical", voicecmd.PriorityHigh, false, true},
		{"lower the priority", voicecmd.PriorityLow, true, true},
		{"please raise its priority", voicecmd.PriorityHigh, true, true},
		{"escalate this", voicecmd.PriorityHigh, true, true},
		{"deprioritize the audit", voicecmd.PriorityLow, true, true},
		{"set this to medium", voicecmd.PriorityMedium, false, true},
		{"not urgent", voicecmd.PriorityLow, false, true},
		{"it's a minor thing", voicecmd.PriorityLow, false, true},
		{"stop the clock", "", false, false},
		{"", "", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, ok := voicecmd.MatchPriorityChange(tt.in)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if got.Priority != tt.want || got.Relative != tt.relative {
				t.Errorf("got %+v, want {%s %v}", got, tt.want, tt.relative)
			}
		})
	}
}
