package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrWong99/boardroom/internal/voicecmd"
	"github.com/MrWong99/boardroom/pkg/meetingid"
)

// matchOutput is the JSON shape of `boardroom match --json`.
type matchOutput struct {
	Text       string  `json:"text"`
	Matched    bool    `json:"matched"`
	Kind       string  `json:"kind,omitempty"`
	Name       string  `json:"name,omitempty"`
	Action     string  `json:"action,omitempty"`
	Category   string  `json:"category,omitempty"`
	Dictation  string  `json:"dictation,omitempty"`
	Content    string  `json:"content,omitempty"`
	Assignee   string  `json:"assignee,omitempty"`
	Resolved   string  `json:"resolved,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Priority   string  `json:"priority,omitempty"`
	Relative   bool    `json:"relative,omitempty"`
}

func newMatchOutput(text string, m voicecmd.Match, ok bool) matchOutput {
	out := matchOutput{Text: strings.TrimSpace(text), Matched: ok}
	if !ok {
		return out
	}
	out.Kind = string(m.Kind)
	out.Name = m.Name()
	switch m.Kind {
	case voicecmd.KindCommand:
		out.Action = string(m.Command.Action)
		out.Category = string(m.Command.Category)
	case voicecmd.KindDictation:
		out.Dictation = string(m.Dictation.Kind)
		out.Content = m.Dictation.Content
	case voicecmd.KindAssignment:
		out.Assignee = m.Assignment.Assignee
		out.Resolved = m.Assignment.Resolved
		out.Confidence = m.Assignment.Confidence
	case voicecmd.KindPriority:
		out.Priority = string(m.Priority.Priority)
		out.Relative = m.Priority.Relative
	}
	return out
}

func newMatchCommand() *cobra.Command {
	var attendees []string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "match <transcript>",
		Short: "Show which voice command a transcript would trigger",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []voicecmd.FilterOption
			if len(attendees) > 0 {
				opts = append(opts, voicecmd.WithRoster(voicecmd.NewRoster(attendees)))
			}
			text := strings.Join(args, " ")
			m, ok := voicecmd.NewFilter(nil, opts...).Match(text)
			res := newMatchOutput(text, m, ok)
			if jsonOut {
				return writeJSON(cmd, res)
			}

			w := cmd.OutOrStdout()
			if !ok {
				fmt.Fprintln(w, "no match")
				return nil
			}
			fmt.Fprintf(w, "%s: %s\n", res.Kind, res.Name)
			switch m.Kind {
			case voicecmd.KindDictation:
				fmt.Fprintf(w, "content: %s\n", res.Content)
			case voicecmd.KindAssignment:
				fmt.Fprintf(w, "assignee: %s\n", res.Assignee)
				if res.Resolved != "" {
					fmt.Fprintf(w, "resolved: %s (%.2f)\n", res.Resolved, res.Confidence)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&attendees, "attendee", nil, "Meeting participant used to resolve assignments (repeatable)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON")
	return cmd
}

func newMeetingIDCommand() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "meeting-id <handle>...",
		Short: "Print the meeting UUID a handle maps to",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			type row struct {
				Handle    string `json:"handle"`
				MeetingID string `json:"meeting_id"`
				Derived   bool   `json:"derived"`
			}
			rows := make([]row, 0, len(args))
			for _, h := range args {
				rows = append(rows, row{Handle: h, MeetingID: meetingid.Normalize(h), Derived: !meetingid.IsUUID(h)})
			}
			if jsonOut {
				return writeJSON(cmd, rows)
			}
			for _, r := range rows {
				fmt.Fprintln(cmd.OutOrStdout(), r.MeetingID)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON")
	return cmd
}

func newCommandsCommand() *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "commands",
		Short: "List the recognised voice commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var rows [][]string
			for _, c := range voicecmd.Commands() {
				if category != "" && !strings.EqualFold(string(c.Category), category) {
					continue
				}
				rows = append(rows, []string{string(c.Category), string(c.Action), strings.Join(c.Phrases, "\n")})
			}
			if len(rows) == 0 {
				return fmt.Errorf("no commands in category %q", category)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Category", "Action", "Phrases"}, rows, nil))
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "Only list one category (recording, actions, meeting, navigation, dictation)")
	return cmd
}
