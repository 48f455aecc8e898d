// Package voicecmd recognises spoken meeting commands in transcript text.
//
// The matchers are pure functions over static, immutable tables and are safe
// for concurrent use:
//
//   - [MatchCommand] maps a transcript to a [Command] from the bilingual
//     (English and Amharic) phrase table.
//   - [MatchDictation] detects dictated action items, decisions and notes by
//     prefix.
//   - [MatchAssignment] extracts the assignee from "assign ... to <name>"
//     style phrases.
//   - [MatchPriorityChange] extracts a priority from keywords or relative
//     phrases such as "raise the priority".
//
// [Filter] strings the matchers together and dispatches the first match to a
// [Handler].
package voicecmd

import (
	"slices"
	"strings"
)

// Category groups commands by the part of the application they drive.
type Category string

const (
	CategoryRecording  Category = "recording"
	CategoryActions    Category = "actions"
	CategoryMeeting    Category = "meeting"
	CategoryNavigation Category = "navigation"
	CategoryDictation  Category = "dictation"
)

// Action identifies what a command does.
type Action string

const (
	ActionStartRecording  Action = "startRecording"
	ActionStopRecording   Action = "stopRecording"
	ActionPauseRecording  Action = "pauseRecording"
	ActionResumeRecording Action = "resumeRecording"

	ActionAddActionItem Action = "addActionItem"
	ActionMarkComplete  Action = "markComplete"

	ActionNextAgendaItem     Action = "nextAgendaItem"
	ActionPreviousAgendaItem Action = "previousAgendaItem"
	ActionEndMeeting         Action = "endMeeting"
	ActionAddDecision        Action = "addDecision"

	ActionGoToDashboard   Action = "goToDashboard"
	ActionGoToCalendar    Action = "goToCalendar"
	ActionGoToActionItems Action = "goToActionItems"

	ActionStartDictation Action = "startDictation"
	ActionStopDictation  Action = "stopDictation"
)

// Command is one entry of the command table.
type Command struct {
	Action   Action
	Category Category
	// Phrases are the lower-case spoken variants, English first.
	Phrases []string
}

// commands is matched in order; earlier entries win.
var commands = []Command{
	{ActionStartRecording, CategoryRecording, []string{"start recording", "begin recording", "ጀምር መቅረጽ", "መቅረጽ ጀምር", "ቀረጻ ጀምር"}},
	{ActionStopRecording, CategoryRecording, []string{"stop recording", "አቁም መቅረጽ", "መቅረጽ አቁም", "ቀረጻ አቁም"}},
	{ActionPauseRecording, CategoryRecording, []string{"pause recording", "ለአፍታ አቁም"}},
	{ActionResumeRecording, CategoryRecording, []string{"resume recording", "continue recording", "ቀጥል መቅረጽ", "መቅረጽ ቀጥል"}},

	{ActionAddActionItem, CategoryActions, []string{"add action item", "new action item", "create action item", "ተግባር ጨምር", "አዲስ ተግባር"}},
	{ActionMarkComplete, CategoryActions, []string{"mark as complete", "mark complete", "mark as done", "ተጠናቋል"}},

	{ActionNextAgendaItem, CategoryMeeting, []string{"next agenda item", "next item", "ቀጣይ አጀንዳ", "ቀጣዩ ነጥብ"}},
	{ActionPreviousAgendaItem, CategoryMeeting, []string{"previous agenda item", "previous item", "ያለፈው አጀንዳ", "ቀዳሚ ነጥብ"}},
	{ActionEndMeeting, CategoryMeeting, []string{"end meeting", "close meeting", "finish meeting", "ስብሰባውን ጨርስ", "ስብሰባ አብቃ"}},
	{ActionAddDecision, CategoryMeeting, []string{"add decision", "record decision", "new decision", "ውሳኔ ጨምር", "ውሳኔ መዝግብ"}},

	{ActionGoToDashboard, CategoryNavigation, []string{"go to dashboard", "open dashboard", "show dashboard", "ወደ ዳሽቦርድ ሂድ"}},
	{ActionGoToCalendar, CategoryNavigation, []string{"go to calendar", "open calendar", "show calendar", "ወደ ቀን መቁጠሪያ ሂድ"}},
	{ActionGoToActionItems, CategoryNavigation, []string{"go to action items", "open action items", "show action items", "ወደ ተግባራት ሂድ"}},

	{ActionStartDictation, CategoryDictation, []string{"start dictation", "begin dictation", "ቃል መጻፍ ጀምር"}},
	{ActionStopDictation, CategoryDictation, []string{"stop dictation", "end dictation", "ቃል መጻፍ አቁም"}},
}

// Commands returns a copy of the command table in match order.
func Commands() []Command {
	out := make([]Command, len(commands))
	for i, c := range commands {
		c.Phrases = slices.Clone(c.Phrases)
		out[i] = c
	}
	return out
}

// normalize lower-cases and trims a transcript.
func normalize(transcript string) string {
	return strings.ToLower(strings.TrimSpace(transcript))
}

// MatchCommand returns the first command whose phrase occurs in transcript,
// or whose phrase contains the whole transcript. The two-way check tolerates
// speech-to-text padding ("please start recording now") and truncation
// ("start record"). Empty input never matches.
func MatchCommand(transcript string) (Command, bool) {
	t := normalize(transcript)
	if t == "" {
		return Command{}, false
	}
	for _, c := range commands {
		for _, p := range c.Phrases {
			if strings.Contains(t, p) || strings.Contains(p, t) {
				c.Phrases = slices.Clone(c.Phrases)
				return c, true
			}
		}
	}
	return Command{}, false
}
