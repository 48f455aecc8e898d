package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrWong99/boardroom/internal/app"
)

func newTranscriptsCommand(c *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "transcripts <meeting>",
		Short: "List the stored transcriptions of a meeting",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(a *app.App) error {
				list, err := a.Transcriptions(cmd.Context(), strings.Join(args, " "))
				if err != nil {
					return err
				}

				if jsonOut {
					type row struct {
						ID        string    `json:"id"`
						MeetingID string    `json:"meeting_id"`
						Content   string    `json:"content"`
						Timestamp time.Time `json:"timestamp"`
						Speaker   string    `json:"speaker"`
					}
					rows := make([]row, 0, len(list))
					for _, t := range list {
						rows = append(rows, row{t.ID, t.MeetingID, t.Content, t.Timestamp, t.Speaker})
					}
					return writeJSON(cmd, rows)
				}

				if len(list) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "no transcriptions")
					return nil
				}
				rows := make([][]string, 0, len(list))
				for _, t := range list {
					rows = append(rows, []string{t.Timestamp.Local().Format(time.DateTime), t.Speaker, t.Content})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Time", "Speaker", "Content"}, rows, []int{0, 0, 80}))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON")
	return cmd
}

func newPreferenceCommand(c *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preference",
		Short: "Manage the current user's transcription preference",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set <provider>",
		Short: "Store the transcription preference (browser, openai, openai_realtime, lovable_ai)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(a *app.App) error {
				if err := a.SetPreference(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "transcription preference set to %s\n", strings.ToLower(strings.TrimSpace(args[0])))
				return nil
			})
		},
	})
	return cmd
}

// withApp runs fn against a freshly wired application and shuts it down.
func (c *commandContext) withApp(ctx context.Context, fn func(*app.App) error) error {
	a, err := c.newApp(ctx)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.Shutdown(sctx); err != nil {
			slog.Warn("shutdown error", "err", err)
		}
	}()
	return fn(a)
}
