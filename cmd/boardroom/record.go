package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MrWong99/boardroom/internal/app"
	"github.com/MrWong99/boardroom/internal/voicecmd"
)

func newRecordCommand(c *commandContext) *cobra.Command {
	var attendees []string

	cmd := &cobra.Command{
		Use:   "record <meeting>",
		Short: "Record a meeting from the microphone until it is stopped",
		Long: `Record a meeting from the configured capture device.

The meeting may be given as a UUID or as a human-readable name; names are
mapped onto a stable UUID. The recording ends when "stop recording" is spoken
or typed, or on Ctrl+C. Lines typed on stdin are treated like speech, so
"pause recording" and "resume recording" work from the keyboard too.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			application, err := c.newApp(ctx, app.WithAttendees(attendees...))
			if err != nil {
				return err
			}
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				if err := application.Shutdown(sctx); err != nil {
					slog.Error("shutdown error", "err", err)
				}
			}()

			rec, err := application.Recorder()
			if err != nil {
				return err
			}
			handle := strings.Join(args, " ")
			if err := rec.Start(ctx, handle); err != nil {
				return err
			}
			done := rec.Done()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Recording %q as meeting %s.\n", handle, rec.MeetingID())
			fmt.Fprintln(out, `Say or type "stop recording" to finish.`)

			go readTypedCommands(ctx, cmd.InOrStdin(), out, application.Filter())

			select {
			case <-ctx.Done():
				rec.Stop(context.WithoutCancel(ctx))
			case <-done:
			}
			fmt.Fprintln(out, "Recording finished.")
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&attendees, "attendee", nil, "Meeting participant used to resolve spoken assignments (repeatable)")
	return cmd
}

// readTypedCommands feeds each stdin line through the voice command filter
// until ctx ends or stdin closes.
func readTypedCommands(ctx context.Context, in io.Reader, out io.Writer, f *voicecmd.Filter) {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		m, ok, err := f.Check(ctx, line)
		switch {
		case !ok:
			fmt.Fprintf(out, "No command recognised in %q.\n", line)
		case err != nil:
			fmt.Fprintf(out, "%s failed: %v\n", m.Name(), err)
		}
	}
}
