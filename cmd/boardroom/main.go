// Command boardroom records executive meetings from the local microphone and
// routes each audio chunk to the transcription provider the caller prefers.
//
// Usage:
//
//	boardroom serve                 HTTP surface: health, metrics, toasts, transcribe-audio
//	boardroom record "Weekly sync"  capture until "stop recording" or Ctrl+C
//	boardroom match "assign this to Sarah"
//	boardroom meeting-id "Weekly sync"
//	boardroom commands
//	boardroom transcripts "Weekly sync"
//	boardroom preference set browser
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "boardroom:", err)
		}
		os.Exit(1)
	}
}
