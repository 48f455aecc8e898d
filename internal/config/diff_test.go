package config_test

import (
	"slices"
	"testing"
	"time"

	"github.com/MrWong99/boardroom/internal/config"
)

func baseConfig() *config.Config {
	cfg := &config.Config{
		Functions: config.FunctionsConfig{
			Transcribers: []config.ProviderEntry{{Name: "openai", Model: "whisper-1"}},
		},
	}
	config.ApplyDefaults(cfg)
	return cfg
}

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()

	d := config.Diff(baseConfig(), baseConfig())
	if d.Changed() {
		t.Errorf("Diff of equal configs = %+v", d)
	}
}

func TestDiff_LiveChanges(t *testing.T) {
	t.Parallel()

	old, cur := baseConfig(), baseConfig()
	cur.Server.LogLevel = config.LogDebug
	cur.Transcription.DefaultProvider = "browser"

	d := config.Diff(old, cur)
	if !d.LogLevelChanged || d.NewLogLevel != config.LogDebug {
		t.Errorf("log level diff = %+v", d)
	}
	if !d.DefaultProviderChanged || d.NewDefaultProvider != "browser" {
		t.Errorf("default provider diff = %+v", d)
	}
	if len(d.Restart) != 0 {
		t.Errorf("Restart = %v, want none for live-only changes", d.Restart)
	}
}

func TestDiff_RestartSections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   []string
	}{
		{"listen addr", func(c *config.Config) { c.Server.ListenAddr = ":1" }, []string{"server"}},
		{"origins", func(c *config.Config) { c.Server.AllowedOrigins = []string{"x"} }, []string{"server"}},
		{"capture", func(c *config.Config) { c.Capture.InputDevice = "hw:1" }, []string{"capture"}},
		{"ttl", func(c *config.Config) { c.Transcription.PreferenceTTL = time.Minute }, []string{"transcription"}},
		{"local options", func(c *config.Config) { c.Transcription.Local.Options = map[string]any{"k": 1} }, []string{"transcription"}},
		{"backend", func(c *config.Config) { c.Backend.SQLitePath = "other.db" }, []string{"backend"}},
		{"functions", func(c *config.Config) { c.Functions.Transcribers[0].Model = "gpt-4o-transcribe" }, []string{"functions"}},
		{"several", func(c *config.Config) {
			c.Capture.FFmpegPath = "/opt/ffmpeg"
			c.Backend.UserID = "u"
		}, []string{"capture", "backend"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			old, cur := baseConfig(), baseConfig()
			tt.mutate(cur)
			d := config.Diff(old, cur)
			if !slices.Equal(d.Restart, tt.want) {
				t.Errorf("Restart = %v, want %v", d.Restart, tt.want)
			}
			if d.LogLevelChanged || d.DefaultProviderChanged {
				t.Errorf("unexpected live change: %+v", d)
			}
			if !d.Changed() {
				t.Error("Changed() = false")
			}
		})
	}
}
