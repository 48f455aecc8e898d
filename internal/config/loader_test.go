package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/boardroom/internal/config"
)

const fullYAML = `
server:
  listen_addr: ":9090"
  log_level: debug
  allowed_origins: ["app.example.com"]
capture:
  device: ffmpeg
  input_format: pulse
  input_device: default
  start_timeout: 3s
transcription:
  default_provider: browser
  preference_ttl: 30s
  local:
    name: whisper
    base_url: http://localhost:8081
    language: am
backend:
  kind: supabase
  url: https://abc.supabase.co
  anon_key: anon
  access_token: jwt
functions:
  transcribers:
    - name: openai
      api_key: sk-test
      model: whisper-1
    - name: whisper
      base_url: http://localhost:8081
  max_audio_bytes: 1048576
`

func TestLoadFromReader_Full(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(fullYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Server.ListenAddr != ":9090" || cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Capture.StartTimeout != 3*time.Second || cfg.Capture.InputFormat != "pulse" {
		t.Errorf("capture = %+v", cfg.Capture)
	}
	if cfg.Transcription.DefaultProvider != "browser" || cfg.Transcription.PreferenceTTL != 30*time.Second {
		t.Errorf("transcription = %+v", cfg.Transcription)
	}
	if cfg.Transcription.Local.Language != "am" {
		t.Errorf("local.language = %q", cfg.Transcription.Local.Language)
	}
	if cfg.Backend.Kind != config.BackendSupabase || cfg.Backend.AnonKey != "anon" {
		t.Errorf("backend = %+v", cfg.Backend)
	}
	if len(cfg.Functions.Transcribers) != 2 || cfg.Functions.Transcribers[0].Model != "whisper-1" {
		t.Errorf("functions.transcribers = %+v", cfg.Functions.Transcribers)
	}
	if cfg.Functions.MaxAudioBytes != 1<<20 {
		t.Errorf("max_audio_bytes = %d", cfg.Functions.MaxAudioBytes)
	}
}

func TestLoadFromReader_EmptyUsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Server.ListenAddr != config.DefaultListenAddr {
		t.Errorf("listen_addr = %q", cfg.Server.ListenAddr)
	}
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("log_level = %q", cfg.Server.LogLevel)
	}
	if cfg.Capture.Device != config.DefaultCaptureDevice {
		t.Errorf("capture.device = %q", cfg.Capture.Device)
	}
	if cfg.Transcription.DefaultProvider != config.DefaultProvider {
		t.Errorf("default_provider = %q", cfg.Transcription.DefaultProvider)
	}
	if cfg.Backend.Kind != config.BackendSQLite || cfg.Backend.SQLitePath != config.DefaultSQLitePath {
		t.Errorf("backend = %+v", cfg.Backend)
	}
	if cfg.Functions.MaxAudioBytes != config.DefaultMaxAudioBytes {
		t.Errorf("max_audio_bytes = %d", cfg.Functions.MaxAudioBytes)
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFromReader(strings.NewReader("server:\n  listen_adr: \":1\"\n"))
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
	if !strings.Contains(err.Error(), "listen_adr") {
		t.Errorf("error should name the field, got: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		yaml string
		want []string
	}{
		{
			name: "log level",
			yaml: "server:\n  log_level: loud\n",
			want: []string{"server.log_level"},
		},
		{
			name: "half tls",
			yaml: "server:\n  tls:\n    cert_file: a.pem\n",
			want: []string{"server.tls"},
		},
		{
			name: "default provider",
			yaml: "transcription:\n  default_provider: carrier_pigeon\n",
			want: []string{"transcription.default_provider"},
		},
		{
			name: "negative ttl",
			yaml: "transcription:\n  preference_ttl: -1s\n",
			want: []string{"transcription.preference_ttl"},
		},
		{
			name: "native without model",
			yaml: "transcription:\n  local:\n    name: whisper-native\n",
			want: []string{"transcription.local.model"},
		},
		{
			name: "backend kind",
			yaml: "backend:\n  kind: mongodb\n",
			want: []string{"backend.kind"},
		},
		{
			name: "supabase missing fields",
			yaml: "backend:\n  kind: supabase\n",
			want: []string{"backend.url", "backend.anon_key"},
		},
		{
			name: "postgres dsn",
			yaml: "backend:\n  kind: postgres\n",
			want: []string{"backend.postgres_dsn"},
		},
		{
			name: "transcriber name and duplicate",
			yaml: "functions:\n  transcribers:\n    - model: x\n    - name: openai\n    - name: openai\n",
			want: []string{"functions.transcribers[0].name", "duplicate"},
		},
		{
			name: "max audio",
			yaml: "functions:\n  max_audio_bytes: -5\n",
			want: []string{"functions.max_audio_bytes"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := config.LoadFromReader(strings.NewReader(tt.yaml))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			for _, w := range tt.want {
				if !strings.Contains(err.Error(), w) {
					t.Errorf("error should mention %q, got: %v", w, err)
				}
			}
		})
	}
}

func TestValidate_JoinsAllErrors(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Server:        config.ServerConfig{LogLevel: "loud"},
		Transcription: config.TranscriptionConfig{DefaultProvider: "nope"},
		Backend:       config.BackendConfig{Kind: config.BackendPostgres},
	}
	err := config.Validate(cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	for _, w := range []string{"log_level", "default_provider", "postgres_dsn"} {
		if !strings.Contains(err.Error(), w) {
			t.Errorf("joined error missing %q: %v", w, err)
		}
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "boardroom.yaml")
	if err := os.WriteFile(path, []byte(fullYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.ListenAddr != ":9090" {
		t.Errorf("listen_addr = %q", cfg.Server.ListenAddr)
	}

	if _, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
