package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt":     {"whisper", "whisper-native", "openai"},
	"capture": {"ffmpeg"},
}

// ValidPreferences lists the transcription preference strings accepted by
// transcription.default_provider.
var ValidPreferences = []string{"openai_realtime", "lovable_ai", "realtime", "browser", "openai", "server"}

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied.
// It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and validates
// the result. An empty document yields the defaults.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	// Capture
	validateProviderName("capture", cfg.Capture.Device)
	if cfg.Capture.StartTimeout < 0 {
		errs = append(errs, fmt.Errorf("capture.start_timeout %s must not be negative", cfg.Capture.StartTimeout))
	}

	// Transcription
	if p := cfg.Transcription.DefaultProvider; p != "" && !slices.Contains(ValidPreferences, p) {
		errs = append(errs, fmt.Errorf("transcription.default_provider %q is invalid; valid values: %v", p, ValidPreferences))
	}
	if cfg.Transcription.PreferenceTTL < 0 {
		errs = append(errs, fmt.Errorf("transcription.preference_ttl %s must not be negative", cfg.Transcription.PreferenceTTL))
	}
	validateProviderName("stt", cfg.Transcription.Local.Name)
	if cfg.Transcription.Local.Name == "whisper-native" && cfg.Transcription.Local.Model == "" {
		errs = append(errs, errors.New("transcription.local.model is required for whisper-native"))
	}

	// Backend
	b := cfg.Backend
	switch {
	case b.Kind == "":
	case !b.Kind.IsValid():
		errs = append(errs, fmt.Errorf("backend.kind %q is invalid; valid values: supabase, postgres, sqlite", b.Kind))
	case b.Kind == BackendSupabase:
		if b.URL == "" {
			errs = append(errs, errors.New("backend.url is required for the supabase backend"))
		}
		if b.AnonKey == "" {
			errs = append(errs, errors.New("backend.anon_key is required for the supabase backend"))
		}
		if b.AccessToken == "" {
			slog.Warn("backend.access_token is empty; recordings will use transcription.default_provider")
		}
	case b.Kind == BackendPostgres:
		if b.PostgresDSN == "" {
			errs = append(errs, errors.New("backend.postgres_dsn is required for the postgres backend"))
		}
	case b.Kind == BackendSQLite:
		if b.SQLitePath == "" {
			errs = append(errs, errors.New("backend.sqlite_path is required for the sqlite backend"))
		}
	}

	// Functions
	if cfg.Functions.MaxAudioBytes < 0 {
		errs = append(errs, fmt.Errorf("functions.max_audio_bytes %d must not be negative", cfg.Functions.MaxAudioBytes))
	}
	seen := make(map[string]int, len(cfg.Functions.Transcribers))
	for i, t := range cfg.Functions.Transcribers {
		prefix := fmt.Sprintf("functions.transcribers[%d]", i)
		if t.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			continue
		}
		key := t.Name + "/" + t.Model
		if prev, ok := seen[key]; ok {
			errs = append(errs, fmt.Errorf("%s %q is a duplicate of functions.transcribers[%d]", prefix, key, prev))
		}
		seen[key] = i
		validateProviderName("stt", t.Name)
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
