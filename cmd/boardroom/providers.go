package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/MrWong99/boardroom/internal/config"
	"github.com/MrWong99/boardroom/pkg/audio"
	"github.com/MrWong99/boardroom/pkg/audio/ffmpeg"
	"github.com/MrWong99/boardroom/pkg/provider/stt"
	"github.com/MrWong99/boardroom/pkg/provider/stt/openai"
	"github.com/MrWong99/boardroom/pkg/provider/stt/whisper"
)

// defaultOpenAIModel is used when an openai entry names no model.
const defaultOpenAIModel = "whisper-1"

// builtinProviders names the implementations that ship with boardroom. Used
// for startup logging.
var builtinProviders = map[string][]string{
	"stt":     {"whisper", "whisper-native", "openai"},
	"capture": {"ffmpeg"},
}

// registerBuiltinProviders wires all built-in factories into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterTranscriber("whisper", func(entry config.ProviderEntry) (stt.Transcriber, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := language(entry); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterTranscriber("whisper-native", func(entry config.ProviderEntry) (stt.Transcriber, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = optString(entry.Options, "model_path")
		}
		var opts []whisper.NativeOption
		if lang := language(entry); lang != "" {
			opts = append(opts, whisper.WithNativeLanguage(lang))
		}
		if bin := optString(entry.Options, "ffmpeg_path"); bin != "" {
			opts = append(opts, whisper.WithDecoder(whisper.AutoDecoder{FFmpeg: whisper.FFmpegDecoder{Binary: bin}}))
		}
		if rms, ok := optFloat(entry.Options, "silence_threshold"); ok {
			opts = append(opts, whisper.WithSilenceThreshold(rms))
		}
		return whisper.NewNative(modelPath, opts...)
	})

	reg.RegisterTranscriber("openai", func(entry config.ProviderEntry) (stt.Transcriber, error) {
		model := entry.Model
		if model == "" {
			model = defaultOpenAIModel
		}
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		if org := optString(entry.Options, "organization"); org != "" {
			opts = append(opts, openai.WithOrganization(org))
		}
		if lang := language(entry); lang != "" {
			opts = append(opts, openai.WithLanguage(lang))
		}
		if prompt := optString(entry.Options, "prompt"); prompt != "" {
			opts = append(opts, openai.WithPrompt(prompt))
		}
		if raw := optString(entry.Options, "timeout"); raw != "" {
			d, err := time.ParseDuration(raw)
			if err != nil {
				return nil, fmt.Errorf("openai: options.timeout: %w", err)
			}
			opts = append(opts, openai.WithTimeout(d))
		}
		return openai.New(entry.APIKey, model, opts...)
	})

	// ── Capture ───────────────────────────────────────────────────────────────

	reg.RegisterDevice("ffmpeg", func(c config.CaptureConfig) (audio.Device, error) {
		var opts []ffmpeg.Option
		if c.FFmpegPath != "" {
			opts = append(opts, ffmpeg.WithBinary(c.FFmpegPath))
		}
		if c.InputFormat != "" || c.InputDevice != "" {
			opts = append(opts, ffmpeg.WithInput(c.InputFormat, c.InputDevice))
		}
		if c.StartTimeout > 0 {
			opts = append(opts, ffmpeg.WithStartTimeout(c.StartTimeout))
		}
		return ffmpeg.New(opts...), nil
	})

	for kind, names := range builtinProviders {
		for _, name := range names {
			slog.Debug("registered provider", "kind", kind, "name", name)
		}
	}
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// language prefers the entry's Language field over options.language.
func language(entry config.ProviderEntry) string {
	if entry.Language != "" {
		return entry.Language
	}
	return optString(entry.Options, "language")
}

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	s, _ := opts[key].(string)
	return s
}

// optFloat extracts a number from a provider Options map. YAML decodes
// integers as int and decimals as float64; both are accepted.
func optFloat(opts map[string]any, key string) (float64, bool) {
	switch v := opts[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}
