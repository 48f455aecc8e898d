package config

import "reflect"

// ConfigDiff describes what changed between two configs.
// LogLevel and DefaultProvider changes can be applied live; anything listed
// in Restart needs a restart to take effect.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	DefaultProviderChanged bool
	NewDefaultProvider     string

	// Restart names the sections whose changes are not applied live.
	Restart []string
}

// Changed reports whether anything differs.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.DefaultProviderChanged || len(d.Restart) > 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Transcription.DefaultProvider != new.Transcription.DefaultProvider {
		d.DefaultProviderChanged = true
		d.NewDefaultProvider = new.Transcription.DefaultProvider
	}

	oldServer, newServer := old.Server, new.Server
	oldServer.LogLevel, newServer.LogLevel = "", ""
	if !reflect.DeepEqual(oldServer, newServer) {
		d.Restart = append(d.Restart, "server")
	}
	if old.Capture != new.Capture {
		d.Restart = append(d.Restart, "capture")
	}
	oldTr, newTr := old.Transcription, new.Transcription
	oldTr.DefaultProvider, newTr.DefaultProvider = "", ""
	if !reflect.DeepEqual(oldTr, newTr) {
		d.Restart = append(d.Restart, "transcription")
	}
	if old.Backend != new.Backend {
		d.Restart = append(d.Restart, "backend")
	}
	if !reflect.DeepEqual(old.Functions, new.Functions) {
		d.Restart = append(d.Restart, "functions")
	}
	return d
}
