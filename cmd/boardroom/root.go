package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/MrWong99/boardroom/internal/app"
	"github.com/MrWong99/boardroom/internal/config"
)

// defaultConfigPath is read when --config is not given. A missing default
// file means built-in defaults.
const defaultConfigPath = "boardroom.yaml"

func newRootCommand() *cobra.Command {
	var configFlag string
	var logLevelFlag string

	c := newCommandContext(&configFlag, &logLevelFlag)

	rootCmd := &cobra.Command{
		Use:           "boardroom",
		Short:         "Meeting capture and transcription routing",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.installLogger(cmd.ErrOrStderr())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path (default "+defaultConfigPath+")")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Override the configured log level (debug, info, warn, error)")

	rootCmd.AddCommand(newServeCommand(c))
	rootCmd.AddCommand(newRecordCommand(c))
	rootCmd.AddCommand(newMatchCommand())
	rootCmd.AddCommand(newMeetingIDCommand())
	rootCmd.AddCommand(newCommandsCommand())
	rootCmd.AddCommand(newTranscriptsCommand(c))
	rootCmd.AddCommand(newPreferenceCommand(c))

	return rootCmd
}

// commandContext carries state shared by the subcommands: the lazily loaded
// config, the provider registry and the process log level.
type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	level slog.LevelVar

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

// ensureConfig loads the configuration once. An explicit --config must
// exist; the default path falls back to built-in defaults when absent.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		path := strings.TrimSpace(*c.configFlag)
		explicit := path != ""
		if !explicit {
			path = defaultConfigPath
		}

		cfg, err := config.Load(path)
		switch {
		case err == nil:
			c.configPath = path
		case !explicit && errors.Is(err, os.ErrNotExist):
			cfg, err = config.LoadFromReader(strings.NewReader(""))
		}
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.level.Set(app.LevelFor(cfg.Server.LogLevel))
		c.applyLogLevelFlag()
	})
	return c.config, c.configErr
}

func (c *commandContext) applyLogLevelFlag() {
	if lvl := config.LogLevel(strings.TrimSpace(*c.logLevelFlag)); lvl != "" {
		c.level.Set(app.LevelFor(lvl))
	}
}

// installLogger sets the default slog logger. Terminals get text output;
// anything else gets JSON lines.
func (c *commandContext) installLogger(w io.Writer) error {
	if lvl := config.LogLevel(strings.TrimSpace(*c.logLevelFlag)); lvl != "" && !lvl.IsValid() {
		return fmt.Errorf("invalid --log-level %q; valid values: debug, info, warn, error", lvl)
	}
	c.applyLogLevelFlag()
	slog.SetDefault(newLogger(w, &c.level))
	return nil
}

func newLogger(w io.Writer, level slog.Leveler) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if isTerminal(w) {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// newApp loads the config and wires an application with the built-in
// providers.
func (c *commandContext) newApp(ctx context.Context, opts ...app.Option) (*app.App, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	opts = append([]app.Option{app.WithLogLevel(&c.level)}, opts...)
	return app.New(ctx, cfg, reg, opts...)
}
