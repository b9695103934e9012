// smartanychat: send the selected text to a language model and paste the
// reply at the cursor.
package main

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jinzheng8115/smartanychat/clipio"
	"github.com/jinzheng8115/smartanychat/config"
	"github.com/jinzheng8115/smartanychat/logging"
	"github.com/jinzheng8115/smartanychat/platform"
	"github.com/jinzheng8115/smartanychat/storage"
	"github.com/jinzheng8115/smartanychat/systray"
	"github.com/jinzheng8115/smartanychat/web"
)

// Version is set at build time via -ldflags "-X main.Version=x.y.z".
var Version = "dev"

//go:embed assets/icon.ico
var iconData []byte

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "smartanychat",
		Short: "Clipboard driven text completion",
		Long: `smartanychat runs in the background and listens for global hotkeys.

  ctrl+alt+\   send the selected text to the model and paste the reply
  ctrl+alt+/   continue the previous reply
  ctrl+esc     clear the conversation history

Settings live in config.toml in the user config directory and can be edited
from the settings page (http://localhost:7878 by default).

All flags can be set via SMARTANYCHAT_<FLAG> env vars.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := bindViper(cmd, v); err != nil {
				return err
			}
			return runAgent(v)
		},
	}

	cmd.PersistentFlags().String("config", "", "path to config.toml (default: user config directory)")
	cmd.Flags().String("log-level", "", "log level: debug|info|warn|error (default: from config)")
	cmd.Flags().String("log-format", "", "log format: auto|text|json (default: from config)")
	cmd.Flags().Bool("no-tray", false, "do not show the tray icon")
	cmd.Flags().Bool("no-web", false, "do not start the settings server")

	cmd.AddCommand(
		newConfigCmd(),
		newVersionCmd(),
	)
	return cmd
}

// bindViper wires a command's flags and SMARTANYCHAT_* env vars into v.
//
// Precedence (lowest → highest): defaults → SMARTANYCHAT_* env vars → flags
func bindViper(cmd *cobra.Command, v *viper.Viper) error {
	v.SetEnvPrefix("SMARTANYCHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}
	return nil
}

func configPath(v *viper.Viper) (string, error) {
	if p := v.GetString("config"); p != "" {
		return p, nil
	}
	return config.Path()
}

func runAgent(v *viper.Viper) error {
	path, err := configPath(v)
	if err != nil {
		return err
	}

	store := config.NewStore(path)
	cfg, err := store.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	dataDir := filepath.Dir(path)
	logger, closer, err := logging.New(logOptions(v, cfg, dataDir))
	if err != nil {
		return err
	}
	defer closer.Close()

	logger.Info("Configuration loaded", "path", store.Path(), "api_type", cfg.APIType)

	db, err := storage.Open(dataDir)
	if err != nil {
		logger.Error("Failed to open database", "error", err)
		return err
	}
	defer db.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	protocol := clipio.New(
		platform.NewClipboard(logger),
		platform.NewKeyboard(),
		cfg.Delays.Protocol(),
		logger.With("component", "clipio"),
	)

	opts := []AgentOption{WithRecorder(db)}

	var server *web.Server
	if cfg.Web.Enabled && !v.GetBool("no-web") {
		server = web.NewServer(db, store, cfg.Web.Port, logger.With("component", "web"))
		opts = append(opts, OnStatus(server.BroadcastStatus), OnRecord(server.BroadcastRecord))
	}

	var agent *Agent
	clearHistory := func() { agent.ClearHistory() }

	var tray *systray.Manager
	if !v.GetBool("no-tray") {
		settingsURL := ""
		if server != nil {
			settingsURL = server.URL()
		}
		tray = systray.NewManager(settingsURL, iconData, clearHistory, logger.With("component", "tray"))
		opts = append(opts, OnStatus(tray.SetStatus))
	} else if runtime.GOOS == "darwin" {
		logger.Warn("Global hotkeys need the tray event loop on macOS")
	}

	agent, err = NewAgent(store, platform.NewHotkey(), protocol, logger, opts...)
	if err != nil {
		logger.Error("Failed to create agent", "error", err)
		return err
	}

	if server != nil {
		server.OnClearConversation(clearHistory)
		go func() {
			if err := server.Run(ctx); err != nil {
				logger.Error("Web server error", "error", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- agent.Run(ctx)
		cancel()
	}()

	if tray != nil {
		go func() {
			select {
			case <-tray.WaitForQuit():
				cancel()
			case <-ctx.Done():
				tray.Stop()
			}
		}()
		// The tray owns the main thread until it quits.
		tray.Run()
		cancel()
	}

	if err := <-errCh; err != nil {
		logger.Error("Agent error", "error", err)
		return err
	}

	logger.Info("SmartAnyChat stopped")
	return nil
}

func logOptions(v *viper.Viper, cfg *config.Config, dataDir string) logging.Options {
	level := cfg.Log.Level
	if l := v.GetString("log-level"); l != "" {
		level = l
	}
	format := cfg.Log.Format
	if f := v.GetString("log-format"); f != "" {
		format = f
	}
	dir := cfg.Log.Dir
	if dir == "" {
		dir = filepath.Join(dataDir, "logs")
	}

	return logging.Options{
		Level:  logging.ParseLevel(level),
		Format: logging.ParseFormat(format),
		Dir:    dir,
	}
}

func newConfigCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration file",
	}

	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := bindViper(cmd, v); err != nil {
				return err
			}
			path, err := configPath(v)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the configuration with API keys masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := bindViper(cmd, v); err != nil {
				return err
			}
			path, err := configPath(v)
			if err != nil {
				return err
			}
			cfg, err := config.NewStore(path).Load()
			if err != nil {
				return err
			}
			return toml.NewEncoder(cmd.OutOrStdout()).Encode(cfg.Redacted())
		},
	}

	cmd.AddCommand(pathCmd, showCmd)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "smartanychat %s\n", Version)
		},
	}
}
