// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jeranaias/atlas-tui/internal/chatstream"
	"github.com/jeranaias/atlas-tui/internal/config"
	"github.com/jeranaias/atlas-tui/internal/filecache"
	"github.com/jeranaias/atlas-tui/internal/logging"
	"github.com/jeranaias/atlas-tui/internal/upload"
)

// Version information (set at build time)
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// =============================================================================
// ROOT COMMAND
// =============================================================================

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	logLevel   string
}

// NewRootCmd builds the atlas command tree. Running it without a
// subcommand starts the full-screen chat.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "atlas",
		Short:         "Terminal client for the Atlas analyst chat",
		Long:          "atlas streams answers from the Atlas analyst backend, renders code and its output,\nand uploads PDF, CSV, Excel and text files for analysis.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd.Context(), opts)
		},
	}
	root.SetVersionTemplate("atlas {{.Version}}\n")

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file (default $ATLAS_HOME/config.toml)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		newChatCmd(opts),
		newCacheCmd(opts),
		newServeCmd(opts),
		newVersionCmd(),
	)
	return root
}

// Execute runs the command tree against os.Args.
func Execute() error {
	return NewRootCmd().ExecuteContext(context.Background())
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "atlas %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
		},
	}
}

// =============================================================================
// RUNTIME
// =============================================================================

// runtime is the loaded configuration and logger for one command.
type runtime struct {
	cfg     *config.Config
	cfgPath string
	logger  *slog.Logger
	closer  io.Closer
}

// setup loads .env files, the config file and the environment, then opens
// the logger. A nil logTo logs to the configured file; commands that own
// the terminal must not log to it.
func (o *globalOptions) setup(logTo io.Writer) (*runtime, error) {
	path := o.configPath
	if path == "" {
		p, err := config.ConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	if err := config.LoadDotEnv(".env", filepath.Join(filepath.Dir(path), ".env")); err != nil {
		return nil, err
	}
	cfg, err := config.LoadFromPath(path)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}

	rt := &runtime{cfg: cfg, cfgPath: path}
	if logTo == nil {
		logger, closer, err := logging.OpenFile(cfg.Log.Path, cfg.Log.Level)
		if err != nil {
			return nil, err
		}
		rt.logger, rt.closer = logger, closer
	} else {
		level, err := logging.ParseLevel(cfg.Log.Level)
		if err != nil {
			return nil, err
		}
		rt.logger = logging.New(logTo, level)
	}
	slog.SetDefault(rt.logger)
	return rt, nil
}

// Close releases the log file, if any.
func (r *runtime) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// newCache opens the upload cache as stored.
func (r *runtime) newCache() *filecache.Cache {
	return filecache.New(
		filecache.NewFileStorage(r.cfg.Cache.Path),
		filecache.WithRetention(r.cfg.Retention()),
		filecache.WithLogger(r.logger),
	)
}

// openCache opens the upload cache and drops expired entries.
func (r *runtime) openCache() *filecache.Cache {
	cache := r.newCache()
	if n := cache.Sweep(); n > 0 {
		r.logger.Info("upload cache swept", "expired", n)
	}
	return cache
}

// newUploader builds the uploader for the configured mode. Both modes share
// the fingerprint cache.
func (r *runtime) newUploader(cache *filecache.Cache) *upload.Uploader {
	var backend upload.Backend
	switch r.cfg.Upload.Mode {
	case config.UploadModeLocal:
		backend = upload.NewLocalBackend(r.cfg.Upload.LocalURL, nil)
	default:
		backend = upload.NewBlobBackend(r.cfg.Upload.TokenURL, nil)
	}
	r.logger.Debug("uploader ready", "mode", r.cfg.Upload.Mode)
	return upload.NewUploader(backend, cache, r.logger)
}

func (r *runtime) newStreamer() *chatstream.Client {
	return chatstream.NewClient(r.cfg.Chat.Endpoint, chatstream.WithLogger(r.logger))
}

// =============================================================================
// HELPERS
// =============================================================================

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return strconv.Itoa(n) + " " + noun + "s"
}
