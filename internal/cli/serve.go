// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// serve.go - Run the local development blob server.

package cli

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jeranaias/atlas-tui/internal/blobstore"
	"github.com/jeranaias/atlas-tui/internal/server"
)

func newServeCmd(opts *globalOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local development blob server",
		Long: "Serve the signed upload endpoint (/api/blob/upload), the multipart dev upload\n" +
			"(/api/upload) and the stored files (/blob/{id}/{name}). Point upload.token_url or\n" +
			"upload.local_url at this server.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.setup(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer rt.Close()

			if addr != "" {
				rt.cfg.Server.Addr = addr
			}
			return runServe(cmd.Context(), rt)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

func runServe(ctx context.Context, rt *runtime) error {
	sc := rt.cfg.Server

	secret := sc.Secret
	if secret == "" {
		s, err := randomSecret()
		if err != nil {
			return err
		}
		secret = s
		rt.logger.Warn("server.secret not set; using a per-process secret", "env", "ATLAS_BLOB_SECRET")
	}

	store, err := blobstore.Open(sc.DataDir)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}
	defer store.Close()

	srv := server.New(server.Config{
		Addr:      sc.Addr,
		PublicURL: sc.PublicURL,
		Secret:    secret,
		RateLimit: sc.RateLimit,
		Burst:     sc.Burst,
	}, store, rt.logger)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.ListenAndServe(ctx)
}

// randomSecret returns 32 random bytes, hex encoded.
func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
