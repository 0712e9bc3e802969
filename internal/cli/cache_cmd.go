// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cache_cmd.go - Inspect and clear the upload fingerprint cache.

package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jeranaias/atlas-tui/internal/filecache"
	"github.com/jeranaias/atlas-tui/internal/util"
)

// listNameWidth is the NAME column width of `cache list`.
const listNameWidth = 32

// CacheStatsData is the --json payload of `cache stats`.
type CacheStatsData struct {
	Location       string `json:"location"`
	Files          int    `json:"files"`
	SizeBytes      int64  `json:"size_bytes"`
	Expired        int    `json:"expired"`
	RetentionHours int    `json:"retention_hours"`
}

// CacheEntryData is one --json entry of `cache list`.
type CacheEntryData struct {
	Fingerprint string `json:"fingerprint"`
	Name        string `json:"name"`
	SizeBytes   int64  `json:"size_bytes"`
	AgeSeconds  int64  `json:"age_seconds"`
	URL         string `json:"url"`
	Expired     bool   `json:"expired"`
}

func newCacheCmd(opts *globalOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the upload cache",
		Long:  "Uploaded files are remembered by name, size and type so\nresending an unchanged file reuses its URL. These commands inspect that cache.",
	}
	cmd.PersistentFlags().BoolVar(&asJSON, "json", false, "print JSON")

	// open loads the cache without sweeping so expired entries stay visible.
	open := func(cmd *cobra.Command) (*runtime, *filecache.Inspector, error) {
		rt, err := opts.setup(cmd.ErrOrStderr())
		if err != nil {
			return nil, nil, err
		}
		return rt, filecache.NewInspector(rt.newCache()), nil
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "stats",
			Short: "Show cache totals",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				rt, inspector, err := open(cmd)
				if err != nil {
					return jsonError(cmd, asJSON, "cache stats", err)
				}
				defer rt.Close()

				stats := inspector.Stats()
				data := CacheStatsData{
					Location:       rt.cfg.Cache.Path,
					Files:          stats.TotalFiles,
					SizeBytes:      stats.TotalSize,
					Expired:        stats.ExpiredFiles,
					RetentionHours: rt.cfg.Cache.RetentionHours,
				}
				if asJSON {
					return NewJSONResponse("cache stats", data).Write(cmd.OutOrStdout())
				}
				printCacheStats(cmd.OutOrStdout(), data)
				return nil
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List cached uploads, newest first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				rt, inspector, err := open(cmd)
				if err != nil {
					return jsonError(cmd, asJSON, "cache list", err)
				}
				defer rt.Close()

				files := inspector.Entries()
				if asJSON {
					entries := make([]CacheEntryData, len(files))
					for i, f := range files {
						entries[i] = CacheEntryData{
							Fingerprint: f.Fingerprint,
							Name:        f.Name,
							SizeBytes:   f.Size,
							AgeSeconds:  int64(f.Age.Seconds()),
							URL:         f.URL,
							Expired:     f.Expired,
						}
					}
					return NewJSONResponse("cache list", entries).Write(cmd.OutOrStdout())
				}
				printCacheList(cmd.OutOrStdout(), files)
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Remove every cached upload",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				rt, inspector, err := open(cmd)
				if err != nil {
					return jsonError(cmd, asJSON, "cache clear", err)
				}
				defer rt.Close()

				n := inspector.Stats().TotalFiles
				inspector.Clear()
				rt.logger.Info("upload cache cleared", "entries", n)
				if asJSON {
					return NewJSONResponse("cache clear", map[string]int{"removed": n}).Write(cmd.OutOrStdout())
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s.\n", plural(n, "cached upload"))
				return nil
			},
		},
	)
	return cmd
}

// jsonError prints err as a JSON envelope in --json mode and returns it.
func jsonError(cmd *cobra.Command, asJSON bool, command string, err error) error {
	if asJSON {
		_ = NewJSONErrorResponse(command, err).Write(cmd.OutOrStdout())
	}
	return err
}

func printCacheStats(w io.Writer, d CacheStatsData) {
	fmt.Fprintln(w, "Upload Cache")
	fmt.Fprintf(w, "  Location:   %s\n", d.Location)
	fmt.Fprintf(w, "  Files:      %d\n", d.Files)
	fmt.Fprintf(w, "  Size:       %s\n", util.FormatBytes(d.SizeBytes))
	fmt.Fprintf(w, "  Expired:    %d\n", d.Expired)
	fmt.Fprintf(w, "  Retention:  %dh\n", d.RetentionHours)
}

func printCacheList(w io.Writer, files []filecache.FileInfo) {
	if len(files) == 0 {
		fmt.Fprintln(w, "No cached uploads.")
		return
	}
	fmt.Fprintf(w, "%s  %s  %s  %s\n", util.PadWidth("NAME", listNameWidth), util.PadWidth("SIZE", 9), util.PadWidth("AGE", 6), "URL")
	for _, f := range files {
		age := util.FormatAge(f.Age)
		if f.Expired {
			age += "*"
		}
		fmt.Fprintf(w, "%s  %s  %s  %s\n",
			util.PadWidth(f.Name, listNameWidth),
			util.PadWidth(util.FormatBytes(f.Size), 9),
			util.PadWidth(age, 6),
			f.URL,
		)
	}
	if countExpired(files) > 0 {
		fmt.Fprintln(w, "* expired; removed on next start")
	}
}

func countExpired(files []filecache.FileInfo) int {
	n := 0
	for _, f := range files {
		if f.Expired {
			n++
		}
	}
	return n
}
