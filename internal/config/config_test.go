// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("ATLAS_HOME", dir)
	return dir
}

func TestDefault_IsValid(t *testing.T) {
	isolate(t)
	cfg := Default()
	require.NoError(t, cfg.SetDefaults())
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, 7*24*time.Hour, cfg.Retention())
}

func TestLoadFromPath_MissingFileUsesDefaults(t *testing.T) {
	dir := isolate(t)
	cfg, err := LoadFromPath(filepath.Join(dir, "config.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Chat.Endpoint, cfg.Chat.Endpoint)
	assert.Equal(t, filepath.Join(dir, "upload_cache.json"), cfg.Cache.Path)
	assert.Equal(t, filepath.Join(dir, "atlas.log"), cfg.Log.Path)
	assert.Equal(t, filepath.Join(dir, "blobs"), cfg.Server.DataDir)
}

func TestLoadFromPath_FileThenEnv(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[chat]
endpoint = "https://atlas.example/api/chat"

[upload]
mode = "local"

[ui]
follow_threshold = 8
`), 0o600))

	t.Setenv("ATLAS_FOLLOW_THRESHOLD", "12")
	t.Setenv("ATLAS_LOG_LEVEL", "debug")

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "https://atlas.example/api/chat", cfg.Chat.Endpoint)
	assert.Equal(t, UploadModeLocal, cfg.Upload.Mode)
	assert.Equal(t, 12, cfg.UI.FollowThreshold, "env overrides file")
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "monokai", cfg.UI.CodeTheme, "unset keys keep defaults")
}

func TestLoadFromPath_BadTOML(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[chat\nendpoint="), 0o600))
	_, err := LoadFromPath(path)
	assert.Error(t, err)
}

func TestValidate_CollectsAll(t *testing.T) {
	isolate(t)
	cfg := Default()
	cfg.Chat.Endpoint = "ftp://nope"
	cfg.Upload.Mode = "carrier-pigeon"
	cfg.Cache.RetentionHours = 0
	cfg.Log.Level = "loud"

	err := cfg.Validate()
	var verrs ValidateErrors
	require.True(t, errors.As(err, &verrs))
	fields := make([]string, 0, len(verrs))
	for _, v := range verrs {
		fields = append(fields, v.Field)
	}
	assert.ElementsMatch(t, []string{"chat.endpoint", "upload.mode", "cache.retention_hours", "log.level"}, fields)
}

func TestSave_RoundTrip(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "nested", "config.toml")

	cfg := Default()
	cfg.UI.MarkdownStyle = "dark"
	cfg.Server.Secret = "hunter2"
	require.NoError(t, Save(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "dark", loaded.UI.MarkdownStyle)
	assert.Equal(t, "hunter2", loaded.Server.Secret)
}

func TestString_RedactsSecret(t *testing.T) {
	cfg := Default()
	cfg.Server.Secret = "hunter2"
	assert.NotContains(t, cfg.String(), "hunter2")
	assert.Contains(t, cfg.String(), "[REDACTED]")
	assert.Equal(t, "hunter2", cfg.Server.Secret)
}

func TestLoadDotEnv(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("ATLAS_TEST_DOTENV=from-file\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("ATLAS_TEST_DOTENV") })

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), path))
	assert.Equal(t, "from-file", os.Getenv("ATLAS_TEST_DOTENV"))
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, Save(Default(), path))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *Config, 4)
	require.NoError(t, Watch(ctx, path, func(cfg *Config, err error) {
		if err == nil {
			got <- cfg
		}
	}))

	cfg := Default()
	cfg.UI.FollowThreshold = 9
	require.NoError(t, Save(cfg, path))

	select {
	case reloaded := <-got:
		assert.Equal(t, 9, reloaded.UI.FollowThreshold)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after write")
	}
}
