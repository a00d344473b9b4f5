package main

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hyperjump/holokernel/internal/cli"
	"github.com/hyperjump/holokernel/internal/config"
	"github.com/hyperjump/holokernel/internal/harness"
	"github.com/hyperjump/holokernel/internal/kernel"
	"github.com/hyperjump/holokernel/internal/models"
	"github.com/hyperjump/holokernel/internal/platform"
	"github.com/hyperjump/holokernel/internal/server"
	"github.com/hyperjump/holokernel/internal/signature"
	"github.com/hyperjump/holokernel/internal/storage"
)

func TestArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after input are moved first",
			args:     []string{"Hello Holographic World", "-components"},
			expected: []string{"-components", "Hello Holographic World"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"-output", "json", "TEST_PATTERN"},
			expected: []string{"-output", "json", "TEST_PATTERN"},
		},
		{
			name:     "input only returns unchanged",
			args:     []string{"TEST_PATTERN"},
			expected: []string{"TEST_PATTERN"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
		{
			name:     "two positionals then flags",
			args:     []string{"key", "value", "-server", "http://h:1"},
			expected: []string{"-server", "http://h:1", "key", "value"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, argsReorder(tt.args))
		})
	}
}

func TestJoinInput(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"TEST_PATTERN"}, "TEST_PATTERN"},
		{"multiple words", []string{"Hello", "Holographic", "World"}, "Hello Holographic World"},
		{"quoted phrase", []string{"Hello Holographic World"}, "Hello Holographic World"},
		{"interior spacing kept", []string{"a  b"}, "a  b"},
		{"empty args", []string{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, joinInput(tt.args))
		})
	}
}

func TestParseFormat(t *testing.T) {
	f, err := parseFormat("json")
	require.NoError(t, err)
	assert.Equal(t, cli.OutputJSON, f)

	f, err = parseFormat("text")
	require.NoError(t, err)
	assert.Equal(t, cli.OutputText, f)

	_, err = parseFormat("compact")
	assert.Error(t, err)
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	origWd, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Chdir(origWd) })
	require.NoError(t, os.Chdir(dir))
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: "localhost"
  port: 8095
storage:
  journal_path: "./journal.db"
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0600))
	chdir(t, dir)

	cfg, resolved, err := loadConfig(defaultConfigPath)
	require.NoError(t, err)
	// On macOS, cwd can be /private/var/... while t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	assert.Equal(t, configPathCanon, resolvedCanon)
	assert.True(t, cfg.Debug)
	assert.Equal(t, 8095, cfg.Server.Port)
	assert.True(t, filepath.IsAbs(cfg.Storage.JournalPath), "journal path should be absolute: %s", cfg.Storage.JournalPath)
}

func TestLoadConfig_defaultsWhenNoFile(t *testing.T) {
	if _, err := os.Stat(defaultConfigPath); err == nil {
		t.Skip("system config present")
	}
	chdir(t, t.TempDir())
	t.Setenv("PORT", "3000")

	cfg, resolved, err := loadConfig(defaultConfigPath)
	require.NoError(t, err)
	assert.Empty(t, resolved)
	assert.Equal(t, 8090, cfg.Server.Port, "unprefixed PORT must not apply")
	assert.True(t, cfg.Kernel.SelfTestOrDefault())
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0600))

	cfg, resolved, err := loadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, configPath, resolved)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.Port)
}

func TestLoadConfig_explicitMissing(t *testing.T) {
	_, _, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "etc", "config.yaml")
	require.NoError(t, writeDefaultConfig(path, false))

	cfg, resolved, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, path, resolved)
	assert.Equal(t, *config.Default(), *cfg)

	err = writeDefaultConfig(path, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 1\n"), 0600))
	require.NoError(t, writeDefaultConfig(path, true))
	cfg, _, err = loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 8090, cfg.Server.Port)
}

func TestCompareInputs(t *testing.T) {
	k := kernel.New(kernel.WithProbe(platform.StaticProbe{}))
	c := compareInputs(k, harness.FixtureKey, harness.FixtureValue, false)
	assert.Equal(t, signature.Fingerprint(0x776C8C3C), c.Vector.Fingerprint)
	assert.Equal(t, signature.Fingerprint(0x1A9C0FAB), c.OtherVec.Fingerprint)
	assert.Nil(t, c.Vector.Components)
	assert.Less(t, c.Similarity.Cosine, 1.0)

	same := compareInputs(k, "x", "x", true)
	assert.InDelta(t, 1.0, same.Similarity.Cosine, 1e-5)
	assert.Len(t, same.OtherVec.Components, int(same.OtherVec.Active))
}

func TestInitializeComponents_journal(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.JournalPath = filepath.Join(t.TempDir(), "sub", "journal.db")
	c, err := initializeComponents(cfg, zap.NewNop(), kernel.WithProbe(platform.StaticProbe{Vendor: "AuthenticAMD"}))
	require.NoError(t, err)
	defer c.Close()
	require.NotNil(t, c.Journal, "journal should be opened")
	assert.Same(t, c.Journal, c.Kernel.Journal())

	_, err = c.Kernel.Boot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "AuthenticAMD", c.Kernel.Status().Hardware.Vendor)
}

func TestClientRoundTrip(t *testing.T) {
	k := kernel.New(kernel.WithProbe(platform.StaticProbe{Vendor: "GenuineIntel"}))
	_, err := k.Boot(context.Background())
	require.NoError(t, err)
	defer k.Shutdown()
	ts := httptest.NewServer(server.NewServer(k, config.Default(), zap.NewNop()).Handler())
	defer ts.Close()

	assoc, err := associateViaHTTP(ts.URL, &models.AssociateRequest{Key: "alpha", Value: "beta"})
	require.NoError(t, err)
	assert.Equal(t, signature.SumString("alpha"), assoc.KeySignature)

	recall, err := recallViaHTTP(ts.URL, &models.InputRequest{Input: harness.FixtureKey})
	require.NoError(t, err)
	require.True(t, recall.Found)
	assert.Equal(t, signature.SumString(harness.FixtureValue), recall.Value.Fingerprint)
	require.NotNil(t, recall.Similarity)

	status, err := statusViaHTTP(ts.URL)
	require.NoError(t, err)
	assert.Equal(t, 3, status.MemoryLen)
	assert.Equal(t, "GenuineIntel", status.Hardware.Vendor)

	_, err = associateViaHTTP(ts.URL, &models.AssociateRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")

	_, err = sessionsViaHTTP(ts.URL, 0, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "journal disabled")
}

func TestJournalClientRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := storage.NewSQLiteJournal(path)
	require.NoError(t, err)
	defer j.Close()

	k := kernel.New(
		kernel.WithProbe(platform.StaticProbe{Vendor: "GenuineIntel", MemoryKB: 65536}),
		kernel.WithJournal(j, path),
	)
	_, err = k.Boot(context.Background())
	require.NoError(t, err)
	defer k.Shutdown()
	ts := httptest.NewServer(server.NewServer(k, config.Default(), zap.NewNop()).Handler())
	defer ts.Close()

	sessions, err := sessionsViaHTTP(ts.URL, 0, 10)
	require.NoError(t, err)
	require.Len(t, sessions.Sessions, 1)
	assert.Equal(t, k.Session(), sessions.Sessions[0].ID)

	events, err := eventsViaHTTP(ts.URL, k.Session(), models.EventTask, 0, 10)
	require.NoError(t, err)
	require.Len(t, events.Events, 1)
	assert.EqualValues(t, 1, events.Total)
	assert.Equal(t, "compute", events.Events[0].Target)

	all, err := eventsViaHTTP(ts.URL, k.Session(), "", 0, 500)
	require.NoError(t, err)
	assert.EqualValues(t, len(all.Events), all.Total)

	_, err = eventsViaHTTP(ts.URL, "no-such-session", "", 0, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
