package main

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wordstory/internal/adapter/store"
	"wordstory/internal/domain"
	"wordstory/internal/infra/config"
	"wordstory/internal/infra/logger"
	"wordstory/internal/infra/metrics"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, "dev\n", out)

	out, err = execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "wordstory dev")
	assert.Contains(t, out, "Go version:")
}

func TestPlayCmd_RequiresName(t *testing.T) {
	_, err := execute(t, "play")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"name"`)
}

func TestEncryptCmd(t *testing.T) {
	t.Setenv(config.KeyEnv, "hunter2")

	out, err := execute(t, "encrypt", "s3cret")
	require.NoError(t, err)
	enc := strings.TrimSpace(out)
	require.True(t, strings.HasPrefix(enc, "enc:"))

	plain, err := config.DecryptValue(strings.TrimPrefix(enc, "enc:"), "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", plain)
}

func TestEncryptCmd_NoKey(t *testing.T) {
	t.Setenv(config.KeyEnv, "")
	_, err := execute(t, "encrypt", "s3cret")
	assert.ErrorIs(t, err, domain.ErrEncryption)
}

func TestStatsCmd(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "stats.db")
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, writeTestFile(t, cfgPath, "logger:\n  output: discard\nstore:\n  enabled: true\n  path: "+dbPath+"\n"))

	out, err := execute(t, "stats", "--raw", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "No games recorded")

	st, err := store.NewSQLiteStatsStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Save(context.Background(), domain.GameEndStats{
		ID:          "p1",
		DisplayName: "alice",
		Stats:       []domain.StatNode{{Children: map[string]domain.StatNode{"Turns": {Leaf: &domain.StatValue{Value: 14}}}}},
	}))
	require.NoError(t, st.Close())

	out, err = execute(t, "stats", "--raw", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Game over, alice")
	assert.Contains(t, out, "| Turns | 14 |")
}

func TestStatsCmd_Disabled(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, writeTestFile(t, cfgPath, "store:\n  enabled: false\n"))

	_, err := execute(t, "stats", "--config", cfgPath)
	assert.ErrorIs(t, err, domain.ErrStatsStore)
}

func TestTransportOptions(t *testing.T) {
	cfg := config.Defaults()
	base := transportOptions(cfg, logger.Discard(), metrics.Nop{})
	assert.Len(t, base, 4)

	cfg.Server.Token = "tok"
	cfg.Client.SendRate = 5
	cfg.Client.SendBurst = 2
	assert.Len(t, transportOptions(cfg, logger.Discard(), metrics.Nop{}), 6)
}

func TestStartMetrics_Disabled(t *testing.T) {
	rec, stop := startMetrics(context.Background(), config.MetricsConfig{}, logger.Discard())
	defer stop()
	assert.IsType(t, metrics.Nop{}, rec)
}

func TestStartMetrics_Serves(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rec, stop := startMetrics(ctx, config.MetricsConfig{Enabled: true, Addr: addr, Namespace: "wordstory"}, logger.Discard())
	defer stop()
	rec.Disconnected()

	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = http.Get("http://" + addr + "/metrics")
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Contains(t, string(body), "wordstory_")
}
