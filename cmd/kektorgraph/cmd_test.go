package main

import (
	"bytes"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanonone/kektorgraph/internal/server"
	"github.com/sanonone/kektorgraph/pkg/engine"
	"github.com/sanonone/kektorgraph/pkg/kgerr"
)

const cliToken = "cli-test-token"

func startServer(t *testing.T) string {
	t.Helper()
	cfg := server.DefaultConfig()
	cfg.AuthToken = cliToken
	cfg.Engine.SeedPath = "../../pkg/engine/testdata/supplychain.yaml"
	cfg.Engine.MaintenanceInterval = time.Hour

	eng, err := engine.Open(cfg.Engine.Options())
	require.NoError(t, err)
	s, err := server.NewServer(eng, cfg)
	require.NoError(t, err)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		s.Shutdown()
		_ = eng.Close()
	})
	return ts.URL
}

func run(t *testing.T, addr string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--addr", addr, "--token", cliToken}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestQueryCommand(t *testing.T) {
	addr := startServer(t)

	out, err := run(t, addr, "query", "--type", "POI", "--param", "region=south", "props.region == params.region")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "POI\tp2\t"))
	assert.True(t, strings.HasPrefix(lines[1], "POI\tp3\t"))

	_, err = run(t, addr, "query", "props.region ==")
	assert.ErrorIs(t, err, kgerr.ErrQuery)
}

func TestSearchCommand(t *testing.T) {
	addr := startServer(t)

	out, err := run(t, addr, "search", "--target", "entities", "steel")
	require.NoError(t, err)
	assert.Equal(t, "Supplier\ts1\tSteel Co\t1.0000\n", out)
}

func TestCentralityCommand(t *testing.T) {
	addr := startServer(t)

	out, err := run(t, addr, "centrality", "--measure", "degree", "--top", "2")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"ID", "TYPE", "DEGREE"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"w1", "Warehouse", "3.0000"}, strings.Fields(lines[1]))

	_, err = run(t, addr, "centrality", "--measure", "coreness", "--interpretation", "directed")
	assert.ErrorIs(t, err, kgerr.ErrUnsupportedConfiguration)

	_, err = run(t, addr, "centrality", "--measure", "popularity")
	assert.Error(t, err)
}

func TestPathsCommand(t *testing.T) {
	addr := startServer(t)

	out, err := run(t, addr, "paths", "--from", "POI:p1", "--to", "Supplier", "--cost-property", "cost")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "6.5\tPlant 1 <-[ShipsTo]- Depot <-[ShipsTo]- Hub <-[ShipsTo]- Bolt Co", lines[0])
	assert.Equal(t, "2 path(s)", lines[2])

	cfgPath := filepath.Join(t.TempDir(), "paths.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`config:
  origins:
    - type: POI
  destinations:
    - type: Supplier
  cost_property: cost
  traversal_directions:
    ShipsTo: forward
`), 0o644))
	out, err = run(t, addr, "paths", "--config", cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "0 path(s)\n", out)

	_, err = run(t, addr, "paths", "--to", "Supplier")
	assert.Error(t, err)
}

func TestParseParams(t *testing.T) {
	got, err := parseParams([]string{"n=3", "f=1.5", "b=true", "s=south", "e="})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"n": int64(3), "f": 1.5, "b": true, "s": "south", "e": ""}, got)

	_, err = parseParams([]string{"novalue"})
	assert.Error(t, err)
}
