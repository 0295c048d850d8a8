package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/S0me0neR0man/pagestash/internal/keys"
)

func writeFile(t *testing.T, body string) string {
	path := filepath.Join(t.TempDir(), "pagestash.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	require.Equal(t, 1000, cfg.Maintainer.PageSize)
	require.Equal(t, time.Minute, cfg.Maintainer.Interval)
	require.Equal(t, "00:00", cfg.Maintainer.DailyAt)

	fields, err := cfg.Fields()
	require.NoError(t, err)
	require.Equal(t, keys.DefaultFields(), fields)
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, `
server:
  addr: ":4000"
  auth_token: secret
storage:
  engine: memory
index:
  fields: "word:string,_creationTime:int,_id:string"
maintainer:
  page_size: 50
  interval: 30s
  daily_at: ""
  lease_ttl: 0s
logger:
  level: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Equal(t, ":4000", cfg.Server.Addr)
	require.Equal(t, "secret", cfg.Server.AuthToken)
	require.Equal(t, EngineMemory, cfg.Storage.Engine)
	require.Equal(t, EngineSQLite, cfg.Boundaries.Engine)
	require.Equal(t, 50, cfg.Maintainer.PageSize)
	require.Equal(t, 30*time.Second, cfg.Maintainer.Interval)
	require.Empty(t, cfg.Maintainer.DailyAt)
	require.Equal(t, 5*time.Minute, cfg.Maintainer.LeaseTTL, "zero falls back to default")
	require.Equal(t, "debug", cfg.Logger.Level)

	fields, err := cfg.Fields()
	require.NoError(t, err)
	require.Len(t, fields, 3)
	require.Equal(t, "word", fields[0].Name)
}

func TestParse_FlagsOverride(t *testing.T) {
	path := writeFile(t, "server:\n  addr: \":4000\"\n")
	fs := flag.NewFlagSet("pagestash", flag.ContinueOnError)
	cfg, err := Parse(fs, []string{"-config", path, "-addr", ":5000", "-data", "/tmp/ps", "-memory"})
	require.NoError(t, err)

	require.Equal(t, ":5000", cfg.Server.Addr)
	require.Equal(t, "/tmp/ps/words", cfg.Storage.Path)
	require.Equal(t, "/tmp/ps/boundaries.db", cfg.Boundaries.Path)
	require.Equal(t, EngineMemory, cfg.Storage.Engine)
	require.Equal(t, EngineMemory, cfg.Boundaries.Engine)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Storage.Engine = "mongo"
	require.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = Default()
	cfg.Index.Fields = "word:string"
	require.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = Default()
	cfg.Index.Fields = "word:blob,_id:string"
	require.ErrorIs(t, cfg.Validate(), keys.ErrValidation)

	cfg = Default()
	cfg.Maintainer.DailyAt = "noon"
	require.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
