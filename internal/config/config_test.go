package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/zkslice/internal/policy"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "zkslice.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func testFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Int("k", DefaultK, "")
	fs.Int("capacity", 0, "")
	fs.StringSlice("families", nil, "")
	fs.String("sink", SinkMemory, "")
	fs.String("sink-path", "", "")
	fs.String("log-level", "info", "")
	return fs
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(Options{})
	require.NoError(t, err)

	assert.Equal(t, DefaultK, cfg.K)
	assert.Equal(t, (1<<18)/RowsPerStep, cfg.EffectiveCapacity())
	assert.Equal(t, []string{"jubjub_sum", "merkle", "poseidon"}, cfg.Families)
	assert.Equal(t, SinkMemory, cfg.Sink.Kind)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
k: 20
capacity: 4096
families: [poseidon]
sink:
  kind: sqlite
  path: slices.db
log_level: debug
`)
	cfg, err := Load(Options{File: path})
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.K)
	assert.Equal(t, 4096, cfg.EffectiveCapacity())
	assert.Equal(t, []string{"poseidon"}, cfg.Families)
	assert.Equal(t, SinkConfig{Kind: SinkSQLite, Path: "slices.db"}, cfg.Sink)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(Options{File: filepath.Join(t.TempDir(), "nope.yaml")})
	assert.Error(t, err)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "k: 20\n")
	t.Setenv("ZKSLICE_K", "22")
	t.Setenv("ZKSLICE_SINK_KIND", "pebble")
	t.Setenv("ZKSLICE_SINK_PATH", "/tmp/slices")

	cfg, err := Load(Options{File: path})
	require.NoError(t, err)
	assert.Equal(t, 22, cfg.K)
	assert.Equal(t, SinkPebble, cfg.Sink.Kind)
	assert.Equal(t, "/tmp/slices", cfg.Sink.Path)
}

func TestLoad_ChangedFlagsWin(t *testing.T) {
	path := writeConfig(t, "k: 20\ncapacity: 100\n")
	t.Setenv("ZKSLICE_K", "22")

	fs := testFlags()
	require.NoError(t, fs.Parse([]string{"--k=12", "--families=merkle,poseidon"}))

	cfg, err := Load(Options{File: path, Flags: fs})
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.K)
	assert.Equal(t, 100, cfg.Capacity, "unset flag must not override file")
	assert.Equal(t, []string{"merkle", "poseidon"}, cfg.Families)
}

func TestLoad_RejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"k too small", "k: 4\n"},
		{"negative capacity", "capacity: -1\n"},
		{"unknown sink", "sink:\n  kind: s3\n"},
		{"sink without path", "sink:\n  kind: file\n"},
		{"unknown family", "families: [sha256]\n"},
		{"bad log level", "log_level: loud\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(Options{File: writeConfig(t, tt.body)})
			require.Error(t, err)
			assert.True(t, IsValidationError(err), "got %v", err)
		})
	}
}

func TestConfig_Policy(t *testing.T) {
	cfg := Default()
	cfg.K = 20
	cfg.Families = []string{"merkle", "poseidon"}

	p, err := cfg.Policy()
	require.NoError(t, err)
	assert.Equal(t, 20, p.K())

	std := policy.StandardFamilies()
	merkle, _ := policy.FamilyByName(std, "merkle")
	poseidon, _ := policy.FamilyByName(std, "poseidon")
	assert.Equal(t, map[string]int{
		"merkle":   merkle.RoundBound(20),
		"poseidon": poseidon.RoundBound(20),
	}, p.Bounds())
}

func TestConfig_PolicyUnknownFamily(t *testing.T) {
	cfg := Default()
	cfg.Families = []string{"sha256"}
	_, err := cfg.Policy()
	assert.Error(t, err)
}
