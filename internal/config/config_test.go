package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("signatures", "", "")
	fs.String("output", "table", "")
	fs.Bool("client-only", false, "")
	fs.String("unrelated", "x", "")
	require.NoError(t, fs.Parse(args))
	return fs
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dhcpfp.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultSource_Load(t *testing.T) {
	k := koanf.New(".")
	src := &DefaultSource{}
	require.NoError(t, src.Load(k))

	assert.Equal(t, 10, src.Priority())
	assert.Equal(t, "info", k.String("log.level"))
	assert.Equal(t, "table", k.String("output.format"))
	assert.Equal(t, "dhcpfp.sqlite", k.String("database.path"))
	assert.False(t, k.Bool("parser.client_only"))
}

func TestFileSource_Load(t *testing.T) {
	t.Run("empty path", func(t *testing.T) {
		assert.NoError(t, (&FileSource{}).Load(koanf.New(".")))
	})

	t.Run("missing file", func(t *testing.T) {
		assert.NoError(t, (&FileSource{Path: "/nonexistent/dhcpfp.yaml"}).Load(koanf.New(".")))
	})

	t.Run("valid file", func(t *testing.T) {
		path := writeConfig(t, "signatures:\n  path: /etc/satori/dhcp.xml\nparser:\n  client_only: true\n")
		k := koanf.New(".")
		src := &FileSource{Path: path}
		require.NoError(t, src.Load(k))
		assert.Equal(t, "file:"+path, src.Name())
		assert.Equal(t, "/etc/satori/dhcp.xml", k.String("signatures.path"))
		assert.True(t, k.Bool("parser.client_only"))
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := writeConfig(t, "log: [unterminated")
		assert.Error(t, (&FileSource{Path: path}).Load(koanf.New(".")))
	})
}

func TestEnvSource_Load(t *testing.T) {
	t.Setenv("DHCPFP_LOG_LEVEL", "debug")
	t.Setenv("DHCPFP_PARSER_CLIENT_ONLY", "true")

	k := koanf.New(".")
	require.NoError(t, (&EnvSource{}).Load(k))
	assert.Equal(t, "debug", k.String("log.level"))
	assert.Equal(t, "true", k.String("parser.client_only"))
}

func TestFlagSource_Load(t *testing.T) {
	k := koanf.New(".")
	require.NoError(t, (&DefaultSource{}).Load(k))

	src := &FlagSource{Flags: newFlags(t, "--signatures", "sigs.yaml", "--unrelated", "y"), Keys: FlagKeys}
	require.NoError(t, src.Load(k))

	assert.Equal(t, "sigs.yaml", k.String("signatures.path"))
	assert.Equal(t, "table", k.String("output.format"))
	assert.False(t, k.Exists("unrelated"))
}

func TestFlagSource_Debug(t *testing.T) {
	k := koanf.New(".")
	require.NoError(t, (&FlagSource{Debug: true}).Load(k))
	assert.Equal(t, "debug", k.String("log.level"))
}

func TestManager_Load_Precedence(t *testing.T) {
	path := writeConfig(t, "log:\n  level: warn\noutput:\n  format: csv\ndatabase:\n  path: from-file.sqlite\n")
	t.Setenv("DHCPFP_OUTPUT_FORMAT", "json")

	m := NewManager()
	require.NoError(t, m.Load(DefaultSources(path, newFlags(t, "--client-only"), false)...))

	cfg := m.Get()
	assert.Equal(t, "warn", cfg.Log.Level, "file overrides defaults")
	assert.Equal(t, "json", cfg.Output.Format, "env overrides file, unset flag does not")
	assert.Equal(t, "from-file.sqlite", cfg.Database.Path)
	assert.True(t, cfg.Parser.ClientOnly, "flag overrides defaults")
	assert.Equal(t, "json", m.Koanf().String("output.format"))
}

func TestManager_Load_SortsByPriority(t *testing.T) {
	t.Setenv("DHCPFP_SIGNATURES_PATH", "env.xml")

	m := NewManager()
	require.NoError(t, m.Load(&EnvSource{}, &DefaultSource{}))
	assert.Equal(t, "env.xml", m.Get().Signatures.Path)
}

func TestManager_Load_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		key  string
	}{
		{"log level", "log:\n  level: loud\n", "log.level"},
		{"output format", "output:\n  format: xml\n", "output.format"},
		{"database path", "database:\n  path: \"\"\n", "database.path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager()
			require.NoError(t, m.Load(&DefaultSource{}))

			err := m.Load(&DefaultSource{}, &FileSource{Path: writeConfig(t, tt.yaml)})
			require.Error(t, err)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.key, verr.Key)
			assert.Equal(t, "info", m.Get().Log.Level, "previous config kept")
		})
	}
}

func TestManager_Load_NormalizesCase(t *testing.T) {
	t.Setenv("DHCPFP_LOG_LEVEL", "DEBUG")
	t.Setenv("DHCPFP_OUTPUT_FORMAT", "JSON")

	m := NewManager()
	require.NoError(t, m.Load(&DefaultSource{}, &EnvSource{}))
	assert.Equal(t, "debug", m.Get().Log.Level)
	assert.Equal(t, "json", m.Get().Output.Format)
}

func TestValidationError_Error(t *testing.T) {
	assert.Equal(t, "config: database.path is required",
		(&ValidationError{Key: "database.path", Rule: "required"}).Error())
	assert.Equal(t, "config: output.format=xml violates oneof=table json csv",
		(&ValidationError{Key: "output.format", Value: "xml", Rule: "oneof=table json csv"}).Error())
}
