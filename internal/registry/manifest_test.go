package registry_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/paveg/kwdata/internal/errors"
	"github.com/paveg/kwdata/internal/registry"
	"github.com/paveg/kwdata/internal/settings"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const loginManifest = `keywords:
  - name: login
    doc: |
      Logs a user in.
    mandatory: [USERNAME, PASSWORD]
    optional:
      - name: REMEMBER
        default: false
      - name: RETRIES
        default: 3
`

func writeManifest(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadManifest(t *testing.T) {
	path := writeManifest(t, t.TempDir(), "auth.kw.yaml", loginManifest)

	m, err := registry.LoadManifest(path)
	require.NoError(t, err)
	require.Len(t, m.Keywords, 1)

	kw := m.Keywords[0].Keyword()
	assert.Equal(t, "login", kw.Name)
	assert.Equal(t, "Logs a user in.", kw.Doc)
	assert.Equal(t, []registry.Param{
		registry.Mandatory("USERNAME"),
		registry.Mandatory("PASSWORD"),
		registry.Optional("REMEMBER", false),
		registry.Optional("RETRIES", 3),
	}, kw.Params)

	t.Run("malformed", func(t *testing.T) {
		bad := writeManifest(t, t.TempDir(), "bad.kw.yaml", "keywords: [")
		_, err := registry.LoadManifest(bad)
		assert.ErrorIs(t, err, errors.ErrParse)
	})
}

func TestIsManifest(t *testing.T) {
	assert.True(t, registry.IsManifest("/a/b/auth.kw.yaml"))
	assert.True(t, registry.IsManifest("AUTH.KW.YML"))
	assert.False(t, registry.IsManifest("auth.yaml"))
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "auth.kw.yaml", loginManifest)
	writeManifest(t, dir, "nested/data.kw.yml", "keywords:\n  - name: load\n    mandatory: [DATA]\n")
	writeManifest(t, dir, "ignored.yaml", "keywords:\n  - name: ignored\n")
	single := writeManifest(t, t.TempDir(), "single.kw.yaml", "keywords:\n  - name: single\n")

	reg := registry.New(settings.NewStore(settings.Defaults()), zerolog.Nop())
	n, err := reg.Discover([]string{dir, single})
	require.NoError(t, err)

	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"load", "login", "single"}, reg.GetAllKeywords())

	args, err := reg.KeywordArguments("login", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"USERNAME=()", "PASSWORD=()", "REMEMBER=false", "RETRIES=3"}, args)

	t.Run("duplicate keyword across manifests", func(t *testing.T) {
		_, err := reg.Discover([]string{single})
		assert.ErrorIs(t, err, errors.ErrInvalidDefinition)
	})

	t.Run("missing location", func(t *testing.T) {
		_, err := reg.Discover([]string{filepath.Join(dir, "nope")})
		assert.Error(t, err)
	})
}
