package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cilscan/internal/watchdog"
)

func TestDefault(t *testing.T) {
	c := Default()
	assert.Equal(t, Duration(watchdog.DefaultTimeout), c.Watchdog.Timeout)
	assert.Equal(t, FormatText, c.Report.Format)
	assert.Empty(t, c.Rules.Disabled)
	assert.Empty(t, c.Path)
	assert.NoError(t, c.Validate())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(`
[watchdog]
timeout = "2m"

[log]
verbosity = 2
file = "cilscan.log"

[rules]
disabled = ["D1020", "PO1002"]

[report]
format = "jsonl"
database = "findings.db"
`), 0644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Duration(2*time.Minute), c.Watchdog.Timeout)
	assert.Equal(t, 2, c.Log.Verbosity)
	assert.Equal(t, "cilscan.log", c.Log.File)
	assert.Equal(t, []string{"D1020", "PO1002"}, c.Rules.Disabled)
	assert.Equal(t, FormatJSONL, c.Report.Format)
	assert.Equal(t, "findings.db", c.Report.Database)
	assert.Equal(t, path, c.Path)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		body string
		want string
	}{
		{"syntax", "[watchdog\n", "parse error"},
		{"duration", "[watchdog]\ntimeout = \"soon\"\n", "parse error"},
		{"format", "[report]\nformat = \"xml\"\n", "report format"},
		{"verbosity", "[log]\nverbosity = -1\n", "verbosity"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".toml")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0644))
			_, err := Load(path)
			assert.ErrorContains(t, err, tt.want)
		})
	}

	_, err := Load(filepath.Join(dir, "missing.toml"))
	assert.ErrorContains(t, err, "cannot read")
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))

	c, err := FindAndLoad(nested)
	require.NoError(t, err)
	assert.Empty(t, c.Path, "no file falls back to defaults")

	require.NoError(t, os.WriteFile(filepath.Join(root, FileName), []byte("[rules]\ndisabled = [\"S1030\"]\n"), 0644))
	c, err = FindAndLoad(nested)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, FileName), c.Path)
	assert.Equal(t, []string{"S1030"}, c.Rules.Disabled)
	assert.Equal(t, FormatText, c.Report.Format)
}
