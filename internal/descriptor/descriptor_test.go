package descriptor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeDescriptor(t *testing.T, dir, toml string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(toml), 0o644))
}

func TestLoadFullDescriptor(t *testing.T) {
	dir := t.TempDir()
	writeDescriptor(t, dir, `
name = "Calculator"
description = "Evaluate arithmetic expressions"
icon = "accessories-calculator"

[bin]
path = "calc"

[query]
isolate = "^="
persistent = false
no_sort = true
regex = "^="
`)

	d, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, "Calculator", d.Name)
	require.Equal(t, filepath.Join(dir, "calc"), d.ExecPath)
	require.True(t, d.Query.NoSort)
	require.False(t, d.Query.Persistent)
	require.NotNil(t, d.Query.Isolate)
	require.True(t, d.Query.Isolate.MatchString("=1+2"))
	require.NotNil(t, d.Query.Regex)
}

func TestLoadMinimalDescriptor(t *testing.T) {
	dir := t.TempDir()
	writeDescriptor(t, dir, `
name = "Files"
description = "Browse files"

[bin]
path = "files"
`)

	d, err := Load(dir)
	require.NoError(t, err)
	require.Nil(t, d.Query.Isolate)
	require.Nil(t, d.Query.Regex)
	require.False(t, d.Query.Persistent)
	require.False(t, d.Query.NoSort)
}

func TestLoadMissingName(t *testing.T) {
	dir := t.TempDir()
	writeDescriptor(t, dir, `
[bin]
path = "x"
`)
	_, err := Load(dir)
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(t.TempDir())
	require.Error(t, err)
}

func TestLoadBadRegex(t *testing.T) {
	dir := t.TempDir()
	writeDescriptor(t, dir, `
name = "Bad"
[bin]
path = "x"
[query]
regex = "("
`)
	_, err := Load(dir)
	require.Error(t, err)
}

func TestCategoryIconParts(t *testing.T) {
	d := PluginDescriptor{Icon: "mime:text/plain"}
	isMime, v := d.CategoryIconParts()
	require.True(t, isMime)
	require.Equal(t, "text/plain", v)

	d2 := PluginDescriptor{Icon: "accessories-calculator"}
	isMime, v = d2.CategoryIconParts()
	require.False(t, isMime)
	require.Equal(t, "accessories-calculator", v)
}
