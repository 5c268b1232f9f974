package configloader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type promptDoc struct {
	Prompt string   `json:"prompt" yaml:"prompt"`
	Admins []string `json:"admins_id" yaml:"admins_id"`
}

func writeFile(t *testing.T, dir, name string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(filepath.Join(dir, name)), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
}

func TestLoad_JSONWithBOM(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config/plugin.json", append([]byte{0xEF, 0xBB, 0xBF}, []byte(`{"prompt":"hello"}`)...))

	var doc promptDoc
	require.NoError(t, NewLoader(dir).Load("config/plugin.json", &doc))
	assert.Equal(t, "hello", doc.Prompt)
}

func TestLoad_YAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "admins.yaml", []byte("admins_id:\n  - \"1001\"\n  - \"1002\"\n"))

	var doc promptDoc
	require.NoError(t, NewLoader(dir).Load("admins.yaml", &doc))
	assert.Equal(t, []string{"1001", "1002"}, doc.Admins)
}

func TestLoad_ReReadsEveryCall(t *testing.T) {
	dir := t.TempDir()
	loader := NewLoader(dir)

	writeFile(t, dir, "p.json", []byte(`{"prompt":"v1"}`))
	var first promptDoc
	require.NoError(t, loader.Load("p.json", &first))

	writeFile(t, dir, "p.json", []byte(`{"prompt":"v2"}`))
	var second promptDoc
	require.NoError(t, loader.Load("p.json", &second))

	assert.Equal(t, "v1", first.Prompt)
	assert.Equal(t, "v2", second.Prompt)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bad.json", []byte(`{"prompt":`))
	loader := NewLoader(dir)

	var doc promptDoc
	err := loader.Load("missing.json", &doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.json")

	err = loader.Load("bad.json", &doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal JSON")
}

func TestLoad_AbsolutePath(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "abs.json", []byte(`{"prompt":"abs"}`))

	var doc promptDoc
	require.NoError(t, NewLoader("/nonexistent").Load(filepath.Join(dir, "abs.json"), &doc))
	assert.Equal(t, "abs", doc.Prompt)
}
