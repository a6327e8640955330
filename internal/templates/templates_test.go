package templates

import (
	"bytes"
	"html/template"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(filepath.Join(dir, name)), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func execute(t *testing.T, s *Set, name string, data any) string {
	t.Helper()
	var buf bytes.Buffer
	err := s.Execute(func(tmpl *template.Template) error {
		return tmpl.ExecuteTemplate(&buf, name, data)
	})
	require.NoError(t, err)
	return buf.String()
}

func TestNew_EmbeddedDefaults(t *testing.T) {
	t.Parallel()

	s, err := New("")
	require.NoError(t, err)
	assert.Empty(t, s.Dir())

	err = s.Execute(func(tmpl *template.Template) error {
		assert.NotNil(t, tmpl.Lookup(IndexTemplate))
		assert.NotNil(t, tmpl.Lookup(InterventionTemplate))
		return nil
	})
	require.NoError(t, err)
}

func TestNew_MissingTemplate(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, IndexTemplate, `index`)

	_, err := New(dir)
	assert.ErrorContains(t, err, InterventionTemplate)
}

func TestReload_KeepsLastGoodSet(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, IndexTemplate, `v1 {{.}}`)
	writeFile(t, dir, InterventionTemplate, `detail`)

	s, err := New(dir)
	require.NoError(t, err)
	assert.Equal(t, "v1 x", execute(t, s, IndexTemplate, "x"))

	writeFile(t, dir, IndexTemplate, `v2 {{.}}`)
	require.NoError(t, s.Reload())
	assert.Equal(t, "v2 x", execute(t, s, IndexTemplate, "x"))

	// broken syntax
	writeFile(t, dir, IndexTemplate, `v3 {{if}}`)
	assert.Error(t, s.Reload())
	assert.Equal(t, "v2 x", execute(t, s, IndexTemplate, "x"))
}

func TestReload_ConcurrentWithExecute(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, IndexTemplate, `page`)
	writeFile(t, dir, InterventionTemplate, `detail`)

	s, err := New(dir)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Reload())
		}()
		go func() {
			defer wg.Done()
			assert.Equal(t, "page", execute(t, s, IndexTemplate, nil))
		}()
	}
	wg.Wait()
}

func TestLoadAssets(t *testing.T) {
	t.Parallel()

	t.Run("embedded defaults", func(t *testing.T) {
		t.Parallel()

		assets, err := LoadAssets("")
		require.NoError(t, err)

		var paths []string
		for _, a := range assets {
			paths = append(paths, a.Path)
			assert.NotEmpty(t, a.Data)
		}
		assert.Equal(t, []string{"live.js", "style.css"}, paths)
	})

	t.Run("directory with nested and hidden files", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		writeFile(t, dir, "style.css", "body{}")
		writeFile(t, dir, "img/logo.svg", "<svg/>")
		writeFile(t, dir, ".DS_Store", "junk")
		writeFile(t, dir, ".git/config", "junk")

		assets, err := LoadAssets(dir)
		require.NoError(t, err)
		require.Len(t, assets, 2)
		assert.Equal(t, Asset{Path: "img/logo.svg", Data: []byte("<svg/>")}, assets[0])
		assert.Equal(t, Asset{Path: "style.css", Data: []byte("body{}")}, assets[1])
	})

	t.Run("missing directory", func(t *testing.T) {
		t.Parallel()

		_, err := LoadAssets(filepath.Join(t.TempDir(), "nope"))
		assert.Error(t, err)
	})
}
