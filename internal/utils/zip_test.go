package utils

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZipDirectory(t *testing.T) {
	source := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(source, "main-url-0.report.json"), []byte(`{"a":1}`), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(source, "nested"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(source, "nested", "file.txt"), []byte("hello"), 0644))

	target := filepath.Join(t.TempDir(), "out.zip")
	require.NoError(t, ZipDirectory(source, target))

	archive, err := zip.OpenReader(target)
	require.NoError(t, err)
	defer archive.Close()

	names := make(map[string]string)
	for _, f := range archive.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		names[f.Name] = string(data)
	}

	assert.Equal(t, map[string]string{
		"main-url-0.report.json": `{"a":1}`,
		"nested/file.txt":        "hello",
	}, names)
}

func TestZipDirectoryMissingSource(t *testing.T) {
	target := filepath.Join(t.TempDir(), "out.zip")
	assert.Error(t, ZipDirectory(filepath.Join(t.TempDir(), "nope"), target))
}
