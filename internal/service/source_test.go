package service

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceServiceSaveListRead(t *testing.T) {
	s := NewSourceService(t.TempDir())

	files, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, files)

	_, err = s.Save("roads.geojson", []byte(roadsJSON))
	require.NoError(t, err)
	_, err = s.Save("parcels.fgb", make([]byte, 2048))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(s.SourcesDir(), "notes.txt"), []byte("x"), 0644))

	files, err = s.List()
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, SourceFile{Name: "parcels.fgb", Size: "2.0 KB", FileType: "FlatGeobuf"}, files[0])
	assert.Equal(t, "GeoJSON", files[1].FileType)

	data, err := s.Read("roads.geojson")
	require.NoError(t, err)
	assert.JSONEq(t, roadsJSON, string(data))
}

func TestSourceServiceRejectsBadNames(t *testing.T) {
	s := NewSourceService(t.TempDir())
	for _, name := range []string{"", "../escape.geojson", "a/b.geojson", ".hidden.json", "raster.tif"} {
		_, err := s.Save(name, []byte("{}"))
		assert.True(t, errors.Is(err, ErrInvalidSourceName), name)
		_, err = s.Read(name)
		assert.True(t, errors.Is(err, ErrInvalidSourceName), name)
	}
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 B", formatSize(512))
	assert.Equal(t, "1.5 KB", formatSize(1536))
	assert.Equal(t, "3.0 MB", formatSize(3<<20))
}
