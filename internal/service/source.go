package service

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrInvalidSourceName is returned for names that are empty, contain path
// separators or have an unsupported extension.
var ErrInvalidSourceName = errors.New("invalid source file name")

// SourceFile represents an uploaded vector source kept on disk.
type SourceFile struct {
	Name     string `json:"name" doc:"File name" example:"roads.geojson"`
	Size     string `json:"size" doc:"Human-readable file size" example:"1.2 MB"`
	FileType string `json:"fileType" doc:"File type" example:"GeoJSON"`
}

// Supported source file extensions and their types
var extToType = map[string]string{
	".geojson": "GeoJSON",
	".json":    "GeoJSON",
	".fgb":     "FlatGeobuf",
}

// SourceService manages the source files layers can be imported from.
type SourceService struct {
	sourcesDir string
}

// NewSourceService creates a new source service.
func NewSourceService(dataDir string) *SourceService {
	return &SourceService{
		sourcesDir: filepath.Join(dataDir, "sources"),
	}
}

// List returns all available source files, sorted by name.
func (s *SourceService) List() ([]SourceFile, error) {
	entries, err := os.ReadDir(s.sourcesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []SourceFile{}, nil
		}
		return nil, err
	}

	files := []SourceFile{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		fileType, ok := FileType(entry.Name())
		if !ok {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		files = append(files, SourceFile{
			Name:     entry.Name(),
			Size:     formatSize(info.Size()),
			FileType: fileType,
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })

	return files, nil
}

// Read returns the content of a source file.
func (s *SourceService) Read(name string) ([]byte, error) {
	path, err := s.path(name)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// Save stores data under name, replacing any existing file.
func (s *SourceService) Save(name string, data []byte) (SourceFile, error) {
	path, err := s.path(name)
	if err != nil {
		return SourceFile{}, err
	}
	if err := os.MkdirAll(s.sourcesDir, 0755); err != nil {
		return SourceFile{}, err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		opsf("saving source %s: %v", name, err)
		return SourceFile{}, err
	}
	fileType, _ := FileType(name)
	return SourceFile{Name: name, Size: formatSize(int64(len(data))), FileType: fileType}, nil
}

// SourcesDir returns the path to the sources directory.
func (s *SourceService) SourcesDir() string {
	return s.sourcesDir
}

func (s *SourceService) path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidSourceName, name)
	}
	if _, ok := FileType(name); !ok {
		return "", fmt.Errorf("%w: unsupported extension %q", ErrInvalidSourceName, filepath.Ext(name))
	}
	return filepath.Join(s.sourcesDir, name), nil
}

// FileType maps a file name to its source type by extension.
func FileType(name string) (string, bool) {
	t, ok := extToType[strings.ToLower(filepath.Ext(name))]
	return t, ok
}

// formatSize returns a human-readable file size.
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
