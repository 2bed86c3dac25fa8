package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gh-nvat/conda-envsync/src/pkg/models"

	log "github.com/sirupsen/logrus"
)

var logger = log.WithField("package", "manifest")

var (
	// ErrDirMissing indicates that the manifests directory doesn't exist
	ErrDirMissing = errors.New("manifests directory not found")
	// ErrNoManifests indicates that the manifests directory holds no manifest files
	ErrNoManifests = errors.New("no manifest files found")
)

var MANIFEST_EXTENSIONS = []string{".yml", ".yaml"}

// Load reads a single manifest file. The environment name is the file stem.
func Load(path string) (models.Manifest, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return models.Manifest{}, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}
	return models.Manifest{
		Name:      nameFromPath(path),
		Path:      path,
		Content:   content,
		SizeBytes: len(content),
	}, nil
}

// Discover loads every manifest file in dir. Entries come back in directory
// name order; callers must not depend on cross-environment ordering.
func Discover(dir string) ([]models.Manifest, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrDirMissing, dir)
		}
		return nil, fmt.Errorf("failed to stat manifests directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrDirMissing, dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifests directory %s: %w", dir, err)
	}

	var manifests []models.Manifest
	for _, entry := range entries {
		if entry.IsDir() || !isManifestFile(entry.Name()) {
			continue
		}
		m, err := Load(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		manifests = append(manifests, m)
	}
	if len(manifests) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoManifests, dir)
	}

	sort.Slice(manifests, func(i, j int) bool { return manifests[i].Name < manifests[j].Name })
	logger.WithField("dir", dir).Infof("Discovered %d manifests", len(manifests))
	return manifests, nil
}

func isManifestFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range MANIFEST_EXTENSIONS {
		if ext == allowed {
			return true
		}
	}
	return false
}

func nameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// StripPrefixLines removes the machine-specific "prefix:" line that
// `conda env export` appends, so exported manifests are portable.
func StripPrefixLines(content []byte) []byte {
	lines := strings.Split(string(content), "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "prefix:") {
			continue
		}
		kept = append(kept, line)
	}
	return []byte(strings.Join(kept, "\n"))
}
