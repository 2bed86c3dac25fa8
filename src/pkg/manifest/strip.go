package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gh-nvat/conda-envsync/src/pkg/models"
)

// pinnedEntryPattern matches a dependency list entry carrying a version
// constraint, in both manager form ("numpy=1.21=py39h...") and pip form
// ("requests==2.25.1", "pandas>=1.0,<2.0"). Capture 1 is the list-item
// indentation, capture 2 the bare package name (optionally with extras).
// Lines without an operator (channel names, "pip:", the env name) never match,
// so everything outside pinned entries passes through untouched.
var pinnedEntryPattern = regexp.MustCompile(`^(\s*-\s+)([A-Za-z0-9_][A-Za-z0-9_.\-]*(?:\[[^\]]*\])?)\s*(?:==|>=|<=|~=|!=|=|<|>).*$`)

// StripPins produces an unpinned copy of a manifest, written into the
// caller-supplied scratch directory. The original file is never mutated.
// On any transform or write failure the original manifest is returned
// unchanged so the run is never blocked by the transform.
func StripPins(m models.Manifest, scratchDir string) models.Manifest {
	stripped := StripPinsContent(m.Content)

	derivedPath := filepath.Join(scratchDir, fmt.Sprintf("%s-unpinned.yml", m.Name))
	if err := os.WriteFile(derivedPath, stripped, 0644); err != nil {
		logger.WithField("env", m.Name).WithField("error", err).
			Warn("Failed to write unpinned manifest, falling back to original")
		return m
	}

	return models.Manifest{
		Name:      m.Name,
		Path:      derivedPath,
		Content:   stripped,
		SizeBytes: len(stripped),
	}
}

// StripPinsContent removes version constraints from dependency entries,
// line by line, preserving indentation and section boundaries.
// Idempotent: stripped entries carry no operator and never match again.
func StripPinsContent(content []byte) []byte {
	lines := strings.Split(string(content), "\n")
	for i, line := range lines {
		if match := pinnedEntryPattern.FindStringSubmatch(line); match != nil {
			lines[i] = match[1] + match[2]
		}
	}
	return []byte(strings.Join(lines, "\n"))
}
