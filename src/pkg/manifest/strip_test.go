package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gh-nvat/conda-envsync/src/pkg/models"
)

func TestStripPinsContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "manager pin with build string",
			content: "dependencies:\n  - numpy=1.21.0=py39h1234\n",
			want:    "dependencies:\n  - numpy\n",
		},
		{
			name:    "pip style double equals",
			content: "      - requests==2.25.1\n",
			want:    "      - requests\n",
		},
		{
			name:    "range constraint",
			content: "  - pandas>=1.0,<2.0\n",
			want:    "  - pandas\n",
		},
		{
			name:    "compatible release operator",
			content: "  - flask~=2.0\n",
			want:    "  - flask\n",
		},
		{
			name:    "extras preserved",
			content: "      - uvicorn[standard]==0.20.0\n",
			want:    "      - uvicorn[standard]\n",
		},
		{
			name:    "unpinned entry untouched",
			content: "  - numpy\n  - scipy\n",
			want:    "  - numpy\n  - scipy\n",
		},
		{
			name:    "pip section marker untouched",
			content: "  - pip:\n      - requests==2.25.1\n",
			want:    "  - pip:\n      - requests\n",
		},
		{
			name:    "channels and name untouched",
			content: "name: myenv\nchannels:\n  - conda-forge\ndependencies:\n  - python=3.9\n",
			want:    "name: myenv\nchannels:\n  - conda-forge\ndependencies:\n  - python\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := string(StripPinsContent([]byte(tt.content)))
			if got != tt.want {
				t.Errorf("StripPinsContent() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStripPinsContentIdempotent(t *testing.T) {
	content := []byte("name: myenv\ndependencies:\n  - python=3.9\n  - numpy=1.21=py39h1234\n  - pip:\n      - requests==2.25.1\n")
	once := StripPinsContent(content)
	twice := StripPinsContent(once)
	if string(once) != string(twice) {
		t.Errorf("StripPinsContent() is not idempotent: %q != %q", once, twice)
	}
}

func TestStripPins(t *testing.T) {
	scratchDir := t.TempDir()
	m := models.Manifest{
		Name:      "myenv",
		Path:      "/original/myenv.yml",
		Content:   []byte("dependencies:\n  - numpy=1.21\n"),
		SizeBytes: len("dependencies:\n  - numpy=1.21\n"),
	}

	got := StripPins(m, scratchDir)

	if got.Path == m.Path {
		t.Error("StripPins() did not produce a derived path")
	}
	if filepath.Dir(got.Path) != scratchDir {
		t.Errorf("StripPins() wrote outside scratch dir: %s", got.Path)
	}
	if !strings.HasSuffix(got.Path, "myenv-unpinned.yml") {
		t.Errorf("StripPins() derived path = %s, want *-unpinned.yml", got.Path)
	}
	if strings.Contains(string(got.Content), "=1.21") {
		t.Errorf("StripPins() content still pinned: %s", got.Content)
	}

	onDisk, err := os.ReadFile(got.Path)
	if err != nil {
		t.Fatalf("failed to read derived manifest: %v", err)
	}
	if string(onDisk) != string(got.Content) {
		t.Errorf("derived file content = %q, want %q", onDisk, got.Content)
	}
}

func TestStripPinsFallsBackOnWriteFailure(t *testing.T) {
	m := models.Manifest{
		Name:    "myenv",
		Path:    "/original/myenv.yml",
		Content: []byte("dependencies:\n  - numpy=1.21\n"),
	}

	got := StripPins(m, "/nonexistent/scratch/dir")

	if got.Path != m.Path {
		t.Errorf("StripPins() path = %s, want original %s on write failure", got.Path, m.Path)
	}
	if string(got.Content) != string(m.Content) {
		t.Error("StripPins() must return the original content on write failure")
	}
}
