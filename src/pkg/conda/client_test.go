package conda

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestCreateArgs(t *testing.T) {
	tests := []struct {
		name     string
		libmamba bool
		want     []string
	}{
		{
			name:     "without solver flag",
			libmamba: false,
			want:     []string{"env", "create", "--file", "/m/data.yml", "--name", "data", "--yes"},
		},
		{
			name:     "with solver flag",
			libmamba: true,
			want:     []string{"env", "create", "--file", "/m/data.yml", "--name", "data", "--yes", SOLVER_FLAG},
		},
	}

	c := NewCLI("/usr/bin/conda")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.CreateArgs("data", "/m/data.yml", tt.libmamba)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("CreateArgs() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUpdateArgs(t *testing.T) {
	c := NewCLI("/usr/bin/conda")

	got := c.UpdateArgs("data", "/m/data.yml", true)
	want := []string{"env", "update", "--name", "data", "--file", "/m/data.yml", "--prune", SOLVER_FLAG}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("UpdateArgs() = %v, want %v", got, want)
	}
}

func TestLocatePrefersCondaExe(t *testing.T) {
	exe := filepath.Join(t.TempDir(), "conda")
	if err := os.WriteFile(exe, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatal(err)
	}
	t.Setenv(CONDA_EXE_ENV, exe)

	c, err := Locate()
	if err != nil {
		t.Fatalf("Locate() error = %v", err)
	}
	if c.Path() != exe {
		t.Errorf("Locate() path = %s, want %s", c.Path(), exe)
	}
}

func TestLocateNotFound(t *testing.T) {
	t.Setenv(CONDA_EXE_ENV, "")
	t.Setenv("PATH", t.TempDir())

	if _, err := Locate(); err != ErrManagerNotFound {
		t.Errorf("Locate() error = %v, want ErrManagerNotFound", err)
	}
}
