package models

// Manifest is a single environment manifest as read from disk.
// It is immutable once read: classification and install/update operations
// always work from the same content the discovery pass saw.
type Manifest struct {
	// Name is the environment name, derived from the file stem
	// (e.g. "mlstack" for environments/mlstack.yml)
	Name string `json:"name"`

	// Path is the on-disk location the manager will be pointed at.
	// For unpinned copies this is a file in the run's scratch directory.
	Path string `json:"path"`

	Content   []byte `json:"-"`
	SizeBytes int    `json:"sizeBytes"`
}
