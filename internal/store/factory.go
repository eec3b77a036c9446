package store

import "fmt"

// BackendPaths holds the three default-named paths for the three concrete
// encodings (spec §6): data.json, data.pkl, data.db.
type BackendPaths struct {
	JSONPath   string
	BlobPath   string
	SQLitePath string
}

// DefaultBackendPaths returns the spec's default paths.
func DefaultBackendPaths() BackendPaths {
	return BackendPaths{
		JSONPath:   "data.json",
		BlobPath:   "data.pkl",
		SQLitePath: "data.db",
	}
}

// New constructs a Repository for the given backend tag. Recognized tags:
// "json", "pickle" (binary blob), and "sqlite" (aliases "sql", "db").
func New(backend string, paths BackendPaths) (Repository, error) {
	switch backend {
	case "json":
		return NewJSONRepository(paths.JSONPath)
	case "pickle":
		return NewBlobRepository(paths.BlobPath)
	case "sqlite", "sql", "db":
		return NewSQLiteRepository(paths.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown backend_type %q", backend)
	}
}
