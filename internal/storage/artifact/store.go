// Package artifact stores run outputs under slash-separated keys such as
// runs/<run-id>/trades.csv.
package artifact

import (
	"context"
	"fmt"
	"mime"
	"path"

	"github.com/newthinker/tradesim/internal/core"
)

// Store defines the interface for artifact storage backends
type Store interface {
	// Put stores data under key
	Put(ctx context.Context, key string, data []byte) error

	// Get retrieves the data stored under key
	Get(ctx context.Context, key string) ([]byte, error)

	// List returns all keys under prefix, sorted
	List(ctx context.Context, prefix string) ([]string, error)

	// Exists checks if key is present
	Exists(ctx context.Context, key string) (bool, error)
}

// Open creates the store named by kind: "localfs" rooted at dir, or "s3".
func Open(kind, dir string, s3cfg S3Config) (Store, error) {
	switch kind {
	case "localfs":
		return NewLocalFS(dir)
	case "s3":
		return NewS3(s3cfg)
	}
	return nil, core.Errorf(core.ErrConfigInvalid, "unknown artifact store %q", kind)
}

// ContentType guesses the media type of key from its extension.
func ContentType(key string) string {
	switch ext := path.Ext(key); ext {
	case ".csv":
		return "text/csv"
	case ".json":
		return "application/json"
	default:
		if t := mime.TypeByExtension(ext); t != "" {
			return t
		}
	}
	return "application/octet-stream"
}

func storageErr(op, key string, err error) error {
	return core.WrapError(core.ErrStorageFailed, fmt.Errorf("%s %s: %w", op, key, err))
}
