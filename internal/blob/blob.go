// Package blob defines where export artifacts are written.
package blob

import (
	"context"
	"io"
)

// Store writes one object and returns a URI that locates it.
type Store interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}
