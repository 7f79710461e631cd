package snap

import (
	"context"
	"io"
)

// Vault is an offsite replication target for snapshot artifacts.
// All operations stream through io.Reader/io.Writer so large archives never
// have to fit in memory.
type Vault interface {
	// Put stores an object under key. size is the number of bytes that will
	// be read from r.
	Put(ctx context.Context, key string, r io.Reader, size int64) error

	// Get retrieves the object under key and writes it to w.
	Get(ctx context.Context, key string, w io.Writer) error

	// ValidateSetup verifies that the vault is accessible and properly
	// configured.
	ValidateSetup(ctx context.Context) error
}
