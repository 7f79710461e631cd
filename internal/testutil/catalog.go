package testutil

import (
	"testing"

	"wpsnap/internal/catalog"
)

// NewTestCatalog creates an in-memory catalog with schema applied.
// The catalog is automatically closed when the test completes.
func NewTestCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()

	c, err := catalog.Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open catalog: %v", err)
	}

	t.Cleanup(func() {
		c.Close()
	})

	return c
}
