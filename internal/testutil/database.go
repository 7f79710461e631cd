package testutil

import (
	"context"
	"io"

	"wpsnap/internal/snap"
)

// FakeDatabaseClient is an in-memory snap.DatabaseClient.
type FakeDatabaseClient struct {
	// DumpContent is what Dump writes.
	DumpContent []byte
	DumpErr     error

	// Restored records the artifacts passed to RestoreDump, in order.
	Restored   []snap.Artifact
	RestoreErr error

	// WaitReadyErr is returned by WaitReady. WaitCalls counts invocations.
	WaitReadyErr error
	WaitCalls    int
}

func NewFakeDatabaseClient() *FakeDatabaseClient {
	return &FakeDatabaseClient{DumpContent: []byte("-- dump\n")}
}

func (c *FakeDatabaseClient) Dump(_ context.Context, w io.Writer) error {
	if c.DumpErr != nil {
		return c.DumpErr
	}
	_, err := w.Write(c.DumpContent)
	return err
}

func (c *FakeDatabaseClient) RestoreDump(_ context.Context, artifact snap.Artifact) error {
	if c.RestoreErr != nil {
		return c.RestoreErr
	}
	c.Restored = append(c.Restored, artifact)
	return nil
}

func (c *FakeDatabaseClient) WaitReady(_ context.Context) error {
	c.WaitCalls++
	return c.WaitReadyErr
}

// Compile-time check that FakeDatabaseClient implements snap.DatabaseClient
var _ snap.DatabaseClient = (*FakeDatabaseClient)(nil)
