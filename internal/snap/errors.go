package snap

import (
	"fmt"
	"strings"
	"time"
)

// NotFoundError reports that no candidate artifact of a given kind exists in
// a searched directory.
type NotFoundError struct {
	What string // e.g. "database artifact", "file-volume artifact"
	Dir  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no %s found in %s", e.What, e.Dir)
}

// DatabaseError reports a failed dump, restore or connectivity operation
// against the database service.
type DatabaseError struct {
	Op  string
	Err error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("database %s failed: %v", e.Op, e.Err)
}

func (e *DatabaseError) Unwrap() error { return e.Err }

// CertError reports a failed certificate check or issuance.
type CertError struct {
	Op  string
	Err error
}

func (e *CertError) Error() string {
	return fmt.Sprintf("certificate %s failed: %v", e.Op, e.Err)
}

func (e *CertError) Unwrap() error { return e.Err }

// RuntimeUnavailableError reports that no supported container-orchestration
// command could be found on the host.
type RuntimeUnavailableError struct {
	Tried []string
}

func (e *RuntimeUnavailableError) Error() string {
	return fmt.Sprintf("no container runtime available (tried: %s)", strings.Join(e.Tried, ", "))
}

// ReadyTimeoutError reports that the database service did not become ready
// within the configured timeout.
type ReadyTimeoutError struct {
	Service string
	Timeout time.Duration
}

func (e *ReadyTimeoutError) Error() string {
	return fmt.Sprintf("service %s not ready after %s", e.Service, e.Timeout)
}
