package snap

import "context"

// CertState is the lifecycle state of a domain's certificate, re-derived from
// the certificate file on every check.
type CertState int

const (
	// CertAbsent means no certificate file exists for the domain.
	CertAbsent CertState = iota
	// CertValid means strictly more than the renewal margin remains.
	CertValid
	// CertExpiringSoon means the certificate expires within the margin.
	CertExpiringSoon
	// CertExpired means the certificate's NotAfter has passed.
	CertExpired
)

func (s CertState) String() string {
	switch s {
	case CertAbsent:
		return "absent"
	case CertValid:
		return "valid"
	case CertExpiringSoon:
		return "expiring soon"
	case CertExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// CertProvider checks and (re)issues the TLS certificate for the configured
// domain set.
type CertProvider interface {
	// Check returns the state of the primary domain's certificate.
	Check() (CertState, error)

	// Issue obtains a certificate for the domain set via an HTTP-01
	// challenge. Issuance is skipped when a valid certificate already exists,
	// unless force is set.
	Issue(ctx context.Context, force bool) error
}
