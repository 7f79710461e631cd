package testutil

import (
	"context"

	"wpsnap/internal/snap"
)

// FakeCertProvider is an in-memory snap.CertProvider.
type FakeCertProvider struct {
	State    snap.CertState
	CheckErr error

	// IssueCalls records the force flag of each Issue call.
	IssueCalls []bool
	IssueErr   error
}

func NewFakeCertProvider(state snap.CertState) *FakeCertProvider {
	return &FakeCertProvider{State: state}
}

func (p *FakeCertProvider) Check() (snap.CertState, error) {
	return p.State, p.CheckErr
}

func (p *FakeCertProvider) Issue(_ context.Context, force bool) error {
	p.IssueCalls = append(p.IssueCalls, force)
	if p.IssueErr != nil {
		return p.IssueErr
	}
	p.State = snap.CertValid
	return nil
}

// Compile-time check that FakeCertProvider implements snap.CertProvider
var _ snap.CertProvider = (*FakeCertProvider)(nil)
