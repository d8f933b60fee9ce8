package app

import (
	"context"

	"github.com/wisbric/lynex/internal/httpserver"
	"github.com/wisbric/lynex/pkg/credential"
)

// credentialResolverAdapter bridges pkg/credential.Service to
// httpserver.CredentialResolver. The two packages declare their own
// narrow Resolve interfaces (credential.Credential vs. httpserver.Identity)
// to avoid an import cycle, so something at the wiring layer has to adapt
// between them.
type credentialResolverAdapter struct {
	service *credential.Service
}

func (a credentialResolverAdapter) Resolve(ctx context.Context, cleartextKey string) (httpserver.Identity, error) {
	c, err := a.service.Resolve(ctx, cleartextKey)
	if err != nil {
		return httpserver.Identity{}, err
	}
	return httpserver.Identity{CredentialID: c.ID.String(), ProjectID: c.ProjectID}, nil
}

// billingLimitLookup breaks the construction cycle between pkg/usage and
// pkg/billing: usage.Accountant needs a LimitLookup at construction time,
// but the only implementation is billing.Service, which itself needs an
// already-constructed Accountant as its usageResetter. This indirection
// lets the Accountant be built first; svc is filled in once the billing
// Service exists, before either is used to serve a request.
type billingLimitLookup struct {
	svc billingLimiter
}

// billingLimiter is the subset of billing.Service this package depends on.
type billingLimiter interface {
	Limit(ctx context.Context, userID string) (limit int64, unlimited bool, err error)
}

func (l *billingLimitLookup) Limit(ctx context.Context, userID string) (int64, bool, error) {
	return l.svc.Limit(ctx, userID)
}
