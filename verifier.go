package fence

import "context"

// Verifier authenticates the process behind a permission request before
// any policy logic runs. Implementations typically compare the caller's
// bus credentials against the claimed PID/UID, or walk /proc to confirm
// the executable matches the claimed application.
type Verifier interface {
	// VerifyCaller returns nil when the caller may act as (pid, uid).
	VerifyCaller(ctx context.Context, pid, uid uint32) error
}

// Authorizer gates policy management calls. When configured, it is
// consulted before an application's policy set can be read back in full
// or replaced.
type Authorizer interface {
	// AuthorizePolicyUpdate returns nil when the caller may manage the
	// policy of the application identified by primary.
	AuthorizePolicyUpdate(ctx context.Context, primary string) error
}

// allowAllVerifier is the default when no Verifier is configured; the
// transport layer is then responsible for caller authentication.
type allowAllVerifier struct{}

func (allowAllVerifier) VerifyCaller(context.Context, uint32, uint32) error { return nil }
