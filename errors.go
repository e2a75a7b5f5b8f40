package fence

import "errors"

var (
	// ErrAccessDenied is returned when caller verification or an
	// authorization gate rejects a request.
	ErrAccessDenied = errors.New("fence: access denied")

	// ErrInvalidArgument is returned for malformed requests and
	// decisions.
	ErrInvalidArgument = errors.New("fence: invalid argument")

	// ErrRequestNotFound is returned when a submitted decision names a
	// pending request that does not exist, already resolved, or expired.
	// Malformed tokens map here too so probes cannot distinguish them.
	ErrRequestNotFound = errors.New("fence: pending request not found")
)
