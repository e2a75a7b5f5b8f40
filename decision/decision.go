// Package decision defines the outcomes a user (or administrator) can give
// to a permission prompt, and which of those outcomes persist as policy.
package decision

import (
	"fmt"
	"strings"
	"time"
)

// Kind discriminates the decision union.
type Kind string

const (
	// KindAllowOnce grants this single request only.
	KindAllowOnce Kind = "allow_once"

	// KindAllowAlways grants and persists without expiry.
	KindAllowAlways Kind = "allow_always"

	// KindDenyOnce denies this single request only.
	KindDenyOnce Kind = "deny_once"

	// KindDenyAlways denies and persists without expiry.
	KindDenyAlways Kind = "deny_always"

	// KindAllowFor grants and persists until the duration elapses.
	KindAllowFor Kind = "allow_for"
)

// Decision is a prompt outcome. For is meaningful only when Kind is
// KindAllowFor. Values are comparable.
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receiver for UnmarshalText.
type Decision struct {
	Kind Kind          `json:"kind"`
	For  time.Duration `json:"for,omitempty"`
}

// The four fixed decisions.
var (
	AllowOnce   = Decision{Kind: KindAllowOnce}
	AllowAlways = Decision{Kind: KindAllowAlways}
	DenyOnce    = Decision{Kind: KindDenyOnce}
	DenyAlways  = Decision{Kind: KindDenyAlways}
)

// AllowFor builds a time-limited grant.
func AllowFor(d time.Duration) Decision {
	return Decision{Kind: KindAllowFor, For: d}
}

// Validate checks the decision shape.
func (d Decision) Validate() error {
	switch d.Kind {
	case KindAllowOnce, KindAllowAlways, KindDenyOnce, KindDenyAlways:
		if d.For != 0 {
			return fmt.Errorf("decision: %s carries no duration", d.Kind)
		}
		return nil
	case KindAllowFor:
		if d.For <= 0 {
			return fmt.Errorf("decision: allow_for requires a positive duration, got %s", d.For)
		}
		return nil
	default:
		return fmt.Errorf("decision: unknown kind %q", d.Kind)
	}
}

// Granted reports whether the decision grants access.
func (d Decision) Granted() bool {
	switch d.Kind {
	case KindAllowOnce, KindAllowAlways, KindAllowFor:
		return true
	default:
		return false
	}
}

// Persistent reports whether the decision is stored as policy.
// One-shot decisions apply to the triggering request only.
func (d Decision) Persistent() bool {
	switch d.Kind {
	case KindAllowAlways, KindDenyAlways, KindAllowFor:
		return true
	default:
		return false
	}
}

// Encode returns the stable textual form used in storage and audit
// records: the kind name, with the duration appended for allow_for
// ("allow_for:5m0s").
func (d Decision) Encode() string {
	if d.Kind == KindAllowFor {
		return string(KindAllowFor) + ":" + d.For.String()
	}
	return string(d.Kind)
}

// String returns the Encode form.
func (d Decision) String() string { return d.Encode() }

// Parse is the inverse of Encode.
func Parse(s string) (Decision, error) {
	if s == "" {
		return Decision{}, fmt.Errorf("decision: parse empty string")
	}

	kind, rest, found := strings.Cut(s, ":")
	switch Kind(kind) {
	case KindAllowOnce, KindAllowAlways, KindDenyOnce, KindDenyAlways:
		if found {
			return Decision{}, fmt.Errorf("decision: parse %q: unexpected payload", s)
		}
		return Decision{Kind: Kind(kind)}, nil
	case KindAllowFor:
		if !found {
			return Decision{}, fmt.Errorf("decision: parse %q: allow_for requires a duration", s)
		}
		dur, err := time.ParseDuration(rest)
		if err != nil {
			return Decision{}, fmt.Errorf("decision: parse %q: %w", s, err)
		}
		d := AllowFor(dur)
		if err := d.Validate(); err != nil {
			return Decision{}, err
		}
		return d, nil
	default:
		return Decision{}, fmt.Errorf("decision: parse %q: unknown kind %q", s, kind)
	}
}

// MarshalText implements encoding.TextMarshaler using the Encode form.
func (d Decision) MarshalText() ([]byte, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return []byte(d.Encode()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Decision) UnmarshalText(data []byte) error {
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
