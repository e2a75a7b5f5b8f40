// Package fence is a permission broker for sandboxed desktop
// applications. It decides whether an application may exercise a
// permission, prompts the user through a pluggable UI signal when no
// policy exists, persists the decisions users make, and keeps an
// append-only audit log of every check.
//
// The broker exposes no transport of its own. A bus or RPC layer calls
// [Broker.RequestPermission] when a sandboxed application asks for
// access, and [Broker.SubmitDecision] when the prompt UI answers.
package fence

import (
	"github.com/appfence/fence/appid"
	"github.com/appfence/fence/decision"
	"github.com/appfence/fence/perm"
)

// CheckRequest is one application's request to exercise a permission.
type CheckRequest struct {
	// App identifies the requesting application.
	App appid.AppID `json:"app"`

	// PID and UID identify the requesting process for caller
	// verification and the audit trail.
	PID uint32 `json:"pid"`
	UID uint32 `json:"uid"`

	// Permission is the permission being requested.
	Permission perm.Permission `json:"permission"`
}

// CheckResult is the outcome of a permission request or a submitted
// decision.
type CheckResult struct {
	// Granted reports the effective outcome. It is meaningful only when
	// PromptRequired is false.
	Granted bool `json:"granted"`

	// PromptRequired is set when no policy covered the request and the
	// user must be asked. RequestID then carries the pending token.
	PromptRequired bool `json:"prompt_required"`

	// RequestID is the opaque token a prompt UI passes back to
	// SubmitDecision. Empty unless PromptRequired.
	RequestID string `json:"request_id,omitempty"`

	// Cached is set when the outcome came from persisted policy.
	Cached bool `json:"cached"`
}

// PermissionDecision pairs a permission with a decision for batch policy
// updates.
type PermissionDecision struct {
	Permission perm.Permission   `json:"permission"`
	Decision   decision.Decision `json:"decision"`
}
