package plugin

import (
	"context"
	"log/slog"

	"github.com/appfence/fence/appid"
	"github.com/appfence/fence/id"
	"github.com/appfence/fence/policy"
)

// Named entry types pair a hook with the plugin name for logging.

type beforeRequestEntry struct {
	name string
	hook BeforeRequest
}
type afterRequestEntry struct {
	name string
	hook AfterRequest
}
type promptRequestedEntry struct {
	name string
	hook PromptRequested
}
type decisionStoredEntry struct {
	name string
	hook DecisionStored
}
type policyUpdatedEntry struct {
	name string
	hook PolicyUpdated
}
type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered plugins and dispatches lifecycle events.
// It type-caches plugins at registration time so emit calls iterate
// only over plugins implementing the relevant hook.
type Registry struct {
	plugins []Plugin
	logger  *slog.Logger

	beforeRequest   []beforeRequestEntry
	afterRequest    []afterRequestEntry
	promptRequested []promptRequestedEntry
	decisionStored  []decisionStoredEntry
	policyUpdated   []policyUpdatedEntry
	shutdown        []shutdownEntry
}

// NewRegistry creates a plugin registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register adds a plugin and type-asserts it into all applicable
// hook caches. Plugins are notified in registration order.
func (r *Registry) Register(p Plugin) {
	r.plugins = append(r.plugins, p)
	name := p.Name()

	if h, ok := p.(BeforeRequest); ok {
		r.beforeRequest = append(r.beforeRequest, beforeRequestEntry{name, h})
	}
	if h, ok := p.(AfterRequest); ok {
		r.afterRequest = append(r.afterRequest, afterRequestEntry{name, h})
	}
	if h, ok := p.(PromptRequested); ok {
		r.promptRequested = append(r.promptRequested, promptRequestedEntry{name, h})
	}
	if h, ok := p.(DecisionStored); ok {
		r.decisionStored = append(r.decisionStored, decisionStoredEntry{name, h})
	}
	if h, ok := p.(PolicyUpdated); ok {
		r.policyUpdated = append(r.policyUpdated, policyUpdatedEntry{name, h})
	}
	if h, ok := p.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Plugins returns all registered plugins.
func (r *Registry) Plugins() []Plugin { return r.plugins }

// EmitBeforeRequest notifies all plugins that implement BeforeRequest.
func (r *Registry) EmitBeforeRequest(ctx context.Context, req any) {
	for _, e := range r.beforeRequest {
		if err := e.hook.OnBeforeRequest(ctx, req); err != nil {
			r.logHookError("OnBeforeRequest", e.name, err)
		}
	}
}

// EmitAfterRequest notifies all plugins that implement AfterRequest.
func (r *Registry) EmitAfterRequest(ctx context.Context, req, result any) {
	for _, e := range r.afterRequest {
		if err := e.hook.OnAfterRequest(ctx, req, result); err != nil {
			r.logHookError("OnAfterRequest", e.name, err)
		}
	}
}

// EmitPromptRequested notifies all plugins that implement PromptRequested.
func (r *Registry) EmitPromptRequested(ctx context.Context, requestID id.RequestID, req any) {
	for _, e := range r.promptRequested {
		if err := e.hook.OnPromptRequested(ctx, requestID, req); err != nil {
			r.logHookError("OnPromptRequested", e.name, err)
		}
	}
}

// EmitDecisionStored notifies all plugins that implement DecisionStored.
func (r *Registry) EmitDecisionStored(ctx context.Context, rec *policy.Record) {
	for _, e := range r.decisionStored {
		if err := e.hook.OnDecisionStored(ctx, rec); err != nil {
			r.logHookError("OnDecisionStored", e.name, err)
		}
	}
}

// EmitPolicyUpdated notifies all plugins that implement PolicyUpdated.
func (r *Registry) EmitPolicyUpdated(ctx context.Context, app appid.AppID, recs []*policy.Record) {
	for _, e := range r.policyUpdated {
		if err := e.hook.OnPolicyUpdated(ctx, app, recs); err != nil {
			r.logHookError("OnPolicyUpdated", e.name, err)
		}
	}
}

// EmitShutdown notifies all plugins that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Errors from hooks are never propagated — they must not block the pipeline.
func (r *Registry) logHookError(hook, pluginName string, err error) {
	r.logger.Warn("plugin hook error",
		slog.String("hook", hook),
		slog.String("plugin", pluginName),
		slog.String("error", err.Error()),
	)
}
