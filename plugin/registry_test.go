package plugin

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/appfence/fence/appid"
	"github.com/appfence/fence/decision"
	"github.com/appfence/fence/id"
	"github.com/appfence/fence/perm"
	"github.com/appfence/fence/policy"
)

// recorderPlugin implements every hook and records the calls.
type recorderPlugin struct {
	name  string
	calls []string
	fail  bool
}

func (p *recorderPlugin) Name() string { return p.name }

func (p *recorderPlugin) record(hook string) error {
	p.calls = append(p.calls, hook)
	if p.fail {
		return fmt.Errorf("%s: induced failure", p.name)
	}
	return nil
}

func (p *recorderPlugin) OnBeforeRequest(context.Context, any) error { return p.record("before") }
func (p *recorderPlugin) OnAfterRequest(context.Context, any, any) error {
	return p.record("after")
}
func (p *recorderPlugin) OnPromptRequested(context.Context, id.RequestID, any) error {
	return p.record("prompt")
}
func (p *recorderPlugin) OnDecisionStored(context.Context, *policy.Record) error {
	return p.record("stored")
}
func (p *recorderPlugin) OnPolicyUpdated(context.Context, appid.AppID, []*policy.Record) error {
	return p.record("updated")
}
func (p *recorderPlugin) OnShutdown(context.Context) error { return p.record("shutdown") }

// namedOnly implements no hooks beyond the base interface.
type namedOnly struct{}

func (namedOnly) Name() string { return "named-only" }

func testRegistry() *Registry {
	return NewRegistry(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRegisterAndEmitAll(t *testing.T) {
	r := testRegistry()
	p := &recorderPlugin{name: "recorder"}
	r.Register(p)
	r.Register(namedOnly{})

	if len(r.Plugins()) != 2 {
		t.Fatalf("Plugins() = %d, want 2", len(r.Plugins()))
	}

	ctx := context.Background()
	rec := &policy.Record{
		App:        appid.FromPackage("org.example.app"),
		Permission: perm.Clipboard(),
		Decision:   decision.AllowAlways,
	}
	r.EmitBeforeRequest(ctx, nil)
	r.EmitAfterRequest(ctx, nil, nil)
	r.EmitPromptRequested(ctx, id.NewRequestID(), nil)
	r.EmitDecisionStored(ctx, rec)
	r.EmitPolicyUpdated(ctx, rec.App, []*policy.Record{rec})
	r.EmitShutdown(ctx)

	want := []string{"before", "after", "prompt", "stored", "updated", "shutdown"}
	if len(p.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", p.calls, want)
	}
	for i, hook := range want {
		if p.calls[i] != hook {
			t.Fatalf("calls[%d] = %q, want %q", i, p.calls[i], hook)
		}
	}
}

func TestHookErrorDoesNotStopOthers(t *testing.T) {
	r := testRegistry()
	failing := &recorderPlugin{name: "failing", fail: true}
	healthy := &recorderPlugin{name: "healthy"}
	r.Register(failing)
	r.Register(healthy)

	r.EmitBeforeRequest(context.Background(), nil)

	if len(failing.calls) != 1 {
		t.Fatalf("failing calls = %v", failing.calls)
	}
	if len(healthy.calls) != 1 {
		t.Fatal("error in one plugin suppressed the next")
	}
}

func TestEmitOrderFollowsRegistration(t *testing.T) {
	r := testRegistry()
	var order []string
	mk := func(name string) *orderPlugin { return &orderPlugin{name: name, order: &order} }
	r.Register(mk("first"))
	r.Register(mk("second"))
	r.Register(mk("third"))

	r.EmitShutdown(context.Background())

	want := []string{"first", "second", "third"}
	for i, name := range want {
		if order[i] != name {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

type orderPlugin struct {
	name  string
	order *[]string
}

func (p *orderPlugin) Name() string { return p.name }
func (p *orderPlugin) OnShutdown(context.Context) error {
	*p.order = append(*p.order, p.name)
	return nil
}
