package plugin

import (
	"context"
	"errors"
	"testing"
)

// recordingPlugin subscribes to a few hooks and records what it saw.
type recordingPlugin struct {
	name     string
	debits   int
	webhooks []string
	failErr  error
}

func (p *recordingPlugin) Name() string { return p.name }

func (p *recordingPlugin) OnCreditsDebited(_ context.Context, _ interface{}) error {
	p.debits++
	return p.failErr
}

func (p *recordingPlugin) OnWebhookReceived(_ context.Context, eventID, _, _ string) error {
	p.webhooks = append(p.webhooks, eventID)
	return nil
}

type providerPlugin struct{}

func (providerPlugin) Name() string          { return "stub-provider" }
func (providerPlugin) Provider() interface{} { return nil }

func TestRegisterAndDispatch(t *testing.T) {
	r := NewRegistry()
	p := &recordingPlugin{name: "recorder"}

	if err := r.Register(p); err != nil {
		t.Fatal(err)
	}
	if r.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", r.Count())
	}
	if r.Get("recorder") != p {
		t.Error("Get did not return the registered plugin")
	}

	ctx := context.Background()
	r.EmitCreditsDebited(ctx, nil)
	r.EmitCreditsDebited(ctx, nil)
	r.EmitWebhookReceived(ctx, "evt_1", "pay_1", "succeeded")

	// Hooks the plugin does not implement are simply skipped.
	r.EmitPaymentCreated(ctx, nil)

	if p.debits != 2 {
		t.Errorf("debit hook fired %d times, want 2", p.debits)
	}
	if len(p.webhooks) != 1 || p.webhooks[0] != "evt_1" {
		t.Errorf("webhook hook saw %v, want [evt_1]", p.webhooks)
	}
}

func TestRegisterDuplicateName(t *testing.T) {
	r := NewRegistry()

	if err := r.Register(&recordingPlugin{name: "dup"}); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(&recordingPlugin{name: "dup"}); err == nil {
		t.Error("duplicate registration accepted")
	}
}

func TestHookFailureIsIsolated(t *testing.T) {
	r := NewRegistry()
	failing := &recordingPlugin{name: "failing", failErr: errors.New("boom")}
	healthy := &recordingPlugin{name: "healthy"}

	if err := r.Register(failing); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(healthy); err != nil {
		t.Fatal(err)
	}

	// A failing hook is logged, not propagated, and later plugins still run.
	r.EmitCreditsDebited(context.Background(), nil)

	if failing.debits != 1 || healthy.debits != 1 {
		t.Errorf("hook counts = %d/%d, want 1/1", failing.debits, healthy.debits)
	}
}

func TestCheckoutProviders(t *testing.T) {
	r := NewRegistry()

	if err := r.Register(providerPlugin{}); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(&recordingPlugin{name: "recorder"}); err != nil {
		t.Fatal(err)
	}

	providers := r.CheckoutProviders()
	if len(providers) != 1 {
		t.Fatalf("CheckoutProviders() returned %d, want 1", len(providers))
	}
	if providers[0].Name() != "stub-provider" {
		t.Errorf("provider name = %s", providers[0].Name())
	}
}
