package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/sessionmesh/core"
)

// Interface compliance (compile-time assertions)
var _ core.Agent = (*Func)(nil)

func TestFunc_Handle(t *testing.T) {
	a := NewFunc("echo", []string{"analysis"}, func(ctx context.Context, msg core.Message) ([]byte, error) {
		return msg.Payload(), nil
	})

	msg := core.NewMessage("s1").WithPayload([]byte("ping")).Build()
	reply, err := a.Handle(context.Background(), msg)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if string(reply.Payload) != "ping" {
		t.Fatalf("payload: got %q", string(reply.Payload))
	}
}

func TestFunc_HandleError(t *testing.T) {
	boom := errors.New("backend down")
	a := NewFunc("broken", nil, func(context.Context, core.Message) ([]byte, error) {
		return nil, boom
	})

	_, err := a.Handle(context.Background(), core.NewMessage("s1").Build())
	if !errors.Is(err, boom) {
		t.Fatalf("expected handler error, got %v", err)
	}
}

func TestFunc_CapabilityIsolation(t *testing.T) {
	caps := []string{"analysis"}
	a := NewFunc("echo", caps, func(ctx context.Context, msg core.Message) ([]byte, error) {
		return nil, nil
	})

	caps[0] = "changed"
	if a.Capabilities()[0] != "analysis" {
		t.Fatalf("constructor must copy capabilities, got %v", a.Capabilities())
	}

	out := a.Capabilities()
	out[0] = "changed"
	if a.Capabilities()[0] != "analysis" {
		t.Fatalf("accessor must copy capabilities, got %v", a.Capabilities())
	}
}
