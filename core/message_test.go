package core

import (
	"testing"
)

func TestMessageBuilder_Build(t *testing.T) {
	msg := NewMessage("session-1").
		WithPayload([]byte("hello")).
		WithMetadata("task", "collect").
		Require("analysis", "reporting").
		Build()

	if msg.ID() == "" {
		t.Fatal("expected generated id")
	}
	if msg.Sender() != "session-1" {
		t.Fatalf("sender: got %q", msg.Sender())
	}
	if string(msg.Payload()) != "hello" {
		t.Fatalf("payload: got %q", msg.Payload())
	}
	if msg.Metadata()["task"] != "collect" {
		t.Fatalf("metadata: got %v", msg.Metadata())
	}
	if msg.Timestamp().IsZero() {
		t.Fatal("expected timestamp")
	}
}

func TestMessageBuilder_CapabilitiesSortedDeduped(t *testing.T) {
	msg := NewMessage("s").
		Require("reporting", "analysis").
		Require("analysis").
		Build()

	caps := msg.RequiredCapabilities()
	if len(caps) != 2 {
		t.Fatalf("expected 2 capabilities, got %v", caps)
	}
	if caps[0] != "analysis" || caps[1] != "reporting" {
		t.Fatalf("expected sorted capabilities, got %v", caps)
	}
}

func TestMessage_AccessorIsolation(t *testing.T) {
	payload := []byte("hello")
	msg := NewMessage("s").WithPayload(payload).WithMetadata("k", "v").Require("a").Build()

	// mutate the original slice
	payload[0] = 'H'
	if string(msg.Payload()) != "hello" {
		t.Fatalf("payload reflects caller mutation: %q", msg.Payload())
	}

	// mutate the returned copies
	out := msg.Payload()
	out[0] = 'x'
	md := msg.Metadata()
	md["k"] = "changed"
	caps := msg.RequiredCapabilities()
	caps[0] = "changed"

	if string(msg.Payload()) != "hello" {
		t.Fatalf("expected payload isolation, got %q", msg.Payload())
	}
	if msg.Metadata()["k"] != "v" {
		t.Fatalf("expected metadata isolation, got %v", msg.Metadata())
	}
	if msg.RequiredCapabilities()[0] != "a" {
		t.Fatalf("expected capability isolation, got %v", msg.RequiredCapabilities())
	}
}
