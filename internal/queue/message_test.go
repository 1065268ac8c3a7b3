package queue

import (
	"strings"
	"testing"
)

func TestMessageWireFormat(t *testing.T) {
	data, err := EncodeMessage(Message{
		SessionID:  "session-1",
		RequestID:  "req-1",
		EnqueuedAt: "2026-01-02T03:04:05Z",
		Version:    1,
	})
	if err != nil {
		t.Fatalf("EncodeMessage: %v", err)
	}

	// Field names are a wire contract with the producer.
	for _, key := range []string{`"sessionId"`, `"requestId"`, `"enqueuedAt"`, `"version"`} {
		if !strings.Contains(string(data), key) {
			t.Fatalf("payload missing %s: %s", key, data)
		}
	}

	msg, err := DecodeMessage(data)
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	if msg.SessionID != "session-1" || msg.Version != 1 {
		t.Fatalf("msg = %+v", msg)
	}
}

func TestDecodeMessageInvalid(t *testing.T) {
	if _, err := DecodeMessage([]byte(`{"sessionId":`)); err == nil {
		t.Fatal("DecodeMessage succeeded on truncated payload")
	}
}
