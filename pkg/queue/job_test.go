package queue

import (
	"encoding/json"
	"errors"
	"testing"
)

type jobPayload struct {
	Symbol string `json:"symbol"`
	Days   int    `json:"days"`
}

func TestParsePayload(t *testing.T) {
	raw := json.RawMessage(`{"symbol":"BTCUSDT","days":30}`)
	p, err := ParsePayload[jobPayload](raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.Symbol != "BTCUSDT" || p.Days != 30 {
		t.Fatalf("unexpected payload %+v", p)
	}
}

func TestParsePayloadErrors(t *testing.T) {
	if _, err := ParsePayload[jobPayload](nil); !errors.Is(err, ErrEmptyPayload) {
		t.Fatalf("expected ErrEmptyPayload, got %v", err)
	}
	if _, err := ParsePayload[jobPayload](json.RawMessage(`{"days":"x"}`)); err == nil {
		t.Fatal("expected type mismatch error")
	}
}
