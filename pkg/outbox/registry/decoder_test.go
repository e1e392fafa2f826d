package registry

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/angelmondragon/branchledger/pkg/enums"
)

type kindPayload struct {
	Kind string `json:"kind"`
}

func TestDecoderRegistry(t *testing.T) {
	reg := NewDecoderRegistry()
	reg.Register(enums.EventFollowUpRequested, 1, JSON[kindPayload]())

	output, err := reg.Decode(enums.EventFollowUpRequested, 1, json.RawMessage(`{"kind":"deliver_to_customer"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload, ok := output.(kindPayload); !ok || payload.Kind != "deliver_to_customer" {
		t.Fatalf("unexpected output %+v", output)
	}

	if _, err := reg.Decode(enums.EventFollowUpRequested, 1, json.RawMessage(`{"kind":`)); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}

func TestDecoderRegistryUnknownVersion(t *testing.T) {
	reg := NewDecoderRegistry()
	reg.Register(enums.EventFollowUpRequested, 1, JSON[kindPayload]())

	_, err := reg.Decode(enums.EventFollowUpRequested, 2, json.RawMessage(`{}`))
	if !errors.Is(err, ErrUnknownVersion) {
		t.Fatalf("expected ErrUnknownVersion, got %v", err)
	}
	if _, err := reg.Decode(enums.EventItemDispatched, 1, json.RawMessage(`{}`)); !errors.Is(err, ErrUnknownVersion) {
		t.Fatalf("expected ErrUnknownVersion for unregistered type, got %v", err)
	}
}

func TestDecoderRegistryVersions(t *testing.T) {
	reg := NewDecoderRegistry()
	reg.Register(enums.EventFollowUpRequested, 2, JSON[kindPayload]())
	reg.Register(enums.EventFollowUpRequested, 1, JSON[kindPayload]())
	reg.Register(enums.EventItemDispatched, 1, JSON[kindPayload]())

	if got := reg.Versions(enums.EventFollowUpRequested); !reflect.DeepEqual(got, []int{1, 2}) {
		t.Fatalf("unexpected versions %v", got)
	}
}
