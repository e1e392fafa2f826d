package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/angelmondragon/branchledger/pkg/enums"
)

// ErrUnknownVersion is returned when no decoder matches an event type and
// payload version. Consumers treat it as a poison message.
var ErrUnknownVersion = errors.New("decoder not registered")

type decoderFunc func(payload json.RawMessage) (any, error)

type registryKey struct {
	eventType enums.OutboxEventType
	version   int
}

// DecoderRegistry maps event type and payload version to a decoder.
type DecoderRegistry struct {
	mtx      sync.RWMutex
	registry map[registryKey]decoderFunc
}

func NewDecoderRegistry() *DecoderRegistry {
	return &DecoderRegistry{registry: make(map[registryKey]decoderFunc)}
}

// Register stores a decoder, replacing any previous one for the same key.
func (r *DecoderRegistry) Register(eventType enums.OutboxEventType, version int, decoder decoderFunc) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.registry[registryKey{eventType: eventType, version: version}] = decoder
}

// JSON builds a decoder that unmarshals into T.
func JSON[T any]() decoderFunc {
	return func(payload json.RawMessage) (any, error) {
		var out T
		if err := json.Unmarshal(payload, &out); err != nil {
			return nil, err
		}
		return out, nil
	}
}

// Decode runs the decoder registered for the event type and version.
func (r *DecoderRegistry) Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (any, error) {
	r.mtx.RLock()
	decoder, ok := r.registry[registryKey{eventType: eventType, version: version}]
	r.mtx.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w for %s@v%d", ErrUnknownVersion, eventType, version)
	}
	return decoder(payload)
}

// Versions lists the payload versions registered for eventType, ascending.
func (r *DecoderRegistry) Versions(eventType enums.OutboxEventType) []int {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	var out []int
	for key := range r.registry {
		if key.eventType == eventType {
			out = append(out, key.version)
		}
	}
	sort.Ints(out)
	return out
}
