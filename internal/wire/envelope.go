// Package wire decodes inbound text frames into a closed tagged-union of
// protocol envelopes and encodes outbound frames. Frames are JSON arrays
// whose first element is the string tag; everything after the boundary
// decode works with typed envelopes, never raw field probing.
package wire

import (
	"encoding/json"
	"fmt"

	"github.com/chorus-relay/chorus/internal/event"
	"github.com/chorus-relay/chorus/internal/filter"
)

const (
	LabelEvent = "EVENT"
	LabelReq   = "REQ"
	LabelClose = "CLOSE"
)

// MaxFrameSize caps inbound frame length; anything larger is dropped by the
// transport before parsing.
const MaxFrameSize = 512 << 10

// Envelope is one decoded inbound protocol message.
type Envelope interface {
	Label() string
}

// EventEnvelope is a client publish: ["EVENT", <event>].
type EventEnvelope struct {
	Event event.Event
}

func (EventEnvelope) Label() string { return LabelEvent }

// ReqEnvelope opens or replaces a subscription: ["REQ", <sub id>, <filter>].
type ReqEnvelope struct {
	SubscriptionID string
	Filter         filter.Filter
}

func (ReqEnvelope) Label() string { return LabelReq }

// CloseEnvelope removes a subscription: ["CLOSE", <sub id>].
type CloseEnvelope struct {
	SubscriptionID string
}

func (CloseEnvelope) Label() string { return LabelClose }

// UnknownEnvelope is a well-formed frame with a tag this relay does not
// speak. The connection stays open; the broker ignores it.
type UnknownEnvelope struct {
	Tag string
}

func (u UnknownEnvelope) Label() string { return u.Tag }

// Parse decodes one inbound frame. Malformed frames (not a JSON array, no
// string tag, wrong member shapes) return an error; a valid frame with an
// unrecognized tag returns UnknownEnvelope and no error.
func Parse(data []byte) (Envelope, error) {
	var arr []json.RawMessage
	if err := json.Unmarshal(data, &arr); err != nil {
		return nil, fmt.Errorf("frame is not a JSON array: %w", err)
	}
	if len(arr) == 0 {
		return nil, fmt.Errorf("empty frame")
	}
	var tag string
	if err := json.Unmarshal(arr[0], &tag); err != nil {
		return nil, fmt.Errorf("frame tag is not a string: %w", err)
	}

	switch tag {
	case LabelEvent:
		if len(arr) < 2 {
			return nil, fmt.Errorf("EVENT frame missing event")
		}
		var env EventEnvelope
		if err := json.Unmarshal(arr[1], &env.Event); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		return env, nil
	case LabelReq:
		if len(arr) < 3 {
			return nil, fmt.Errorf("REQ frame missing subscription id or filter")
		}
		var env ReqEnvelope
		if err := json.Unmarshal(arr[1], &env.SubscriptionID); err != nil {
			return nil, fmt.Errorf("decode subscription id: %w", err)
		}
		if env.SubscriptionID == "" {
			return nil, fmt.Errorf("empty subscription id")
		}
		if err := json.Unmarshal(arr[2], &env.Filter); err != nil {
			return nil, fmt.Errorf("decode filter: %w", err)
		}
		return env, nil
	case LabelClose:
		if len(arr) < 2 {
			return nil, fmt.Errorf("CLOSE frame missing subscription id")
		}
		var env CloseEnvelope
		if err := json.Unmarshal(arr[1], &env.SubscriptionID); err != nil {
			return nil, fmt.Errorf("decode subscription id: %w", err)
		}
		return env, nil
	default:
		return UnknownEnvelope{Tag: tag}, nil
	}
}

// DeliveryEnvelope is a relay→client event delivery:
// ["EVENT", <subscription id>, <event>].
type DeliveryEnvelope struct {
	SubscriptionID string
	Event          event.Event
}

// ParseDelivery decodes the client-side counterpart of EventFrame. Frames
// with a different tag or shape return an error.
func ParseDelivery(data []byte) (DeliveryEnvelope, error) {
	var arr []json.RawMessage
	if err := json.Unmarshal(data, &arr); err != nil {
		return DeliveryEnvelope{}, fmt.Errorf("frame is not a JSON array: %w", err)
	}
	if len(arr) < 3 {
		return DeliveryEnvelope{}, fmt.Errorf("delivery frame has %d members, need 3", len(arr))
	}
	var tag string
	if err := json.Unmarshal(arr[0], &tag); err != nil || tag != LabelEvent {
		return DeliveryEnvelope{}, fmt.Errorf("not an EVENT delivery")
	}
	var env DeliveryEnvelope
	if err := json.Unmarshal(arr[1], &env.SubscriptionID); err != nil {
		return DeliveryEnvelope{}, fmt.Errorf("decode subscription id: %w", err)
	}
	if err := json.Unmarshal(arr[2], &env.Event); err != nil {
		return DeliveryEnvelope{}, fmt.Errorf("decode event: %w", err)
	}
	return env, nil
}

// EventFrame encodes a relay→subscriber delivery:
// ["EVENT", <subscription id>, <event>].
func EventFrame(subscriptionID string, ev *event.Event) ([]byte, error) {
	return json.Marshal([]any{LabelEvent, subscriptionID, ev})
}

// PublishFrame encodes a client→relay publish: ["EVENT", <event>].
func PublishFrame(ev *event.Event) ([]byte, error) {
	return json.Marshal([]any{LabelEvent, ev})
}

// ReqFrame encodes a client→relay subscribe: ["REQ", <sub id>, <filter>].
func ReqFrame(subscriptionID string, f *filter.Filter) ([]byte, error) {
	return json.Marshal([]any{LabelReq, subscriptionID, f})
}

// CloseFrame encodes a client→relay unsubscribe: ["CLOSE", <sub id>].
func CloseFrame(subscriptionID string) ([]byte, error) {
	return json.Marshal([]any{LabelClose, subscriptionID})
}
