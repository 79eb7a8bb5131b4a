// Package relay implements the publish/subscribe broker: connection
// sessions, the subscription registry, event ingestion, and fan-out.
package relay

import (
	"log/slog"
	"sync"

	"github.com/chorus-relay/chorus/internal/crypto"
	"github.com/chorus-relay/chorus/internal/event"
	"github.com/chorus-relay/chorus/internal/filter"
	"github.com/chorus-relay/chorus/internal/metrics"
	"github.com/chorus-relay/chorus/internal/store"
	"github.com/chorus-relay/chorus/internal/wire"
)

// Broker owns the event store and the subscription registry and dispatches
// decoded envelopes from sessions. It is stateless between messages apart
// from those two.
type Broker struct {
	// mu serializes publish fan-out against subscribe replay so a new
	// subscription's replay snapshot is enqueued before any later event
	// matches its filter. Held only for in-memory work, never for I/O.
	mu       sync.Mutex
	store    *store.Store
	registry *Registry
	sessions map[*Session]struct{}
	metrics  *metrics.Metrics
	log      *slog.Logger
}

func NewBroker(st *store.Store, m *metrics.Metrics, logger *slog.Logger) *Broker {
	return &Broker{
		store:    st,
		registry: NewRegistry(),
		sessions: make(map[*Session]struct{}),
		metrics:  m,
		log:      logger,
	}
}

// Dispatch decodes one inbound frame from s and routes it. Malformed frames
// and unknown tags are dropped without terminating the connection.
func (b *Broker) Dispatch(s *Session, data []byte) {
	env, err := wire.Parse(data)
	if err != nil {
		b.log.Debug("dropping malformed frame", "session", s.id, "error", err)
		return
	}
	switch env := env.(type) {
	case wire.EventEnvelope:
		b.Publish(&env.Event)
	case wire.ReqEnvelope:
		b.Subscribe(s, env.SubscriptionID, &env.Filter)
	case wire.CloseEnvelope:
		b.Unsubscribe(s, env.SubscriptionID)
	case wire.UnknownEnvelope:
		b.log.Debug("ignoring unknown envelope tag", "session", s.id, "tag", env.Tag)
	}
}

// Publish validates ev, stores it if new, and fans it out to every matching
// subscription. Integrity failures are silent drops: no error frame goes
// back to the publisher, so a malicious sender gets no oracle.
func (b *Broker) Publish(ev *event.Event) {
	if !ev.Validate() {
		b.metrics.EventsRejected.WithLabelValues(metrics.ReasonMalformed).Inc()
		b.log.Debug("rejected event", "reason", "malformed", "id", ev.ID)
		return
	}
	if !ev.CheckID() {
		b.metrics.EventsRejected.WithLabelValues(metrics.ReasonBadID).Inc()
		b.log.Debug("rejected event", "reason", "id mismatch", "id", ev.ID)
		return
	}
	if !crypto.Verify(ev) {
		b.metrics.EventsRejected.WithLabelValues(metrics.ReasonBadSig).Inc()
		b.log.Debug("rejected event", "reason", "bad signature", "id", ev.ID)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.store.Add(*ev) {
		b.metrics.EventsDuplicate.Inc()
		return
	}
	b.metrics.EventsAccepted.Inc()
	b.log.Debug("event accepted", "id", ev.ID, "kind", ev.Kind, "pubkey", ev.PubKey)

	// Every subscription gets its own delivery, so a session with several
	// matching subscriptions sees the event once per subscription, each
	// labeled with the id that triggered it.
	b.registry.Each(func(s *Session, subID string, f *filter.Filter) {
		if !f.Matches(ev) {
			return
		}
		frame, err := wire.EventFrame(subID, ev)
		if err != nil {
			b.log.Error("encode delivery", "error", err)
			return
		}
		if s.enqueue(frame) {
			b.metrics.Deliveries.Inc()
		} else {
			b.metrics.SlowConsumers.Inc()
			b.log.Warn("disconnecting slow consumer", "session", s.id)
		}
	})
}

// Subscribe registers (or replaces) the subscription and synchronously
// replays matching stored events, oldest first, before any later live event
// can flow to the new filter. Limit bounds the replay to the most recent
// matches.
func (b *Broker) Subscribe(s *Session, subID string, f *filter.Filter) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// A session racing its own teardown must not leak a registration.
	if _, live := b.sessions[s]; !live {
		return
	}

	if replaced := b.registry.Register(s, subID, f); !replaced {
		b.metrics.ActiveSubs.Inc()
	}
	b.log.Debug("subscription registered", "session", s.id, "sub", subID)

	for _, ev := range b.store.Query(f) {
		frame, err := wire.EventFrame(subID, &ev)
		if err != nil {
			b.log.Error("encode replay", "error", err)
			continue
		}
		if !s.enqueue(frame) {
			b.metrics.SlowConsumers.Inc()
			b.log.Warn("disconnecting slow consumer during replay", "session", s.id)
			return
		}
		b.metrics.ReplayDeliveries.Inc()
	}
}

// Unsubscribe removes the subscription. Idempotent: an absent id is a no-op.
// An event already enqueued before this completes may still be delivered.
func (b *Broker) Unsubscribe(s *Session, subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.registry.Unregister(s, subID) {
		b.metrics.ActiveSubs.Dec()
		b.log.Debug("subscription closed", "session", s.id, "sub", subID)
	}
}

func (b *Broker) addSession(s *Session) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions[s] = struct{}{}
	b.metrics.ActiveConns.Inc()
}

// removeSession cascades session teardown into the registry.
func (b *Broker) removeSession(s *Session) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, live := b.sessions[s]; !live {
		return
	}
	delete(b.sessions, s)
	b.metrics.ActiveConns.Dec()
	if n := b.registry.DropSession(s); n > 0 {
		b.metrics.ActiveSubs.Sub(float64(n))
	}
}
