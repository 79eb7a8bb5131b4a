// Package client implements the peer-facing side of the protocol: dialing a
// relay, signing and publishing events, and consuming subscription
// deliveries. Received events are verified before they are retained, so a
// misbehaving relay cannot plant forged events in a subscription's history.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/gorilla/websocket"

	"github.com/chorus-relay/chorus/internal/crypto"
	"github.com/chorus-relay/chorus/internal/event"
	"github.com/chorus-relay/chorus/internal/filter"
	"github.com/chorus-relay/chorus/internal/wire"
)

// ErrNoKey is returned by publish operations before a keypair is set.
var ErrNoKey = errors.New("client: no keypair set")

// Delivery is one relay→client event frame, labeled with the subscription
// that matched it.
type Delivery struct {
	SubscriptionID string
	Event          event.Event
}

// Client holds one relay connection, the signing key, and the events
// collected per subscription. Methods are safe for concurrent use, but a
// single goroutine should own Receive.
type Client struct {
	mu   sync.Mutex
	key  *btcec.PrivateKey
	conn *websocket.Conn
	subs map[string][]event.Event
	log  *slog.Logger
}

func New(logger *slog.Logger) *Client {
	return &Client{
		subs: make(map[string][]event.Event),
		log:  logger,
	}
}

// SetKey installs an existing signing key.
func (c *Client) SetKey(priv *btcec.PrivateKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.key = priv
}

// GenerateKey creates and installs a fresh signing key, returning it so the
// caller can persist it.
func (c *Client) GenerateKey() (*btcec.PrivateKey, error) {
	priv, err := crypto.GenerateKeypair()
	if err != nil {
		return nil, err
	}
	c.SetKey(priv)
	return priv, nil
}

// PubKeyHex returns the hex x-only public key of the installed signing key,
// or "" when none is set.
func (c *Client) PubKeyHex() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.key == nil {
		return ""
	}
	return crypto.PubKeyHex(c.key)
}

// Dial connects to the relay at url (ws:// or wss://).
func (c *Client) Dial(ctx context.Context, url string) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.log.Debug("connected", "relay", url)
	return nil
}

// Close tears down the relay connection. Safe to call when not connected.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

func (c *Client) send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return errors.New("client: not connected")
	}
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

// Sign completes ev with the client's identity: it sets pubkey and
// created_at (when zero), computes the canonical id, and signs it.
func (c *Client) Sign(ev *event.Event) error {
	c.mu.Lock()
	key := c.key
	c.mu.Unlock()
	if key == nil {
		return ErrNoKey
	}
	ev.PubKey = crypto.PubKeyHex(key)
	if ev.CreatedAt == 0 {
		ev.CreatedAt = uint64(time.Now().Unix())
	}
	ev.ID = ev.ComputeID()
	sig, err := crypto.Sign(ev, key)
	if err != nil {
		return err
	}
	ev.Sig = sig
	return nil
}

// Publish signs ev and sends it to the relay.
func (c *Client) Publish(ev *event.Event) error {
	if err := c.Sign(ev); err != nil {
		return err
	}
	frame, err := wire.PublishFrame(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := c.send(frame); err != nil {
		return err
	}
	c.log.Debug("published", "id", ev.ID, "kind", ev.Kind)
	return nil
}

// PublishNote publishes a kind-1 text note with the given content and tags.
func (c *Client) PublishNote(content string, tags [][]string) (*event.Event, error) {
	ev := &event.Event{
		Kind:    1,
		Tags:    tags,
		Content: content,
	}
	if ev.Tags == nil {
		ev.Tags = [][]string{}
	}
	if err := c.Publish(ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// Subscribe opens (or replaces) a subscription on the relay and starts
// collecting its deliveries.
func (c *Client) Subscribe(subID string, f *filter.Filter) error {
	frame, err := wire.ReqFrame(subID, f)
	if err != nil {
		return fmt.Errorf("encode filter: %w", err)
	}
	if err := c.send(frame); err != nil {
		return err
	}
	c.mu.Lock()
	if _, ok := c.subs[subID]; !ok {
		c.subs[subID] = nil
	}
	c.mu.Unlock()
	return nil
}

// Unsubscribe closes the subscription on the relay. Collected events stay
// readable through Events.
func (c *Client) Unsubscribe(subID string) error {
	frame, err := wire.CloseFrame(subID)
	if err != nil {
		return err
	}
	return c.send(frame)
}

// Receive blocks for the next delivery. Frames that are not event
// deliveries, and events that fail id or signature verification, are skipped
// silently. Verified events are appended to their subscription's history
// before being returned.
func (c *Client) Receive() (Delivery, error) {
	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return Delivery{}, errors.New("client: not connected")
		}

		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return Delivery{}, fmt.Errorf("read: %w", err)
		}
		if msgType != websocket.TextMessage {
			continue
		}

		d, ok := decodeDelivery(data)
		if !ok {
			c.log.Debug("skipping non-delivery frame")
			continue
		}
		if !d.Event.Validate() || !d.Event.CheckID() || !crypto.Verify(&d.Event) {
			c.log.Warn("dropping unverifiable event from relay", "id", d.Event.ID)
			continue
		}

		c.mu.Lock()
		c.subs[d.SubscriptionID] = append(c.subs[d.SubscriptionID], d.Event)
		c.mu.Unlock()
		return d, nil
	}
}

// Events returns a copy of the verified events collected so far for subID,
// in arrival order.
func (c *Client) Events(subID string) []event.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	evs := c.subs[subID]
	out := make([]event.Event, len(evs))
	copy(out, evs)
	return out
}

// decodeDelivery parses a relay→client ["EVENT", <sub id>, <event>] frame.
func decodeDelivery(data []byte) (Delivery, bool) {
	env, err := wire.ParseDelivery(data)
	if err != nil {
		return Delivery{}, false
	}
	return Delivery{SubscriptionID: env.SubscriptionID, Event: env.Event}, true
}
