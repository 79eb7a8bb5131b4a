// Package event defines the signed, content-addressed event record and its
// canonical serialization. The canonical byte encoding is the cross-relay
// compatibility contract: the event id is the SHA-256 of these exact bytes,
// so the serializer must be byte-for-byte reproducible.
package event

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// MaxKind is the highest valid event kind.
const MaxKind = 65535

// Event is a signed, content-addressed record published by an author.
// Immutable once accepted by a relay.
type Event struct {
	ID        string     `json:"id"`
	PubKey    string     `json:"pubkey"`
	CreatedAt uint64     `json:"created_at"`
	Kind      uint32     `json:"kind"`
	Tags      [][]string `json:"tags"`
	Content   string     `json:"content"`
	Sig       string     `json:"sig"`
}

// Serialize produces the canonical UTF-8 byte encoding used for id
// computation and signing: the JSON array
//
//	[0,<pubkey>,<created_at>,<kind>,<tags>,<content>]
//
// with no insignificant whitespace. Strings escape exactly seven control
// sequences (\n \" \\ \r \t \b \f); every other character, including
// non-ASCII, is emitted verbatim. encoding/json cannot be used here because
// it escapes <, >, & and some unicode, which would change the digest.
func (e *Event) Serialize() []byte {
	var b bytes.Buffer
	b.Grow(64 + len(e.PubKey) + len(e.Content))
	b.WriteString("[0,")
	writeEscaped(&b, e.PubKey)
	b.WriteByte(',')
	b.WriteString(strconv.FormatUint(e.CreatedAt, 10))
	b.WriteByte(',')
	b.WriteString(strconv.FormatUint(uint64(e.Kind), 10))
	b.WriteByte(',')
	writeTags(&b, e.Tags)
	b.WriteByte(',')
	writeEscaped(&b, e.Content)
	b.WriteByte(']')
	return b.Bytes()
}

// ComputeID returns the lowercase hex SHA-256 of the canonical serialization.
func (e *Event) ComputeID() string {
	sum := sha256.Sum256(e.Serialize())
	return hex.EncodeToString(sum[:])
}

// CheckID reports whether the stored id matches the canonical serialization.
func (e *Event) CheckID() bool {
	return e.ID == e.ComputeID()
}

// Validate checks the structural invariants of an event as received off the
// wire: hex field lengths, kind range, and non-null tags. It does not verify
// the id digest or the signature; see CheckID and crypto.Verify.
func (e *Event) Validate() bool {
	if !isLowerHex(e.ID, 64) || !isLowerHex(e.PubKey, 64) || !isLowerHex(e.Sig, 128) {
		return false
	}
	if e.Kind > MaxKind {
		return false
	}
	for _, tag := range e.Tags {
		if tag == nil {
			return false
		}
	}
	return true
}

func isLowerHex(s string, length int) bool {
	if len(s) != length {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

func writeTags(b *bytes.Buffer, tags [][]string) {
	b.WriteByte('[')
	for i, tag := range tags {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('[')
		for j, v := range tag {
			if j > 0 {
				b.WriteByte(',')
			}
			writeEscaped(b, v)
		}
		b.WriteByte(']')
	}
	b.WriteByte(']')
}

func writeEscaped(b *bytes.Buffer, s string) {
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\n':
			b.WriteString(`\n`)
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
}
