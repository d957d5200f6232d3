// Package coretest provides an in-memory SignalConnection for tests.
package coretest

import (
	"encoding/json"
	"sync"

	"github.com/dkeye/Callbox/internal/core"
)

// Message is a decoded frame: its type tag plus the raw object.
type Message struct {
	Type   string
	Fields map[string]json.RawMessage
}

// Str returns a string field, or "" when absent.
func (m Message) Str(key string) string {
	var s string
	_ = json.Unmarshal(m.Fields[key], &s)
	return s
}

// Decode unmarshals a field into v.
func (m Message) Decode(key string, v any) error {
	return json.Unmarshal(m.Fields[key], v)
}

// Conn records every frame it accepts. Capacity 0 means unbounded.
type Conn struct {
	mu       sync.Mutex
	frames   []core.Frame
	capacity int
	closed   bool
}

func NewConn() *Conn { return &Conn{} }

// NewBoundedConn rejects frames with ErrBackpressure once capacity frames are
// pending.
func NewBoundedConn(capacity int) *Conn { return &Conn{capacity: capacity} }

func (c *Conn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return core.ErrConnectionClosed
	}
	if c.capacity > 0 && len(c.frames) >= c.capacity {
		return core.ErrBackpressure
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *Conn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Messages returns every frame received so far, decoded.
func (c *Conn) Messages() []Message {
	c.mu.Lock()
	frames := make([]core.Frame, len(c.frames))
	copy(frames, c.frames)
	c.mu.Unlock()

	out := make([]Message, 0, len(frames))
	for _, f := range frames {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(f, &fields); err != nil {
			continue
		}
		m := Message{Fields: fields}
		_ = json.Unmarshal(fields["type"], &m.Type)
		out = append(out, m)
	}
	return out
}

// OfType returns the received messages with the given type tag.
func (c *Conn) OfType(typ string) []Message {
	var out []Message
	for _, m := range c.Messages() {
		if m.Type == typ {
			out = append(out, m)
		}
	}
	return out
}

// Last returns the most recent message of the given type.
func (c *Conn) Last(typ string) (Message, bool) {
	ms := c.OfType(typ)
	if len(ms) == 0 {
		return Message{}, false
	}
	return ms[len(ms)-1], true
}

// Reset forgets received frames.
func (c *Conn) Reset() {
	c.mu.Lock()
	c.frames = nil
	c.mu.Unlock()
}
