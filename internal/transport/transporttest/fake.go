// Package transporttest provides an in-memory transport.Sender double for
// exercising the Message Manager without a real socket.
package transporttest

import (
	"encoding/json"
	"sync"
)

// Fake records every JSON/binary send it receives, in call order.
type Fake struct {
	mu       sync.Mutex
	JSONSent []any
	BinSent  [][]byte
	closed   bool
}

// New creates an empty Fake.
func New() *Fake { return &Fake{} }

// SendJSON records obj.
func (f *Fake) SendJSON(obj any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.JSONSent = append(f.JSONSent, obj)
	return nil
}

// SendBinary records pcm.
func (f *Fake) SendBinary(pcm []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := append([]byte(nil), pcm...)
	f.BinSent = append(f.BinSent, cp)
	return nil
}

// Close marks the fake closed.
func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Closed reports whether Close was called.
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Frames returns every recorded JSON send round-tripped through JSON into a
// generic map, useful for
// asserting on the "type" discriminator field without depending on the
// concrete payload struct.
func (f *Fake) Frames() []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]map[string]any, 0, len(f.JSONSent))
	for _, obj := range f.JSONSent {
		data, err := json.Marshal(obj)
		if err != nil {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			continue
		}
		out = append(out, m)
	}
	return out
}
