// Package render holds the collaborators that receive classified results.
// Every renderer must tolerate repeated delivery of an identical result.
package render

import (
	"sync"

	"cellscript/internal/types"
)

// Renderer receives (address, result) after every classification.
type Renderer interface {
	Render(addr types.Address, r types.Result) error
}

// Func adapts a function to Renderer.
type Func func(addr types.Address, r types.Result) error

func (f Func) Render(addr types.Address, r types.Result) error { return f(addr, r) }

// Delivery is one recorded Render call.
type Delivery struct {
	Address types.Address
	Result  types.Result
}

// Recorder keeps every delivery in order plus the latest result per address.
type Recorder struct {
	mu         sync.Mutex
	deliveries []Delivery
	latest     map[types.Address]types.Result
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{latest: make(map[types.Address]types.Result)}
}

func (r *Recorder) Render(addr types.Address, result types.Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = append(r.deliveries, Delivery{Address: addr, Result: result})
	r.latest[addr] = result
	return nil
}

// Deliveries returns all deliveries in order.
func (r *Recorder) Deliveries() []Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Delivery, len(r.deliveries))
	copy(out, r.deliveries)
	return out
}

// Addresses returns the delivered addresses in order.
func (r *Recorder) Addresses() []types.Address {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.Address, len(r.deliveries))
	for i, d := range r.deliveries {
		out[i] = d.Address
	}
	return out
}

// Latest returns the most recent result delivered for addr.
func (r *Recorder) Latest(addr types.Address) (types.Result, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.latest[addr]
	return res, ok
}

// Reset forgets every delivery.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = nil
	r.latest = make(map[types.Address]types.Result)
}

// Multi fans a delivery out to several renderers. The first error wins but
// every renderer is called.
type Multi []Renderer

func (m Multi) Render(addr types.Address, r types.Result) error {
	var first error
	for _, renderer := range m {
		if err := renderer.Render(addr, r); err != nil && first == nil {
			first = err
		}
	}
	return first
}
