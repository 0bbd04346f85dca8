package txflow

import (
	"errors"
	"sync"

	"github.com/nando-os/ghost-stark/stark"
)

// ErrSigning is returned when the calls of a draft are edited while it is being signed.
var ErrSigning = errors.New("transaction is being signed")

// Snapshot is a copy of the draft at a given generation.
type Snapshot struct {
	Calls      []stark.Call `json:"calls"`
	Value      stark.Amount `json:"value"`
	Signing    bool         `json:"signing"`
	Generation uint64       `json:"generation"`
}

// Empty reports whether the snapshot has no calls.
func (s Snapshot) Empty() bool {
	return len(s.Calls) == 0
}

// Draft is the in-progress transaction of a session: the call batch, the native value
// sent along and the signing flag. Every change to the calls and every reset bumps the
// generation, which invalidates estimates and results computed for an older batch.
type Draft struct {
	mu         sync.Mutex
	calls      []stark.Call
	value      stark.Amount
	signing    bool
	generation uint64
}

// NewDraft returns an empty draft.
func NewDraft() *Draft {
	return &Draft{}
}

// SetCalls replaces the call batch and the value.
func (d *Draft) SetCalls(calls []stark.Call, value stark.Amount) (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.signing {
		return d.generation, ErrSigning
	}

	d.calls = stark.CloneCalls(calls)
	d.value = value
	d.generation++

	return d.generation, nil
}

// PushCalls appends calls to the batch and adds value to the accumulated value.
func (d *Draft) PushCalls(calls []stark.Call, value stark.Amount) (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.signing {
		return d.generation, ErrSigning
	}

	d.calls = append(d.calls, stark.CloneCalls(calls)...)
	d.value = d.value.Add(value)
	d.generation++

	return d.generation, nil
}

// IncreaseValue adds to the accumulated value. The fee does not depend on it,
// so the generation is kept.
func (d *Draft) IncreaseValue(value stark.Amount) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.value = d.value.Add(value)
}

// SetSigning flags the draft as being signed.
func (d *Draft) SetSigning(signing bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.signing = signing
}

// Reset clears the draft and bumps the generation.
func (d *Draft) Reset() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.calls = nil
	d.value = stark.Zero
	d.signing = false
	d.generation++

	return d.generation
}

// Snapshot returns a deep copy of the draft.
func (d *Draft) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	return Snapshot{
		Calls:      stark.CloneCalls(d.calls),
		Value:      d.value,
		Signing:    d.signing,
		Generation: d.generation,
	}
}

// Generation returns the current generation.
func (d *Draft) Generation() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.generation
}

// Current reports whether generation is still the current one.
func (d *Draft) Current(generation uint64) bool {
	return d.Generation() == generation
}
