package action

import "slices"

// Transaction accumulates property changes that are submitted to the
// kernel as one indivisible request. Either every change applies or
// none does; a single rejected property fails the whole transaction.
//
// A Transaction is not safe for concurrent use.
type Transaction struct {
	actions []Action
}

// Perform enqueues property changes in order.
func (t *Transaction) Perform(actions ...Action) {
	t.actions = append(t.actions, actions...)
}

// Actions returns a copy of the pending changes in enqueue order.
func (t *Transaction) Actions() []Action {
	return slices.Clone(t.actions)
}

// Len returns the number of pending changes.
func (t *Transaction) Len() int {
	return len(t.actions)
}

// Reset discards all pending changes.
func (t *Transaction) Reset() {
	t.actions = t.actions[:0]
}
