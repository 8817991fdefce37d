// Package handler provides Handler, a nullable callback value.
package handler

// Handler wraps a nullary callback returning R. The zero value is invalid.
// Handlers are plain values: copying one copies the callback reference only.
type Handler[R any] struct {
	fn func() R
}

// New returns a Handler for fn. A nil fn yields an invalid Handler.
func New[R any](fn func() R) Handler[R] {
	return Handler[R]{fn: fn}
}

// Set replaces the callback.
func (h *Handler[R]) Set(fn func() R) {
	h.fn = fn
}

// Reset makes the handler invalid.
func (h *Handler[R]) Reset() {
	h.fn = nil
}

// Valid reports whether a callback is assigned.
func (h Handler[R]) Valid() bool {
	return h.fn != nil
}

// Get returns the callback and true, or nil and false when invalid.
func (h Handler[R]) Get() (func() R, bool) {
	if h.fn == nil {
		return nil, false
	}
	return h.fn, true
}

// Call invokes the callback if valid. ok is false, and r the zero value,
// when there was nothing to call.
func (h Handler[R]) Call() (r R, ok bool) {
	if h.fn == nil {
		return r, false
	}
	return h.fn(), true
}

// Personal.AI order the ending
