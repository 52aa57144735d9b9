package domain

// Ring is a fixed-capacity FIFO: pushing into a full ring evicts the oldest element.
// Ring is not safe for concurrent use; callers guard it (see session.State).
type Ring[T any] struct {
	buf   []T
	start int
	size  int
}

// NewRing creates an empty ring. Capacities below 1 are raised to 1.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Push appends v and reports whether the oldest element was evicted.
func (r *Ring[T]) Push(v T) bool {
	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = v
		r.size++
		return false
	}
	r.buf[r.start] = v
	r.start = (r.start + 1) % len(r.buf)
	return true
}

// Len returns the number of elements held.
func (r *Ring[T]) Len() int { return r.size }

// Cap returns the ring capacity.
func (r *Ring[T]) Cap() int { return len(r.buf) }

// Last returns the newest element.
func (r *Ring[T]) Last() (T, bool) {
	var zero T
	if r.size == 0 {
		return zero, false
	}
	return r.buf[(r.start+r.size-1)%len(r.buf)], true
}

// Items returns a copy of the contents ordered oldest to newest.
func (r *Ring[T]) Items() []T {
	out := make([]T, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}

// Find returns the first element (oldest first) matching pred.
func (r *Ring[T]) Find(pred func(T) bool) (T, bool) {
	for i := 0; i < r.size; i++ {
		v := r.buf[(r.start+i)%len(r.buf)]
		if pred(v) {
			return v, true
		}
	}
	var zero T
	return zero, false
}
