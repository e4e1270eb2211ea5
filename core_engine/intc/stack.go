package intc

// LIFO is a bounded last-in first-out store. When full, a Push drops the
// oldest entry so the newest Cap()-1 entries survive unchanged.
type LIFO[T any] struct {
	items []T
	depth int
}

// NewLIFO creates an empty LIFO holding at most depth entries.
func NewLIFO[T any](depth int) *LIFO[T] {
	if depth < 1 {
		depth = 1
	}
	return &LIFO[T]{items: make([]T, 0, depth), depth: depth}
}

// Push saves v on top. It reports whether an old entry had to be evicted.
func (s *LIFO[T]) Push(v T) (evicted bool) {
	if len(s.items) == s.depth {
		copy(s.items, s.items[1:])
		s.items = s.items[:len(s.items)-1]
		evicted = true
	}
	s.items = append(s.items, v)
	return evicted
}

// Pop removes and returns the top entry. ok is false on underflow and the
// zero value is returned.
func (s *LIFO[T]) Pop() (v T, ok bool) {
	if len(s.items) == 0 {
		return v, false
	}
	v = s.items[len(s.items)-1]
	s.items = s.items[:len(s.items)-1]
	return v, true
}

// Peek returns the top entry without removing it.
func (s *LIFO[T]) Peek() (v T, ok bool) {
	if len(s.items) == 0 {
		return v, false
	}
	return s.items[len(s.items)-1], true
}

func (s *LIFO[T]) Len() int { return len(s.items) }
func (s *LIFO[T]) Cap() int { return s.depth }

// Reset empties the LIFO.
func (s *LIFO[T]) Reset() { s.items = s.items[:0] }

// Items returns a copy of the contents, oldest first.
func (s *LIFO[T]) Items() []T {
	out := make([]T, len(s.items))
	copy(out, s.items)
	return out
}

// load replaces the contents with items (oldest first), keeping the newest
// entries if items is longer than the depth.
func (s *LIFO[T]) load(items []T) {
	s.Reset()
	for _, v := range items {
		s.Push(v)
	}
}
