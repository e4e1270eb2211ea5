package devices_test

import (
	"bytes"
	"io"
	"log"
	"sync"
)

// MockInterruptLine records every level a device drives.
type MockInterruptLine struct {
	mu     sync.Mutex
	levels []bool
}

func (m *MockInterruptLine) SetLevel(level bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.levels = append(m.levels, level)
}

// Level is the last level driven, false if none.
func (m *MockInterruptLine) Level() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.levels) == 0 {
		return false
	}
	return m.levels[len(m.levels)-1]
}

// Edges counts low-to-high transitions.
func (m *MockInterruptLine) Edges() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, prev := 0, false
	for _, l := range m.levels {
		if l && !prev {
			n++
		}
		prev = l
	}
	return n
}

func quietLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func captureLogger() (*log.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return log.New(&buf, "", 0), &buf
}
