package testutil

import (
	"bytes"
	"strings"
	"sync"
)

// LogBuffer is a goroutine-safe log sink
type LogBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *LogBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Contains reports whether any log line contains every fragment
func (b *LogBuffer) Contains(fragments ...string) bool {
	for _, line := range strings.Split(b.String(), "\n") {
		matched := true
		for _, f := range fragments {
			if !strings.Contains(line, f) {
				matched = false
				break
			}
		}
		if matched && line != "" {
			return true
		}
	}
	return false
}
