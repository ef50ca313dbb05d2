package logger

import (
	"bytes"
	"strings"
	"sync"
)

var (
	testLogger     Logger
	testLoggerOnce sync.Once
)

// NewTestLogger returns a shared error-level logger for tests
func NewTestLogger() Logger {
	testLoggerOnce.Do(func() {
		var err error
		testLogger, err = NewLogger(Config{
			Level:     "error",
			Output:    "stderr",
			Component: "test",
			Version:   "test",
		})
		if err != nil {
			panic(err)
		}
	})
	return testLogger
}

// LogCapture collects log output. It is safe to write to from concurrent
// goroutines, such as async calls logging while a test inspects the output.
type LogCapture struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (c *LogCapture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Write(p)
}

// Messages returns everything captured so far
func (c *LogCapture) Messages() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

// Lines returns the captured output split into entries
func (c *LogCapture) Lines() []string {
	out := strings.TrimRight(c.Messages(), "\n")
	if out == "" {
		return nil
	}
	return strings.Split(out, "\n")
}

// Contains reports whether any captured entry contains substr
func (c *LogCapture) Contains(substr string) bool {
	return strings.Contains(c.Messages(), substr)
}

// Reset drops the captured output
func (c *LogCapture) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buf.Reset()
}

// NewCaptureLogger returns a debug-level text logger writing to a LogCapture
func NewCaptureLogger() (Logger, *LogCapture) {
	capture := &LogCapture{}
	log, err := NewLogger(Config{
		Level:     "debug",
		Format:    "text",
		Writer:    capture,
		Component: "test",
		Version:   "test",
	})
	if err != nil {
		panic(err)
	}
	return log, capture
}
