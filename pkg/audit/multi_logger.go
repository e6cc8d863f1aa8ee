package audit

import (
	"context"
	"fmt"
	"sync"
)

// MultiLogger fans each entry out to several destinations, typically a
// database logger plus a file logger.
type MultiLogger struct {
	loggers []Logger
	async   bool
	wg      sync.WaitGroup
	errChan chan error
}

// NewMultiLogger creates a logger that writes to every given
// destination. Writes are asynchronous by default.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	return &MultiLogger{
		loggers: loggers,
		async:   true,
		errChan: make(chan error, len(loggers)*4),
	}
}

// SetAsync switches between asynchronous and synchronous writes
func (m *MultiLogger) SetAsync(async bool) {
	m.async = async
}

// Record writes the entry to all configured loggers
func (m *MultiLogger) Record(ctx context.Context, entry *Entry) error {
	if len(m.loggers) == 0 {
		return nil
	}

	if m.async {
		return m.recordAsync(ctx, entry)
	}
	return m.recordSync(ctx, entry)
}

func (m *MultiLogger) recordSync(ctx context.Context, entry *Entry) error {
	var firstErr error
	for _, logger := range m.loggers {
		if err := logger.Record(ctx, entry); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *MultiLogger) recordAsync(ctx context.Context, entry *Entry) error {
	for _, logger := range m.loggers {
		m.wg.Add(1)
		go func(l Logger) {
			defer m.wg.Done()
			if err := l.Record(ctx, entry); err != nil {
				select {
				case m.errChan <- err:
				default:
					// Channel full, drop the error.
				}
			}
		}(logger)
	}
	return nil
}

// Wait blocks until all pending asynchronous writes finish
func (m *MultiLogger) Wait() {
	m.wg.Wait()
}

// Errors drains and returns errors collected from asynchronous writes
func (m *MultiLogger) Errors() []error {
	var errs []error
	for {
		select {
		case err := <-m.errChan:
			errs = append(errs, err)
		default:
			return errs
		}
	}
}

// Close waits for pending writes and closes every logger
func (m *MultiLogger) Close() error {
	m.wg.Wait()

	var firstErr error
	for _, logger := range m.loggers {
		if err := logger.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close audit logger: %w", err)
		}
	}

	close(m.errChan)
	return firstErr
}
