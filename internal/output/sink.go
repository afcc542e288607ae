// ============================================================================
// flatset - Flat collection manager
// ============================================================================
//
// Package:     output
// Description: Single-consumer output sink shared by all command executions
// Author:      Mike Stoffels
// Created:     2026-10-19
// License:     MIT
// ============================================================================

package output

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	mdwerror "github.com/msto63/flatset/foundation/core/error"
)

type message struct {
	text string
	ack  chan struct{}
}

// Sink serialises messages from any number of producers onto one writer.
// Each message is written whole, so concurrent command outputs never
// interleave within a message.
type Sink struct {
	w      io.Writer
	styles Styles
	queue  chan message
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
	once   sync.Once
}

// Options configures a Sink
type Options struct {
	// Buffer is the number of messages that may be queued before producers block
	Buffer int
	// Color is auto, always or never
	Color string
}

// New starts the consumer goroutine writing to w
func New(w io.Writer, opts Options) *Sink {
	if opts.Buffer < 1 {
		opts.Buffer = 1
	}
	s := &Sink{
		w:      w,
		styles: NewStyles(w, opts.Color),
		queue:  make(chan message, opts.Buffer),
		done:   make(chan struct{}),
	}
	go s.consume()
	return s
}

func (s *Sink) consume() {
	defer close(s.done)
	for m := range s.queue {
		if m.text != "" {
			_, _ = io.WriteString(s.w, m.text)
		}
		if m.ack != nil {
			close(m.ack)
		}
	}
}

func (s *Sink) enqueue(m message) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}
	s.queue <- m
	return true
}

// Styles returns the styles matching the sink's color mode
func (s *Sink) Styles() Styles {
	return s.styles
}

// Print writes text as one message, adding a trailing newline if missing
func (s *Sink) Print(text string) {
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	s.enqueue(message{text: text})
}

// Printf formats and writes one message
func (s *Sink) Printf(format string, args ...interface{}) {
	s.Print(fmt.Sprintf(format, args...))
}

// Prompt writes text without a newline and waits until it is on the writer
func (s *Sink) Prompt(text string) {
	ack := make(chan struct{})
	if s.enqueue(message{text: text, ack: ack}) {
		<-ack
	}
}

// Success writes a message in the success style
func (s *Sink) Success(format string, args ...interface{}) {
	s.Print(s.styles.Success.Render(fmt.Sprintf(format, args...)))
}

// Error writes err as "error [CODE]: message"
func (s *Sink) Error(err error) {
	s.Print(s.styles.Error.Render(FormatError(err)))
}

// FormatError renders an error the way the sink prints it
func FormatError(err error) string {
	var coded *mdwerror.Error
	if errors.As(err, &coded) && coded.Code() != mdwerror.CodeUnknown {
		return fmt.Sprintf("error [%s]: %s", coded.Code(), err.Error())
	}
	return fmt.Sprintf("error: %s", err.Error())
}

// Sync blocks until every message enqueued before the call has been written
func (s *Sink) Sync() {
	ack := make(chan struct{})
	if s.enqueue(message{ack: ack}) {
		<-ack
	}
}

// Close drains pending messages and stops the consumer. Later writes are
// dropped.
func (s *Sink) Close() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.queue)
		s.mu.Unlock()
	})
	<-s.done
}
