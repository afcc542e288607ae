package dispatcher

import (
	"context"

	"github.com/msto63/flatset/internal/command"
)

type readResult struct {
	line string
	err  error
}

// ContextInput makes reads from a blocking Input such as stdin return once
// ctx is done.
// A read abandoned on cancellation finishes in the background and its line
// is dropped.
type ContextInput struct {
	ctx context.Context
	in  command.Input
}

// NewContextInput wraps in
func NewContextInput(ctx context.Context, in command.Input) *ContextInput {
	return &ContextInput{ctx: ctx, in: in}
}

// Terminal implements command.Input
func (c *ContextInput) Terminal() bool {
	return c.in.Terminal()
}

// ReadLine implements command.Input. It returns ctx.Err() once ctx is done.
func (c *ContextInput) ReadLine() (string, error) {
	if err := c.ctx.Err(); err != nil {
		return "", err
	}

	ch := make(chan readResult, 1)
	go func() {
		line, err := c.in.ReadLine()
		ch <- readResult{line: line, err: err}
	}()

	select {
	case r := <-ch:
		return r.line, r.err
	case <-c.ctx.Done():
		return "", c.ctx.Err()
	}
}
