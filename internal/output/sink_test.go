package output

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mdwerror "github.com/msto63/flatset/foundation/core/error"
)

// lockedBuffer lets the test read while the consumer writes
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestMessagesDoNotInterleave(t *testing.T) {
	out := &lockedBuffer{}
	s := New(out, Options{Buffer: 4, Color: "never"})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				s.Print(fmt.Sprintf("producer-%d line-a\nproducer-%d line-b", i, i))
			}
		}(i)
	}
	wg.Wait()
	s.Close()

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 400)
	for i := 0; i < len(lines); i += 2 {
		a := strings.TrimSuffix(lines[i], " line-a")
		b := strings.TrimSuffix(lines[i+1], " line-b")
		assert.Equal(t, a, b, "message split at line %d", i)
	}
}

func TestSyncWaitsForEarlierMessages(t *testing.T) {
	out := &lockedBuffer{}
	s := New(out, Options{Buffer: 16, Color: "never"})
	defer s.Close()

	s.Print("one")
	s.Printf("two %d", 2)
	s.Sync()

	assert.Equal(t, "one\ntwo 2\n", out.String())
}

func TestPromptHasNoNewline(t *testing.T) {
	out := &lockedBuffer{}
	s := New(out, Options{Color: "never"})
	defer s.Close()

	s.Prompt("> ")
	assert.Equal(t, "> ", out.String())
}

func TestErrorFormatting(t *testing.T) {
	assert.Equal(t, "error [NOT_FOUND]: no flat with id 3",
		FormatError(mdwerror.NotFound("no flat with id %d", 3)))
	assert.Equal(t, "error: plain", FormatError(errors.New("plain")))

	out := &lockedBuffer{}
	s := New(out, Options{Color: "never"})
	s.Error(mdwerror.Forbidden("flat 2 belongs to another user"))
	s.Close()
	assert.Equal(t, "error [FORBIDDEN]: flat 2 belongs to another user\n", out.String())
}

func TestWritesAfterCloseAreDropped(t *testing.T) {
	out := &lockedBuffer{}
	s := New(out, Options{Color: "never"})
	s.Print("kept")
	s.Close()
	s.Print("dropped")
	s.Sync()
	s.Close()

	assert.Equal(t, "kept\n", out.String())
}
