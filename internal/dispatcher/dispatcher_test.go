package dispatcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mdwerror "github.com/msto63/flatset/foundation/core/error"
	"github.com/msto63/flatset/internal/collection"
	"github.com/msto63/flatset/internal/command"
	"github.com/msto63/flatset/internal/output"
	"github.com/msto63/flatset/pkg/core/metrics"
)

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

type panicCommand struct{}

func (panicCommand) Name() string        { return "explode" }
func (panicCommand) Usage() string       { return "explode" }
func (panicCommand) Description() string { return "panics" }
func (panicCommand) Execute(ctx context.Context, env *command.Env, arg string) error {
	panic("boom")
}

type fixture struct {
	m    *Manager
	coll *collection.Collection
	out  *lockedBuffer
	sink *output.Sink
}

func newFixture(t *testing.T, async bool, workers int) *fixture {
	t.Helper()
	buf := &lockedBuffer{}
	sink := output.New(buf, output.Options{Buffer: 64, Color: "never"})
	t.Cleanup(sink.Close)

	reg, err := command.NewRegistry(append(command.Builtins(), NewScriptCommand(), panicCommand{})...)
	require.NoError(t, err)

	coll := collection.New()
	m, err := New(Options{
		Registry:   reg,
		Collection: coll,
		Out:        sink,
		Metrics:    metrics.New(),
		Async:      async,
		Workers:    workers,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return &fixture{m: m, coll: coll, out: buf, sink: sink}
}

func (f *fixture) output() string {
	f.m.Wait()
	f.sink.Sync()
	return f.out.String()
}

func (f *fixture) exec(t *testing.T, line string) error {
	t.Helper()
	return f.m.Execute(context.Background(), line, command.NewLineSource(nil))
}

func writeScript(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func TestSplit(t *testing.T) {
	tests := []struct {
		line, name, arg string
	}{
		{"show", "show", ""},
		{"  ADD  {a,1,2,3,4,,5,PARK}  ", "add", "{a,1,2,3,4,,5,PARK}"},
		{"update_by_id\t3 {\"name\":\"x\"}", "update_by_id", "3 {\"name\":\"x\"}"},
		{"", "", ""},
	}
	for _, tt := range tests {
		name, arg := Split(tt.line)
		assert.Equal(t, tt.name, name, tt.line)
		assert.Equal(t, tt.arg, arg, tt.line)
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)
	assert.True(t, mdwerror.HasCode(err, mdwerror.CodeConfigError))
}

func TestUnknownCommand(t *testing.T) {
	f := newFixture(t, false, 0)

	err := f.exec(t, "launch_rocket now")
	require.Error(t, err)
	assert.True(t, mdwerror.HasCode(err, mdwerror.CodeUnknownCommand))
	assert.Contains(t, f.output(), "error [UNKNOWN_COMMAND]")
	assert.Equal(t, 0, f.coll.Len())
}

func TestScenario(t *testing.T) {
	f := newFixture(t, false, 0)

	require.NoError(t, f.exec(t, "add {Unit A,10,-100,75,3,true,15.5,PARK}"))
	assert.Equal(t, 1, f.coll.Len())
	first, ok := f.coll.Get(1)
	require.True(t, ok)
	assert.Equal(t, "Unit A", first.Name)

	require.NoError(t, f.exec(t, "add {Unit B,0,0,40,2,false,10,STREET}"))
	require.NoError(t, f.exec(t, "add_if_max {Unit C,5,5,120,5,true,30,NORMAL}"))
	assert.Equal(t, 3, f.coll.Len())

	require.NoError(t, f.exec(t, "remove_greater 1"))
	assert.Equal(t, 1, f.coll.Len())
	_, ok = f.coll.Get(1)
	assert.True(t, ok)
	assert.Contains(t, f.output(), "removed 2 flats greater than #1")
}

func TestAsyncDispatch(t *testing.T) {
	f := newFixture(t, true, 1)

	for i := 0; i < 10; i++ {
		require.NoError(t, f.exec(t, fmt.Sprintf("add {Flat %d,%d,0,%d,1,,5,PARK}", i, i, 10+i)))
	}
	f.m.Wait()

	flats := f.coll.Snapshot()
	require.Len(t, flats, 10)
	for i, fl := range flats {
		assert.Equal(t, int64(i+1), fl.ID)
		assert.Equal(t, fmt.Sprintf("Flat %d", i), fl.Name)
	}
}

func TestAsyncDispatchWithManyWorkers(t *testing.T) {
	f := newFixture(t, true, 4)

	for i := 0; i < 50; i++ {
		require.NoError(t, f.exec(t, "add {Flat,1,1,10,1,,5,PARK}"))
	}
	require.NoError(t, f.m.Close())
	assert.Equal(t, 50, f.coll.Len())
	assert.Equal(t, int64(50), f.coll.HighWater())
}

func TestFailedCommandRecordsOperation(t *testing.T) {
	f := newFixture(t, false, 0)

	err := f.exec(t, "remove_by_id 42")
	require.Error(t, err)
	var coded *mdwerror.Error
	require.ErrorAs(t, err, &coded)
	assert.Equal(t, "remove_by_id", coded.Operation())
}

func TestPanicIsReportedAsInternal(t *testing.T) {
	f := newFixture(t, false, 0)

	err := f.exec(t, "explode")
	require.Error(t, err)
	assert.True(t, mdwerror.HasCode(err, mdwerror.CodeInternal))
	assert.Contains(t, f.output(), "error [INTERNAL]")

	require.NoError(t, f.exec(t, "add {Flat,1,1,10,1,,5,PARK}"))
}

func TestRunStopsOnExit(t *testing.T) {
	f := newFixture(t, true, 2)
	in := command.NewLineReader(strings.NewReader(
		"# seed\n\nadd {A,1,1,10,1,,5,PARK}\nexit\nadd {B,1,1,10,1,,5,PARK}\n"), false)

	require.NoError(t, f.m.Run(context.Background(), in))
	f.m.Wait()
	assert.Equal(t, 1, f.coll.Len())
	assert.False(t, f.m.Session().Running())
}

func TestRunEndsAtEOF(t *testing.T) {
	f := newFixture(t, false, 0)
	in := command.NewLineReader(strings.NewReader("add {A,1,1,10,1,,5,PARK}\nadd {B,1,1,10,1,,5,PARK}"), false)

	require.NoError(t, f.m.Run(context.Background(), in))
	assert.Equal(t, 2, f.coll.Len())
}

func TestRunReadsInteractiveAnswersFromInput(t *testing.T) {
	f := newFixture(t, true, 2)
	in := command.NewLineReader(strings.NewReader(strings.Join([]string{
		"add",
		"Garden Flat", "3", "4", "60", "2", "true", "12", "PARK", "n",
		"show",
	}, "\n")), false)

	require.NoError(t, f.m.Run(context.Background(), in))
	added, ok := f.coll.Get(1)
	require.True(t, ok)
	assert.Equal(t, "Garden Flat", added.Name)
	assert.Nil(t, added.House)
	assert.Contains(t, f.output(), "Garden Flat")
}

func TestRunReturnsWhenCancelledWhileReading(t *testing.T) {
	f := newFixture(t, true, 2)
	pr, pw := io.Pipe()
	t.Cleanup(func() { _ = pw.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- f.m.Run(ctx, command.NewLineReader(pr, false)) }()

	_, err := io.WriteString(pw, "add {A,1,1,10,1,,5,PARK}\n")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return f.coll.Len() == 1 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run still blocked on input after cancel")
	}
}

func TestRunCancelsInteractivePrompt(t *testing.T) {
	f := newFixture(t, false, 0)
	pr, pw := io.Pipe()
	t.Cleanup(func() { _ = pw.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- f.m.Run(ctx, command.NewLineReader(pr, true)) }()

	_, err := io.WriteString(pw, "add\nHalf Done\n")
	require.NoError(t, err)
	// the add command now waits for coordinate x
	require.Eventually(t, func() bool { return strings.Contains(f.out.String(), "coordinate x") }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("interactive add still blocked on input after cancel")
	}
	assert.Zero(t, f.coll.Len())
	assert.Contains(t, f.output(), "error [SHUTDOWN]")
}

func TestContextInputPassesLinesThrough(t *testing.T) {
	in := NewContextInput(context.Background(), command.NewLineReader(strings.NewReader("show\ninfo"), true))
	assert.True(t, in.Terminal())

	for _, want := range []string{"show", "info"} {
		line, err := in.ReadLine()
		require.NoError(t, err)
		assert.Equal(t, want, line)
	}
	_, err := in.ReadLine()
	assert.ErrorIs(t, err, io.EOF)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewContextInput(ctx, command.NewLineSource([]string{"show"})).ReadLine()
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScriptReportsFailingLines(t *testing.T) {
	f := newFixture(t, true, 2)
	dir := t.TempDir()
	path := writeScript(t, dir, "seed.txt",
		"# seed data",
		"add {A,1,1,10,1,,5,PARK}",
		"remove_by_id 42",
		"",
		"add {B,1,1,20,2,,5,PARK}",
	)

	require.NoError(t, f.exec(t, "execute_script "+path))
	assert.Equal(t, 2, f.coll.Len())

	out := f.output()
	assert.Contains(t, out, path+":3")
	assert.Contains(t, out, "error [NOT_FOUND]")
	assert.Contains(t, out, "3 executed, 1 failed")
}

func TestScriptFeedsInteractiveCommands(t *testing.T) {
	f := newFixture(t, false, 0)
	path := writeScript(t, t.TempDir(), "interactive.txt",
		"add",
		"Scripted", "1", "2", "30", "1", "", "8", "BAD", "y", "Block", "1970", "6",
		"show",
	)

	require.NoError(t, f.exec(t, "execute_script "+path))
	added, ok := f.coll.Get(1)
	require.True(t, ok)
	assert.Equal(t, "Scripted", added.Name)
	require.NotNil(t, added.House)
	assert.Equal(t, "Block", added.House.Name)
	assert.Contains(t, f.output(), "2 executed, 0 failed")
}

func TestScriptInvalidInteractiveRecordFailsOnce(t *testing.T) {
	f := newFixture(t, false, 0)
	path := writeScript(t, t.TempDir(), "bad.txt",
		"add",
		"Scripted", "1", "-900", "30", "1", "", "8", "PARK", "n",
		"add {A,1,1,10,1,,5,PARK}",
	)

	require.NoError(t, f.exec(t, "execute_script "+path))
	assert.Equal(t, 1, f.coll.Len())

	out := f.output()
	assert.Contains(t, out, path+":1")
	assert.Contains(t, out, "error [VALIDATION_FAILED]")
	assert.NotContains(t, out, "UNKNOWN_COMMAND")
	assert.Contains(t, out, "2 executed, 1 failed")
}

func TestScriptRecursionIsRejected(t *testing.T) {
	f := newFixture(t, false, 0)
	dir := t.TempDir()
	path := filepath.Join(dir, "self.txt")
	writeScript(t, dir, "self.txt",
		"add {A,1,1,10,1,,5,PARK}",
		"execute_script "+path,
	)

	require.NoError(t, f.exec(t, "execute_script "+path))
	assert.Equal(t, 1, f.coll.Len())
	out := f.output()
	assert.Contains(t, out, "error [SCRIPT_RECURSION]")
	assert.Contains(t, out, "2 executed, 1 failed")
}

func TestScriptDepthLimit(t *testing.T) {
	f := newFixture(t, false, 0)
	dir := t.TempDir()
	// each script calls the next one, deeper than the default limit
	for i := 0; i <= DefaultMaxScriptDepth; i++ {
		writeScript(t, dir, fmt.Sprintf("s%d.txt", i), "execute_script "+filepath.Join(dir, fmt.Sprintf("s%d.txt", i+1)))
	}
	writeScript(t, dir, fmt.Sprintf("s%d.txt", DefaultMaxScriptDepth+1), "add {A,1,1,10,1,,5,PARK}")

	require.NoError(t, f.exec(t, "execute_script "+filepath.Join(dir, "s0.txt")))
	assert.Equal(t, 0, f.coll.Len())
	assert.Contains(t, f.output(), "error [SCRIPT_DEPTH_EXCEEDED]")
}

func TestExitInScriptStopsOnlyTheScript(t *testing.T) {
	f := newFixture(t, false, 0)
	path := writeScript(t, t.TempDir(), "early.txt",
		"add {A,1,1,10,1,,5,PARK}",
		"exit",
		"add {B,1,1,10,1,,5,PARK}",
	)
	in := command.NewLineReader(strings.NewReader("execute_script "+path+"\nadd {C,1,1,10,1,,5,PARK}\n"), false)

	require.NoError(t, f.m.Run(context.Background(), in))
	require.Equal(t, 2, f.coll.Len())
	second, _ := f.coll.Get(2)
	assert.Equal(t, "C", second.Name)
	assert.Contains(t, f.output(), "2 executed, 0 failed")
}

func TestMissingScript(t *testing.T) {
	f := newFixture(t, false, 0)

	err := f.exec(t, "execute_script "+filepath.Join(t.TempDir(), "nope.txt"))
	require.Error(t, err)
	assert.True(t, mdwerror.HasCode(err, mdwerror.CodeIOError))

	err = f.exec(t, "execute_script")
	assert.True(t, mdwerror.HasCode(err, mdwerror.CodeInvalidInput))
}

func TestDefaultRegistry(t *testing.T) {
	reg, err := DefaultRegistry()
	require.NoError(t, err)
	_, ok := reg.Lookup("execute_script")
	assert.True(t, ok)
	assert.Len(t, reg.Commands(), len(command.Builtins())+1)
}
