package command

import (
	"bufio"
	"io"
	"strings"
)

// Input supplies lines to the session loop and to interactive commands
type Input interface {
	// ReadLine returns the next line without its line ending, or io.EOF
	ReadLine() (string, error)
	// Terminal reports whether a person is typing, which enables prompts
	// and re-asking after invalid values
	Terminal() bool
}

// LineReader reads lines from a stream such as stdin
type LineReader struct {
	r        *bufio.Reader
	terminal bool
}

// NewLineReader wraps r. terminal enables prompting.
func NewLineReader(r io.Reader, terminal bool) *LineReader {
	return &LineReader{r: bufio.NewReader(r), terminal: terminal}
}

// ReadLine implements Input. A final line without newline is returned
// before io.EOF.
func (l *LineReader) ReadLine() (string, error) {
	line, err := l.r.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Terminal implements Input
func (l *LineReader) Terminal() bool {
	return l.terminal
}

// LineSource serves a fixed set of lines, e.g. a script file, and
// remembers the number of the last line read.
type LineSource struct {
	lines []string
	pos   int
}

// NewLineSource creates a source over lines
func NewLineSource(lines []string) *LineSource {
	return &LineSource{lines: lines}
}

// ReadLine implements Input
func (s *LineSource) ReadLine() (string, error) {
	if s.pos >= len(s.lines) {
		return "", io.EOF
	}
	s.pos++
	return s.lines[s.pos-1], nil
}

// Terminal implements Input; scripts never prompt
func (s *LineSource) Terminal() bool {
	return false
}

// Line returns the 1-based number of the line last read
func (s *LineSource) Line() int {
	return s.pos
}
