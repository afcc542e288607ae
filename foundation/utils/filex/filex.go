// File: filex.go
// Title: Core File Utilities
// Description: File helpers shared by the store and the script runner:
//              existence checks, line reading, atomic writes and size
//              formatting. Errors carry the IO_ERROR code.
// Author: msto63
// Version: v0.2.0
// Created: 2025-01-25
// Modified: 2026-10-19
//
// Change History:
// - 2025-01-25 v0.1.0: Initial implementation with comprehensive file utilities
// - 2026-10-19 v0.2.0: Reduced to the helpers flatset uses, added WriteAtomic

package filex

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	mdwerror "github.com/msto63/flatset/foundation/core/error"
)

// Exists checks if a file or directory exists
func Exists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// AbsPath returns the cleaned absolute path of a file
func AbsPath(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", ioError(err, "failed to get absolute path for %s", path)
	}
	return absPath, nil
}

// ReadLines reads the file and returns its contents as a slice of lines
func ReadLines(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, ioError(err, "failed to open file %s", path)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, ioError(err, "error reading lines from %s", path)
	}
	return lines, nil
}

// WriteAtomic writes data to a temp file in the target directory and renames
// it over path, so readers never observe a partially written file. Missing
// parent directories are created.
func WriteAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ioError(err, "failed to create directory %s", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return ioError(err, "failed to create temp file for %s", path)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return ioError(err, "failed to write %s", path)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return ioError(err, "failed to sync %s", path)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return ioError(err, "failed to close %s", path)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		cleanup()
		return ioError(err, "failed to set permissions on %s", path)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return ioError(err, "failed to replace %s", path)
	}
	return nil
}

// FormatSize formats a size in bytes to a human-readable string
func FormatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	units := []string{"KB", "MB", "GB", "TB", "PB"}
	return fmt.Sprintf("%.1f %s", float64(bytes)/float64(div), units[exp])
}

func ioError(err error, format string, args ...interface{}) error {
	return mdwerror.Wrapf(err, format, args...).WithCode(mdwerror.CodeIOError)
}
