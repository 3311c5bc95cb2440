// Package csvstream implements a zero-copy, memory-mapped scanner over
// fixed-column CSV files: the wire format used by the segment and way speed
// maps. Rows are delivered as byte slices pointing directly into the mapped
// file; callers that need to retain a field past the current row's callback
// must copy it.
package csvstream

import (
	"bytes"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// File is a read-only memory mapping of a CSV file.
type File struct {
	path string
	fd   *os.File
	data []byte
}

// Open memory-maps path for reading. The caller must call Close when done.
func Open(path string) (*File, error) {
	fd, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csvstream: open %s: %w", path, err)
	}

	stat, err := fd.Stat()
	if err != nil {
		fd.Close()
		return nil, fmt.Errorf("csvstream: stat %s: %w", path, err)
	}
	if stat.Size() == 0 {
		fd.Close()
		return &File{path: path, fd: nil, data: nil}, nil
	}

	data, err := unix.Mmap(int(fd.Fd()), 0, int(stat.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		fd.Close()
		return nil, fmt.Errorf("csvstream: mmap %s: %w", path, err)
	}

	return &File{path: path, fd: fd, data: data}, nil
}

// Close unmaps the file and releases its descriptor. Safe to call on an
// empty mapping.
func (f *File) Close() error {
	var err error
	if f.data != nil {
		if unmapErr := unix.Munmap(f.data); unmapErr != nil {
			err = fmt.Errorf("csvstream: munmap %s: %w", f.path, unmapErr)
		}
		f.data = nil
	}
	if f.fd != nil {
		if closeErr := f.fd.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("csvstream: close %s: %w", f.path, closeErr)
		}
		f.fd = nil
	}
	return err
}

// ParseError reports a malformed row, identified by its 1-based line number
// within the source file.
type ParseError struct {
	Path string
	Line int
	Text string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("csvstream: %s:%d: %s", e.Path, e.Line, e.Text)
}

// RowFunc is called once per CSV row with that row's comma-separated
// fields, sliced directly out of the mapped file (valid only until the next
// call). Returning an error aborts the scan; Each wraps it in a ParseError
// carrying the row's line number.
type RowFunc func(fields [][]byte) error

// Each scans every line of the mapped file, splitting on commas, and
// invokes fn once per row. Blank trailing lines are skipped. If fn returns
// an error, Each stops and returns a *ParseError identifying the failing
// line by scanning backward from the row's start offset to count preceding
// newlines.
func (f *File) Each(fn RowFunc) error {
	data := f.data
	line := 0
	pos := 0

	for pos < len(data) {
		nl := bytes.IndexByte(data[pos:], '\n')
		var row []byte
		var next int
		if nl < 0 {
			row = data[pos:]
			next = len(data)
		} else {
			row = data[pos : pos+nl]
			next = pos + nl + 1
		}
		line++

		trimmed := bytes.TrimRight(row, "\r")
		if len(trimmed) > 0 {
			fields := bytes.Split(trimmed, []byte(","))
			if err := fn(fields); err != nil {
				return &ParseError{Path: f.path, Line: lineNumberAt(data, pos), Text: err.Error()}
			}
		}
		pos = next
	}
	return nil
}

// lineNumberAt returns the 1-based line number containing byte offset off,
// found by scanning backward from off to the start of the buffer and
// counting newlines crossed.
func lineNumberAt(data []byte, off int) int {
	line := 1
	for i := off - 1; i >= 0; i-- {
		if data[i] == '\n' {
			line++
		}
	}
	return line
}
