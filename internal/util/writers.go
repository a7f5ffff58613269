// Package util contains small io helpers shared by the scheduler and the workers.
package util

import (
	"bytes"
	"io"
	"sync"
)

// PrefixedWriter returns a writer that prepends prefix to every line written to writer.
func PrefixedWriter(writer io.Writer, prefix string) io.Writer {
	return &prefixedWriter{writer: writer, prefix: prefix, beginningOfANewLine: true}
}

type prefixedWriter struct {
	writer              io.Writer
	prefix              string
	beginningOfANewLine bool
}

func (pf *prefixedWriter) Write(p []byte) (int, error) {
	buf := bytes.Buffer{}

	for _, b := range p {
		if pf.beginningOfANewLine {
			buf.WriteString(pf.prefix)
			pf.beginningOfANewLine = false
		}

		buf.WriteByte(b)

		pf.beginningOfANewLine = b == '\n'
	}

	n, err := pf.writer.Write(buf.Bytes())
	if n > len(p) {
		n = len(p)
	}

	return n, err
}

// ChunkWriter is an io.Writer that hands a copy of every non-empty write to notifyFn.
// Once closed, writes are dropped.
type ChunkWriter struct {
	notifyFn func(p []byte)
	mu       sync.Mutex
	closed   bool
}

// NewChunkWriter returns a ChunkWriter calling notifyFn.
func NewChunkWriter(notifyFn func(p []byte)) *ChunkWriter {
	return &ChunkWriter{notifyFn: notifyFn}
}

// Write implements io.Writer.
func (w *ChunkWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.closed {
		w.notifyFn(bytes.Clone(p))
	}

	return len(p), nil
}

// Close stops forwarding writes.
func (w *ChunkWriter) Close() error {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()

	return nil
}
