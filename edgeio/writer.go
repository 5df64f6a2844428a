package edgeio

import (
	"bufio"
	"io"
	"strconv"

	"github.com/hupe1980/csrgo/model"
)

// EdgeWriter writes edges in the format EdgeReader parses.
type EdgeWriter struct {
	w       *bufio.Writer
	buf     []byte
	written uint64
}

// NewEdgeWriter returns a buffered writer over w. Call Flush when done.
func NewEdgeWriter(w io.Writer) *EdgeWriter {
	return &EdgeWriter{w: bufio.NewWriterSize(w, 64<<10), buf: make([]byte, 0, 64)}
}

// Write appends one line for e.
func (w *EdgeWriter) Write(e model.Edge) error {
	b := w.buf[:0]
	b = strconv.AppendUint(b, e.Source, 10)
	b = append(b, ' ')
	b = strconv.AppendUint(b, e.Target, 10)
	if e.HasProperty() {
		b = append(b, ' ')
		b = strconv.AppendFloat(b, e.Property, 'g', -1, 64)
	}
	if e.Type != "" {
		b = append(b, ' ')
		b = append(b, e.Type...)
	}
	b = append(b, '\n')
	w.buf = b

	if _, err := w.w.Write(b); err != nil {
		return err
	}
	w.written++
	return nil
}

// Written returns the number of edges written.
func (w *EdgeWriter) Written() uint64 { return w.written }

// Flush writes buffered lines to the underlying writer.
func (w *EdgeWriter) Flush() error { return w.w.Flush() }

// WriteNode writes one node line.
func WriteNode(w io.Writer, n model.Node) error {
	b := strconv.AppendUint(nil, n.ID, 10)
	for _, l := range n.Labels {
		b = append(b, ' ')
		b = append(b, l...)
	}
	b = append(b, '\n')
	_, err := w.Write(b)
	return err
}
