package edgeio

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/hupe1980/csrgo/model"
)

// ErrMalformedLine is wrapped by every ParseError.
var ErrMalformedLine = errors.New("edgeio: malformed line")

// ParseError reports the input line that could not be parsed.
type ParseError struct {
	Line int
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("edgeio: line %d %q: %v", e.Line, e.Text, e.Err)
}

func (e *ParseError) Unwrap() []error { return []error{ErrMalformedLine, e.Err} }

// maxLineLen bounds a single input line.
const maxLineLen = 1 << 20

type options struct {
	skipHeader  bool
	defaultType model.RelationshipType
}

// ReaderOption configures an EdgeReader or NodeReader.
type ReaderOption func(*options)

// WithHeader skips the first non-comment line.
func WithHeader() ReaderOption {
	return func(o *options) { o.skipHeader = true }
}

// WithDefaultType tags edges whose line names no relationship type.
func WithDefaultType(t model.RelationshipType) ReaderOption {
	return func(o *options) { o.defaultType = t }
}

// lineScanner yields significant lines: blank lines and lines starting with
// '#' or '%' are skipped.
type lineScanner struct {
	sc     *bufio.Scanner
	line   int
	header bool
}

func newLineScanner(r io.Reader, o options) *lineScanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxLineLen)
	return &lineScanner{sc: sc, header: o.skipHeader}
}

func (s *lineScanner) next() (string, error) {
	for s.sc.Scan() {
		s.line++
		text := strings.TrimSpace(s.sc.Text())
		if text == "" || text[0] == '#' || text[0] == '%' {
			continue
		}
		if s.header {
			s.header = false
			continue
		}
		return text, nil
	}
	if err := s.sc.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (s *lineScanner) errorf(text string, format string, args ...any) error {
	return &ParseError{Line: s.line, Text: text, Err: fmt.Errorf(format, args...)}
}

func splitFields(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return r == ' ' || r == '\t' || r == ','
	})
}

// EdgeReader parses an edge list with one edge per line:
//
//	source target [property] [type]
//
// Fields are separated by blanks, tabs or commas. A third field that is not
// a number is taken as the type. EdgeReader satisfies the importer's edge
// source contract and is not safe for concurrent use.
type EdgeReader struct {
	ls   *lineScanner
	opts options
	read uint64
}

// NewEdgeReader returns a reader over r.
func NewEdgeReader(r io.Reader, opts ...ReaderOption) *EdgeReader {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &EdgeReader{ls: newLineScanner(r, o), opts: o}
}

// Next parses the next edge.
func (r *EdgeReader) Next() (model.Edge, error) {
	text, err := r.ls.next()
	if err != nil {
		return model.Edge{}, err
	}
	e, err := r.parse(text)
	if err != nil {
		return model.Edge{}, err
	}
	r.read++
	return e, nil
}

// NextBatch fills dst and returns io.EOF with the final batch.
func (r *EdgeReader) NextBatch(dst []model.Edge) (int, error) {
	for i := range dst {
		e, err := r.Next()
		if err != nil {
			return i, err
		}
		dst[i] = e
	}
	return len(dst), nil
}

// EdgesRead returns the number of edges parsed so far.
func (r *EdgeReader) EdgesRead() uint64 { return r.read }

func (r *EdgeReader) parse(text string) (model.Edge, error) {
	fields := splitFields(text)
	if len(fields) < 2 || len(fields) > 4 {
		return model.Edge{}, r.ls.errorf(text, "want 2 to 4 fields, got %d", len(fields))
	}

	src, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return model.Edge{}, r.ls.errorf(text, "source: %w", err)
	}
	dst, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return model.Edge{}, r.ls.errorf(text, "target: %w", err)
	}

	e := model.Edge{Source: src, Target: dst, Property: math.NaN(), Type: r.opts.defaultType}
	rest := fields[2:]
	if len(rest) > 0 {
		if v, err := strconv.ParseFloat(rest[0], 64); err == nil {
			e.Property = v
			rest = rest[1:]
		} else if len(rest) == 2 {
			return model.Edge{}, r.ls.errorf(text, "property: %w", err)
		}
	}
	if len(rest) == 1 {
		e.Type = model.RelationshipType(rest[0])
	}
	return e, nil
}

// NodeReader parses a node list with one node per line:
//
//	id [label ...]
type NodeReader struct {
	ls *lineScanner
}

// NewNodeReader returns a reader over r.
func NewNodeReader(r io.Reader, opts ...ReaderOption) *NodeReader {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &NodeReader{ls: newLineScanner(r, o)}
}

// Next parses the next node. It returns io.EOF at the end of the input.
func (r *NodeReader) Next() (model.Node, error) {
	text, err := r.ls.next()
	if err != nil {
		return model.Node{}, err
	}
	fields := splitFields(text)
	id, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return model.Node{}, r.ls.errorf(text, "id: %w", err)
	}
	n := model.Node{ID: id}
	if len(fields) > 1 {
		n.Labels = make([]model.Label, len(fields)-1)
		for i, f := range fields[1:] {
			n.Labels[i] = model.Label(f)
		}
	}
	return n, nil
}

// ForEach calls fn for every remaining node and stops at the first error.
func (r *NodeReader) ForEach(fn func(model.Node) error) error {
	for {
		n, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(n); err != nil {
			return err
		}
	}
}
