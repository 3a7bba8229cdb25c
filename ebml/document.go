package ebml

import (
	"context"
	"errors"
	"io"
	"os"
)

// DocumentOptions controls how a Document is constructed over a byte
// source.
type DocumentOptions struct {
	// HideHeaders advances PayloadOffset past a leading EBML header
	// element so sequential root iteration starts at the first
	// non-header root element. When false (the default), the header is
	// visible as the document's first root element.
	HideHeaders bool

	Parse ParseOptions
}

// Document is the root of a parsed EBML tree: a byte source plus the
// schema used to interpret it, with the decoded EBML header (if any)
// exposed as Info and sequential access to root elements.
type Document struct {
	Source io.ReadSeeker
	Schema *Schema
	Info   map[string]any

	offset        int64
	payloadOffset int64

	opts   DocumentOptions
	ownsSource bool
	closed     bool
}

// NewDocument constructs a Document over an already-open stream, which
// the Document does not own (Close is a no-op for it).
func NewDocument(stream io.ReadSeeker, schema *Schema, opts DocumentOptions) (*Document, error) {
	return newDocument(stream, schema, opts, false)
}

// Open opens path and constructs a Document that owns the resulting
// file: Close will close it.
func Open(path string, schema *Schema, opts DocumentOptions) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	doc, err := newDocument(f, schema, opts, true)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return doc, nil
}

func newDocument(stream io.ReadSeeker, schema *Schema, opts DocumentOptions, ownsSource bool) (*Document, error) {
	doc := &Document{
		Source:        stream,
		Schema:        schema,
		Info:          make(map[string]any),
		payloadOffset: 0,
		opts:          opts,
		ownsSource:    ownsSource,
	}

	first, next, err := ParseElement(stream, 0, schema, nil, opts.Parse)
	if err != nil {
		// A bad first element is not fatal at construction time; it is
		// deferred to actual traversal (At(0), iteration).
		return doc, nil
	}

	if first.Type.Name == "EBML" {
		v, err := first.Value(context.Background())
		if err == nil {
			if children, ok := v.([]*Element); ok {
				dumpInto(doc.Info, children)
			}
		}
		if opts.HideHeaders {
			doc.payloadOffset = next
		}
	}

	return doc, nil
}

func dumpInto(info map[string]any, children []*Element) {
	for _, c := range children {
		v, err := c.Value(context.Background())
		if err != nil {
			continue
		}
		info[c.Type.Name] = v
	}
}

// At parses and returns the i-th root element, walking sequentially from
// the start of the document (slicing is not supported).
func (d *Document) At(i int) (*Element, error) {
	if i < 0 {
		return nil, errors.New("ebml: negative index")
	}
	offset := d.payloadOffset
	for idx := 0; ; idx++ {
		el, next, err := ParseElement(d.Source, offset, d.Schema, nil, d.opts.Parse)
		if err != nil {
			return nil, err
		}
		if idx == i {
			return el, nil
		}
		offset = next
	}
}

// Len counts root elements without caching their values, regardless of
// whether the document's schema declares any element types precached.
func (d *Document) Len() int {
	count := 0
	offset := d.payloadOffset
	for {
		_, next, err := ParseElement(d.Source, offset, d.Schema, nil, ParseOptions{NoCache: true})
		if err != nil {
			return count
		}
		count++
		offset = next
	}
}

// Elements returns a range-over-func iterator over sequential root
// elements, stopping at the first parse error (including end of
// source).
func (d *Document) Elements() func(yield func(*Element) bool) {
	return func(yield func(*Element) bool) {
		offset := d.payloadOffset
		for {
			el, next, err := ParseElement(d.Source, offset, d.Schema, nil, d.opts.Parse)
			if err != nil {
				return
			}
			if !yield(el) {
				return
			}
			offset = next
		}
	}
}

// Close closes the underlying source iff this Document opened it (via
// Open); a Document constructed with NewDocument over a caller-supplied
// stream leaves it untouched.
func (d *Document) Close() error {
	if d.closed || !d.ownsSource {
		d.closed = true
		return nil
	}
	d.closed = true
	if closer, ok := d.Source.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
