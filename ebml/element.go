package ebml

import (
	"context"
	"errors"
	"io"
	"sync"
)

// ParseOptions controls how ParseElement materializes a single element.
type ParseOptions struct {
	// NoCache suppresses the precache-on-parse behavior even for element
	// types whose schema entry declares Precache=true.
	NoCache bool
}

// Element is one node of a parsed EBML tree: a schema-typed (or
// synthetic Unknown-typed) view over a span of an underlying byte
// source. An Element does not own its Source; it borrows a read cursor
// from whatever owns the stream (a Document, or a threadfile cursor).
type Element struct {
	Type          *ElementType
	Schema        *Schema
	Source        io.ReadSeeker
	Offset        int64
	PayloadOffset int64

	// Size is the payload length in bytes. nil means unknown/infinite,
	// which is only permitted when Type.Kind == KindMASTER; ParseElement
	// resolves it to a concrete value before returning.
	Size *uint64

	parentType *ElementType
	opts       ParseOptions

	mu          sync.Mutex
	cached      any
	cachedValid bool
}

// ParseElement reads one element header at offset in src, looks it up in
// schema (producing a synthetic Unknown element on a miss), and — for a
// MASTER element declared with unknown size — resolves that size by
// walking children until the first id that isn't a valid child of the
// element's own type (or one of the schema's globals), per the
// infinite-master termination rule. It returns the parsed element and
// the offset of the next sibling.
func ParseElement(src io.ReadSeeker, offset int64, schema *Schema, parent *ElementType, opts ParseOptions) (*Element, int64, error) {
	if _, err := src.Seek(offset, io.SeekStart); err != nil {
		return nil, 0, err
	}

	id, idLen, err := ReadID(src)
	if err != nil {
		return nil, 0, err
	}
	size, sizeLen, err := ReadSize(src)
	if err != nil {
		return nil, 0, err
	}

	payloadOffset := offset + int64(idLen) + int64(sizeLen)

	elemType, ok := schema.ByID(id)
	if !ok {
		elemType = &ElementType{ID: id, Name: "Unknown", Kind: KindUnknown, Length: -1}
	}

	if size == nil && elemType.Kind != KindMASTER {
		return nil, 0, ErrMalformedVarInt
	}

	el := &Element{
		Type:          elemType,
		Schema:        schema,
		Source:        src,
		Offset:        offset,
		PayloadOffset: payloadOffset,
		Size:          size,
		parentType:    parent,
		opts:          opts,
	}

	if size == nil {
		children, resolved, err := el.walkUnknownSizeChildren()
		if err != nil {
			return nil, 0, err
		}
		el.Size = &resolved
		el.cached = children
		el.cachedValid = true
	}

	if elemType.Kind != KindMASTER && elemType.Precache && !opts.NoCache {
		if _, err := el.Value(context.Background()); err != nil {
			return nil, 0, err
		}
	}

	next := payloadOffset + int64(*el.Size)
	return el, next, nil
}

// walkUnknownSizeChildren implements the unknown/infinite master
// termination rule: parse children from PayloadOffset until one isn't a
// valid child of this element's type (or a schema global), or the
// source runs out. The stopping position (exclusive of any invalid
// child) becomes the resolved size.
func (e *Element) walkUnknownSizeChildren() ([]*Element, uint64, error) {
	position := e.PayloadOffset
	var children []*Element
	for {
		child, next, err := ParseElement(e.Source, position, e.Schema, e.Type, e.opts)
		if err != nil {
			if errors.Is(err, ErrEndOfSource) {
				break
			}
			return nil, 0, err
		}
		if !e.Schema.IsValidChild(e.Type, child.Type.ID) {
			break
		}
		children = append(children, child)
		position = next
	}
	return children, uint64(position - e.PayloadOffset), nil
}

// children returns this master element's direct children, computing and
// caching them on first call. For an element parsed with unknown size
// they are already cached (computed during ParseElement); for a known
// size they are walked from PayloadOffset to PayloadOffset+Size here.
func (e *Element) children() ([]*Element, error) {
	e.mu.Lock()
	if e.cachedValid {
		children, _ := e.cached.([]*Element)
		e.mu.Unlock()
		return children, nil
	}
	e.mu.Unlock()

	end := e.PayloadOffset + int64(*e.Size)
	position := e.PayloadOffset
	var children []*Element
	for position < end {
		child, next, err := ParseElement(e.Source, position, e.Schema, e.Type, e.opts)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
		position = next
	}

	e.mu.Lock()
	e.cached = children
	e.cachedValid = true
	e.mu.Unlock()
	return children, nil
}

// Value returns this element's decoded payload, decoding and memoizing
// it on first call. For a MASTER element the value is its slice of
// direct children (each itself lazily decoded). Calling Value any
// number of times returns the same result without re-reading the
// source.
func (e *Element) Value(ctx context.Context) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	if e.cachedValid {
		v := e.cached
		e.mu.Unlock()
		return v, nil
	}
	e.mu.Unlock()

	if e.Type.Kind == KindMASTER {
		children, err := e.children()
		if err != nil {
			return nil, err
		}
		return children, nil
	}

	if e.Type.Kind == KindVOID {
		v := DecodeVoid(int(*e.Size))
		e.memoize(v)
		return v, nil
	}

	payload := make([]byte, int(*e.Size))
	if len(payload) > 0 {
		if _, err := e.Source.Seek(e.PayloadOffset, io.SeekStart); err != nil {
			return nil, err
		}
		if _, err := io.ReadFull(e.Source, payload); err != nil {
			return nil, err
		}
	}

	var value any
	var err error
	switch e.Type.Kind {
	case KindUINT:
		value = DecodeUint(payload)
	case KindINT:
		value = DecodeInt(payload)
	case KindFLOAT:
		value, err = DecodeFloat(payload)
	case KindASCII:
		value = DecodeASCII(payload, nil)
	case KindUTF8:
		value, err = DecodeUTF8(payload)
	case KindDATE:
		value, err = DecodeDate(payload)
	case KindBINARY, KindUnknown:
		value = DecodeBinary(payload)
	default:
		value = DecodeBinary(payload)
	}
	if err != nil {
		return nil, err
	}

	e.memoize(value)
	return value, nil
}

func (e *Element) memoize(v any) {
	e.mu.Lock()
	e.cached = v
	e.cachedValid = true
	e.mu.Unlock()
}

// Len reports, for a MASTER element, its number of direct children; for
// any other element, its declared payload size in bytes (so a VOID
// element's Len equals its declared size without reading the source).
func (e *Element) Len() (int, error) {
	if e.Type.Kind == KindMASTER {
		children, err := e.children()
		if err != nil {
			return 0, err
		}
		return len(children), nil
	}
	if e.Size == nil {
		return 0, ErrVerificationFailed
	}
	return int(*e.Size), nil
}

// Equal reports whether e and other have the same kind, id, offset,
// size, and schema. For Unknown elements it additionally compares
// decoded value, since id alone does not identify a schema entry.
func (e *Element) Equal(ctx context.Context, other *Element) (bool, error) {
	if other == nil {
		return false, nil
	}
	if e.Type.Kind != other.Type.Kind || e.Type.ID != other.Type.ID ||
		e.Offset != other.Offset || e.Schema != other.Schema {
		return false, nil
	}
	if (e.Size == nil) != (other.Size == nil) {
		return false, nil
	}
	if e.Size != nil && *e.Size != *other.Size {
		return false, nil
	}
	if e.Type.Kind != KindUnknown {
		return true, nil
	}

	v1, err := e.Value(ctx)
	if err != nil {
		return false, err
	}
	v2, err := other.Value(ctx)
	if err != nil {
		return false, err
	}
	b1, ok1 := v1.([]byte)
	b2, ok2 := v2.([]byte)
	if !ok1 || !ok2 {
		return false, nil
	}
	if len(b1) != len(b2) {
		return false, nil
	}
	for i := range b1 {
		if b1[i] != b2[i] {
			return false, nil
		}
	}
	return true, nil
}

// GC drops this element's memoized value. In recursive mode, a MASTER
// element's cached children are walked and cleared too. This is a
// best-effort way to cap resident memory on long-lived documents; it
// never touches the underlying source.
func (e *Element) GC(recursive bool) {
	e.mu.Lock()
	children, wasMaster := e.cached.([]*Element)
	e.cached = nil
	e.cachedValid = false
	e.mu.Unlock()

	if recursive && wasMaster {
		for _, c := range children {
			c.GC(true)
		}
	}
}
