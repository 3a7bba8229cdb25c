package ebml

import (
	"bytes"
	"fmt"
	"time"
)

// Encode builds a complete in-memory EBML buffer from values, a
// map[string]any keyed by top-level element name (looked up schema-wide
// with ByName). MASTER values are nested map[string]any; everything
// else is encoded via the matching primitive Encode* function.
//
// This is a full-buffer encode only: there is no streaming/incremental
// master-element encode (write-side re-encoding of a growing master is
// out of scope, matching the read side's own buffering of encoded
// children before emitting a size prefix).
func (s *Schema) Encode(values map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	for name, v := range values {
		elemType, ok := s.ByName(name)
		if !ok {
			return nil, ErrMissingIDOrName
		}
		encoded, err := s.encodeElement(elemType, v)
		if err != nil {
			return nil, err
		}
		buf.Write(encoded)
	}
	return buf.Bytes(), nil
}

func (s *Schema) encodeElement(elemType *ElementType, v any) ([]byte, error) {
	payload, err := s.encodePayload(elemType, v)
	if err != nil {
		return nil, err
	}

	idBytes, err := EncodeID(elemType.ID, 0)
	if err != nil {
		return nil, err
	}
	size := uint64(len(payload))
	sizeBytes, err := EncodeSize(&size, 0)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(idBytes)+len(sizeBytes)+len(payload))
	out = append(out, idBytes...)
	out = append(out, sizeBytes...)
	out = append(out, payload...)
	return out, nil
}

func (s *Schema) encodePayload(elemType *ElementType, v any) ([]byte, error) {
	switch elemType.Kind {
	case KindMASTER:
		children, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: %s expects a nested object", ErrSchemaMalformed, elemType.Name)
		}
		var inner bytes.Buffer
		for name, cv := range children {
			childType, ok := findChildByName(elemType, name)
			if !ok {
				childType, ok = s.ByName(name)
			}
			if !ok {
				return nil, fmt.Errorf("%w: %s has no child %s", ErrMissingIDOrName, elemType.Name, name)
			}
			encoded, err := s.encodeElement(childType, cv)
			if err != nil {
				return nil, err
			}
			inner.Write(encoded)
		}
		return inner.Bytes(), nil
	case KindUINT:
		n, err := toUint64(v)
		return EncodeUint(n), err
	case KindINT:
		n, err := toInt64(v)
		return EncodeInt(n), err
	case KindFLOAT:
		f, err := toFloat64(v)
		return EncodeFloat(f), err
	case KindASCII:
		return EncodeASCII(fmt.Sprint(v), -1), nil
	case KindUTF8:
		return EncodeUTF8(fmt.Sprint(v), -1), nil
	case KindDATE:
		t, ok := v.(time.Time)
		if !ok {
			return nil, fmt.Errorf("%w: %s expects a time.Time", ErrSchemaMalformed, elemType.Name)
		}
		return EncodeDate(t), nil
	case KindVOID:
		if b, ok := v.([]byte); ok {
			return EncodeVoid(len(b)), nil
		}
		n, err := toUint64(v)
		return EncodeVoid(int(n)), err
	default:
		b, ok := v.([]byte)
		if !ok {
			return nil, fmt.Errorf("%w: %s expects []byte", ErrSchemaMalformed, elemType.Name)
		}
		return EncodeBinary(b), nil
	}
}

// findChildByName finds parent's direct child declared with the given
// name, reporting false on a miss; encodePayload then falls back to a
// schema-wide ByName lookup (which is how global children are found).
func findChildByName(parent *ElementType, name string) (*ElementType, bool) {
	for _, child := range parent.Children {
		if child.Name == name {
			return child, true
		}
	}
	return nil, false
}

func toUint64(v any) (uint64, error) {
	switch n := v.(type) {
	case uint64:
		return n, nil
	case int:
		return uint64(n), nil
	case int64:
		return uint64(n), nil
	case uint:
		return uint64(n), nil
	default:
		return 0, fmt.Errorf("%w: expected an unsigned integer", ErrSchemaMalformed)
	}
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("%w: expected an integer", ErrSchemaMalformed)
	}
}

func toFloat64(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("%w: expected a float", ErrSchemaMalformed)
	}
}
