package ebml

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Kind is the data kind of an element type: how its payload is decoded.
type Kind int

const (
	KindUnknown Kind = iota
	KindINT
	KindUINT
	KindFLOAT
	KindASCII
	KindUTF8
	KindDATE
	KindBINARY
	KindMASTER
	KindVOID
)

func (k Kind) String() string {
	switch k {
	case KindINT:
		return "INT"
	case KindUINT:
		return "UINT"
	case KindFLOAT:
		return "FLOAT"
	case KindASCII:
		return "ASCII"
	case KindUTF8:
		return "UTF8"
	case KindDATE:
		return "DATE"
	case KindBINARY:
		return "BINARY"
	case KindMASTER:
		return "MASTER"
	case KindVOID:
		return "VOID"
	default:
		return "UNKNOWN"
	}
}

// ElementType is a schema entry: an immutable description of one element
// id/name's data kind and, for MASTER kinds, its permitted direct
// children. Re-declarations of the same id or name are folded into the
// first registered *ElementType provided their attributes match.
type ElementType struct {
	ID        uint64
	Name      string
	Kind      Kind
	Precache  bool
	Mandatory bool
	Multiple  bool
	Global    bool
	Length    int // -1 when unconstrained
	Default   string

	Children map[uint64]*ElementType
}

func (t *ElementType) compatibleWith(other *ElementType) bool {
	return t.ID == other.ID &&
		t.Name == other.Name &&
		t.Kind == other.Kind &&
		t.Precache == other.Precache &&
		t.Mandatory == other.Mandatory &&
		t.Multiple == other.Multiple &&
		t.Global == other.Global &&
		t.Length == other.Length &&
		t.Default == other.Default
}

// Schema maps element ids and names to ElementTypes, tracks which ids are
// declared global (valid as a child of any master), and records which
// element types are permitted at the document root.
type Schema struct {
	byID         map[uint64]*ElementType
	byName       map[string]*ElementType
	Globals      map[uint64]*ElementType
	RootChildren map[uint64]*ElementType
}

func newSchema() *Schema {
	return &Schema{
		byID:         make(map[uint64]*ElementType),
		byName:       make(map[string]*ElementType),
		Globals:      make(map[uint64]*ElementType),
		RootChildren: make(map[uint64]*ElementType),
	}
}

// ByID looks up an element type by id.
func (s *Schema) ByID(id uint64) (*ElementType, bool) {
	t, ok := s.byID[id]
	return t, ok
}

// ByName looks up an element type by name.
func (s *Schema) ByName(name string) (*ElementType, bool) {
	t, ok := s.byName[name]
	return t, ok
}

// IsValidChild reports whether childID may appear directly beneath
// parent, i.e. it is declared under parent or flagged global.
func (s *Schema) IsValidChild(parent *ElementType, childID uint64) bool {
	if parent != nil {
		if _, ok := parent.Children[childID]; ok {
			return true
		}
	}
	_, ok := s.Globals[childID]
	return ok
}

// register folds candidate into the schema, returning the canonical
// *ElementType for its id/name (either candidate itself, newly stored, or
// a prior compatible declaration). ErrDuplicateAttributes is returned
// when an existing entry with the same id or name has different
// attributes.
func (s *Schema) register(candidate *ElementType) (*ElementType, error) {
	if existing, ok := s.byID[candidate.ID]; ok {
		if !existing.compatibleWith(candidate) {
			return nil, ErrDuplicateAttributes
		}
		return existing, nil
	}
	if existing, ok := s.byName[candidate.Name]; ok {
		if !existing.compatibleWith(candidate) {
			return nil, ErrDuplicateAttributes
		}
		return existing, nil
	}
	s.byID[candidate.ID] = candidate
	s.byName[candidate.Name] = candidate
	if candidate.Global {
		s.Globals[candidate.ID] = candidate
	}
	return candidate, nil
}

// LoadSchema parses an XML schema document in either the modern
// <Schema>-rooted dialect or the legacy <table>-rooted dialect, per the
// tag-name/type-attribute kind dispatch table.
func LoadSchema(r io.Reader) (*Schema, error) {
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil, fmt.Errorf("%w: empty document", ErrSchemaMalformed)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSchemaMalformed, err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch start.Name.Local {
		case "Schema":
			return loadModernSchema(dec, start)
		case "table":
			return loadLegacySchema(dec, start)
		default:
			return nil, fmt.Errorf("%w: unrecognized root element %q", ErrSchemaMalformed, start.Name.Local)
		}
	}
}

func loadModernSchema(dec *xml.Decoder, root xml.StartElement) (*Schema, error) {
	schema := newSchema()
	children, err := parseModernBody(dec, schema, nil, root.Name.Local)
	if err != nil {
		return nil, err
	}
	for _, c := range children {
		schema.RootChildren[c.ID] = c
	}
	return schema, nil
}

// modernKindTags maps a modern-dialect XML tag name to its data kind.
var modernKindTags = map[string]Kind{
	"IntegerElement":    KindINT,
	"UIntegerElement":   KindUINT,
	"FloatElement":      KindFLOAT,
	"StringElement":     KindASCII,
	"UTF8StringElement": KindUTF8,
	"DateElement":       KindDATE,
	"BinaryElement":     KindBINARY,
	"MasterElement":     KindMASTER,
}

// parseModernBody reads schema element declarations until the matching
// end tag for endName, registering each (recursively, for masters) under
// schema and returning the direct children declared at this level.
func parseModernBody(dec *xml.Decoder, schema *Schema, parent *ElementType, endName string) ([]*ElementType, error) {
	var children []*ElementType
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil, fmt.Errorf("%w: unterminated %q", ErrSchemaMalformed, endName)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSchemaMalformed, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			kind, ok := modernKindTags[t.Name.Local]
			if !ok {
				return nil, fmt.Errorf("%w: %q", ErrUnknownKind, t.Name.Local)
			}
			et, err := parseModernElement(dec, schema, t, kind)
			if err != nil {
				return nil, err
			}
			children = append(children, et)
		case xml.EndElement:
			if t.Name.Local == endName {
				return children, nil
			}
		}
	}
}

func parseModernElement(dec *xml.Decoder, schema *Schema, start xml.StartElement, kind Kind) (*ElementType, error) {
	attrs := attrMap(start.Attr)

	idStr, hasID := attrs["id"]
	name, hasName := attrs["name"]
	if !hasID || !hasName || idStr == "" || name == "" {
		return nil, ErrMissingIDOrName
	}
	if !isValidElementName(name) {
		return nil, fmt.Errorf("%w: name %q must begin with a letter or underscore", ErrSchemaMalformed, name)
	}
	id, err := parseHexID(idStr)
	if err != nil {
		return nil, fmt.Errorf("%w: bad id %q", ErrSchemaMalformed, idStr)
	}

	if name == "Void" {
		kind = KindVOID
	}

	candidate := &ElementType{
		ID:        id,
		Name:      name,
		Kind:      kind,
		Precache:  boolAttr(attrs, "precache", isNumericKind(kind)),
		Mandatory: boolAttr(attrs, "mandatory", false),
		Multiple:  boolAttr(attrs, "multiple", false),
		Global:    boolAttr(attrs, "global", false) || attrs["level"] == "-1",
		Length:    intAttr(attrs, "length", -1),
		Default:   attrs["default"],
	}

	if kind == KindMASTER {
		grandchildren, err := parseModernBody(dec, schema, candidate, start.Name.Local)
		if err != nil {
			return nil, err
		}
		candidate.Children = make(map[uint64]*ElementType, len(grandchildren))
		for _, c := range grandchildren {
			candidate.Children[c.ID] = c
		}
	} else if err := dec.Skip(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaMalformed, err)
	}

	return schema.register(candidate)
}

// legacyKindTypes maps a legacy-dialect type="..." attribute to its kind.
var legacyKindTypes = map[string]Kind{
	"integer":  KindINT,
	"uinteger": KindUINT,
	"float":    KindFLOAT,
	"string":   KindASCII,
	"utf-8":    KindUTF8,
	"date":     KindDATE,
	"binary":   KindBINARY,
	"master":   KindMASTER,
}

// loadLegacySchema parses the flat <table><element type="..."/>...</table>
// dialect. Hierarchy is not declared, so every element is treated as
// valid beneath any master (folded into schema.Globals) as well as at
// the document root.
func loadLegacySchema(dec *xml.Decoder, root xml.StartElement) (*Schema, error) {
	schema := newSchema()
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil, fmt.Errorf("%w: unterminated table", ErrSchemaMalformed)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSchemaMalformed, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local != "element" {
				if err := dec.Skip(); err != nil {
					return nil, fmt.Errorf("%w: %v", ErrSchemaMalformed, err)
				}
				continue
			}
			et, err := parseLegacyElement(dec, schema, t)
			if err != nil {
				return nil, err
			}
			schema.RootChildren[et.ID] = et
			schema.Globals[et.ID] = et
		case xml.EndElement:
			if t.Name.Local == root.Name.Local {
				return schema, nil
			}
		}
	}
}

func parseLegacyElement(dec *xml.Decoder, schema *Schema, start xml.StartElement) (*ElementType, error) {
	attrs := attrMap(start.Attr)

	idStr, hasID := attrs["id"]
	name, hasName := attrs["name"]
	if !hasID || !hasName || idStr == "" || name == "" {
		return nil, ErrMissingIDOrName
	}
	if !isValidElementName(name) {
		return nil, fmt.Errorf("%w: name %q must begin with a letter or underscore", ErrSchemaMalformed, name)
	}
	id, err := parseHexID(idStr)
	if err != nil {
		return nil, fmt.Errorf("%w: bad id %q", ErrSchemaMalformed, idStr)
	}

	kind, ok := legacyKindTypes[attrs["type"]]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, attrs["type"])
	}
	if name == "Void" {
		kind = KindVOID
	}

	candidate := &ElementType{
		ID:        id,
		Name:      name,
		Kind:      kind,
		Precache:  boolAttr(attrs, "precache", isNumericKind(kind)),
		Mandatory: boolAttr(attrs, "mandatory", false),
		Multiple:  boolAttr(attrs, "multiple", false),
		Global:    true, // legacy hierarchy is unused; treat every declaration as global
		Length:    intAttr(attrs, "length", -1),
		Default:   attrs["default"],
	}

	if err := dec.Skip(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaMalformed, err)
	}
	return schema.register(candidate)
}

// isValidElementName reports whether name begins with a letter or
// underscore, per the schema's element-name grammar.
func isValidElementName(name string) bool {
	if name == "" {
		return false
	}
	c := name[0]
	return c == '_' || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

func isNumericKind(k Kind) bool {
	return k == KindINT || k == KindUINT || k == KindFLOAT || k == KindDATE
}

func attrMap(attrs []xml.Attr) map[string]string {
	m := make(map[string]string, len(attrs))
	for _, a := range attrs {
		m[a.Name.Local] = a.Value
	}
	return m
}

func boolAttr(attrs map[string]string, key string, def bool) bool {
	v, ok := attrs[key]
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func intAttr(attrs map[string]string, key string, def int) int {
	v, ok := attrs[key]
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func parseHexID(s string) (uint64, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	return strconv.ParseUint(s, 16, 64)
}
