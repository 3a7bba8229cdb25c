package ebml

import "errors"

// Error kinds surfaced by the codec, schema, and element layers.
//
// UnknownElementId is deliberately absent from this list: an id not found
// in the schema is not an error, it produces a synthetic Unknown element
// (see element.go).
var (
	// ErrEndOfSource is returned when a read runs out of bytes. It is
	// benign when it happens while looking for the next top-level
	// element, and fatal anywhere else (mid-VarInt, mid-payload).
	ErrEndOfSource = errors.New("ebml: end of source")

	// ErrInvalidID is returned by ReadID/EncodeID when an id's length
	// prefix would need more than 4 octets.
	ErrInvalidID = errors.New("ebml: invalid element id")

	// ErrMalformedVarInt is returned when a VarInt's length marker byte
	// is zero (no leading 1-bit found in the first 8 bits).
	ErrMalformedVarInt = errors.New("ebml: malformed varint")

	// ErrInvalidFloatSize is returned when a FLOAT element's size is
	// anything other than 0, 4, or 8.
	ErrInvalidFloatSize = errors.New("ebml: invalid float size")

	// ErrLengthTooSmall is returned by an Encode* function when a
	// caller-supplied fixed length cannot hold the minimum encoding.
	ErrLengthTooSmall = errors.New("ebml: fixed length too small")

	// ErrSchemaMalformed is returned when a schema XML document cannot
	// be parsed at all (bad XML, unrecognized root element).
	ErrSchemaMalformed = errors.New("ebml: schema malformed")

	// ErrUnknownKind is returned when a schema declares an element whose
	// tag name (modern dialect) or type attribute (legacy dialect) does
	// not map to a known data kind.
	ErrUnknownKind = errors.New("ebml: unknown element kind")

	// ErrDuplicateAttributes is returned when the same (id, name) pair
	// is declared twice in a schema with incompatible attributes.
	ErrDuplicateAttributes = errors.New("ebml: duplicate element declared with different attributes")

	// ErrMissingIDOrName is returned when a schema element declaration
	// lacks a required id or name attribute.
	ErrMissingIDOrName = errors.New("ebml: element missing id or name")

	// ErrVerificationFailed is returned by Verify when a document
	// contains an Unknown element or a value that fails to decode.
	ErrVerificationFailed = errors.New("ebml: verification failed")
)
