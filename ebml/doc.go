// Package ebml implements a schema-driven parser for the Extensible Binary
// Meta Language (EBML), the binary container format used by Matroska/WebM
// and by Amazon Kinesis Video Streams.
//
// EBML documents are trees of (id, size, payload) elements. This package
// loads an XML schema describing the element ids, names, and data kinds
// for a particular EBML dialect, then parses a byte stream into a lazy
// element tree keyed by that schema: payloads are only decoded when a
// caller asks for an element's value, and master elements only materialize
// their children on demand.
//
// The three layers are:
//
//   - varint.go / primitive.go: the VarInt codec and the per-kind
//     primitive encoders/decoders (UINT, INT, FLOAT, ASCII, UTF8, DATE,
//     BINARY, VOID).
//   - schema.go / schema_registry.go: the XML schema loader (both the
//     modern <Schema> dialect and the legacy <table> dialect) and a
//     bounded, path-keyed cache of loaded schemata.
//   - element.go / document.go: the lazy element tree and the Document
//     root that owns (or borrows) the underlying byte source.
//
// Package matroska-aware streaming (turning an unframed byte feed into
// whole MKV fragments) lives one level up, in the sibling kvsfragment
// package, which re-enters this package to parse each fragment's DOM.
package ebml
