package ebml

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// RenderOptions controls ToXML's output.
type RenderOptions struct {
	// BinaryCodec selects how BINARY/VOID payloads are rendered: "base64"
	// (default, 76-column wrapped), "hex" (16 octets per line as 2-octet
	// words with a decimal offset column), or "ignore" (payload
	// suppressed entirely).
	BinaryCodec string
}

// ToXML renders el (and, for a MASTER, its full subtree) as one XML
// element per EBML element, tag name = element name, per the external
// rendering contract: offset/size/type/id attributes plus an encoding
// attribute naming the binary codec used on BINARY/VOID payloads.
func ToXML(w io.Writer, el *Element) error {
	return ToXMLWithOptions(w, el, RenderOptions{})
}

// ToXMLWithOptions is ToXML with an explicit binary codec choice.
func ToXMLWithOptions(w io.Writer, el *Element, opts RenderOptions) error {
	if opts.BinaryCodec == "" {
		opts.BinaryCodec = "base64"
	}
	return renderElement(w, el, opts)
}

func renderElement(w io.Writer, el *Element, opts RenderOptions) error {
	ctx := context.Background()
	length, err := el.Len()
	if err != nil {
		return err
	}
	attrs := fmt.Sprintf(` offset="%d" size="%d" type="%s" id="0x%X"`, el.Offset, length, el.Type.Kind, el.Type.ID)

	if el.Type.Kind == KindMASTER {
		if _, err := fmt.Fprintf(w, "<%s%s>\n", el.Type.Name, attrs); err != nil {
			return err
		}
		v, err := el.Value(ctx)
		if err != nil {
			return err
		}
		children, _ := v.([]*Element)
		for _, c := range children {
			if err := renderElement(w, c, opts); err != nil {
				return err
			}
		}
		_, err = fmt.Fprintf(w, "</%s>\n", el.Type.Name)
		return err
	}

	v, err := el.Value(ctx)
	if err != nil {
		return err
	}

	if el.Type.Kind == KindBINARY || el.Type.Kind == KindVOID {
		payload, _ := v.([]byte)
		attrs += fmt.Sprintf(` encoding="%s"`, opts.BinaryCodec)
		body := encodeBinaryBody(payload, opts.BinaryCodec)
		_, err = fmt.Fprintf(w, "<%s%s>%s</%s>\n", el.Type.Name, attrs, body, el.Type.Name)
		return err
	}

	_, err = fmt.Fprintf(w, "<%s%s>%s</%s>\n", el.Type.Name, attrs, escapeXMLText(valueText(v)), el.Type.Name)
	return err
}

func valueText(v any) string {
	if t, ok := v.(time.Time); ok {
		return t.UTC().Format(time.RFC3339Nano)
	}
	return fmt.Sprint(v)
}

func escapeXMLText(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

func encodeBinaryBody(payload []byte, codec string) string {
	switch codec {
	case "hex":
		return encodeHexColumns(payload)
	case "ignore":
		return ""
	default:
		return wrapBase64(payload)
	}
}

// wrapBase64 encodes payload as standard base64, wrapped at 76 columns
// (the classic MIME line length), one line per \n.
func wrapBase64(payload []byte) string {
	raw := base64.StdEncoding.EncodeToString(payload)
	var b strings.Builder
	for i := 0; i < len(raw); i += 76 {
		end := i + 76
		if end > len(raw) {
			end = len(raw)
		}
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(raw[i:end])
	}
	return b.String()
}

// decodeBase64 accepts exactly what wrapBase64 produces (and any
// equivalently-wrapped base64), ignoring embedded whitespace.
func decodeBase64(body string) ([]byte, error) {
	stripped := strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', ' ', '\t':
			return -1
		}
		return r
	}, body)
	return base64.StdEncoding.DecodeString(stripped)
}

// encodeHexColumns renders payload 16 octets per line, as eight
// 2-octet (4 hex digit) words separated by spaces, prefixed by a
// decimal byte-offset column.
func encodeHexColumns(payload []byte) string {
	var b strings.Builder
	for offset := 0; offset < len(payload); offset += 16 {
		if offset > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%08d", offset)
		end := offset + 16
		if end > len(payload) {
			end = len(payload)
		}
		line := payload[offset:end]
		for i := 0; i < len(line); i += 2 {
			if i+1 < len(line) {
				fmt.Fprintf(&b, " %02X%02X", line[i], line[i+1])
			} else {
				fmt.Fprintf(&b, " %02X", line[i])
			}
		}
	}
	return b.String()
}

// decodeHexColumns accepts exactly what encodeHexColumns produces:
// it discards the leading decimal offset column on each line and
// concatenates the remaining hex digits.
func decodeHexColumns(body string) ([]byte, error) {
	var hexDigits strings.Builder
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 1 {
			continue
		}
		for _, word := range fields[1:] {
			hexDigits.WriteString(word)
		}
	}
	return hexDecodeString(hexDigits.String())
}

func hexDecodeString(s string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, ErrSchemaMalformed
	}
	out := make([]byte, len(s)/2)
	for i := 0; i < len(out); i++ {
		b, err := strconv.ParseUint(s[i*2:i*2+2], 16, 8)
		if err != nil {
			return nil, err
		}
		out[i] = byte(b)
	}
	return out, nil
}

// FromXML parses a document rendered by ToXML (or any document using
// the same tag-per-element/attribute convention) into a nested
// map[string]any suitable for passing to Schema.Encode, the inverse
// direction of rendering.
func FromXML(r io.Reader) (map[string]any, error) {
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil, ErrSchemaMalformed
		}
		if err != nil {
			return nil, err
		}
		if start, ok := tok.(xml.StartElement); ok {
			name, value, err := parseXMLElement(dec, start)
			if err != nil {
				return nil, err
			}
			return map[string]any{name: value}, nil
		}
	}
}

func parseXMLElement(dec *xml.Decoder, start xml.StartElement) (string, any, error) {
	attrs := attrMap(start.Attr)
	kind := attrs["type"]

	if kind == "MASTER" {
		children := make(map[string]any)
		for {
			tok, err := dec.Token()
			if err != nil {
				return "", nil, err
			}
			switch t := tok.(type) {
			case xml.StartElement:
				name, value, err := parseXMLElement(dec, t)
				if err != nil {
					return "", nil, err
				}
				children[name] = value
			case xml.EndElement:
				if t.Name.Local == start.Name.Local {
					return start.Name.Local, children, nil
				}
			}
		}
	}

	var text string
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", nil, err
		}
		switch t := tok.(type) {
		case xml.CharData:
			text += string(t)
		case xml.EndElement:
			if t.Name.Local == start.Name.Local {
				value, err := decodeXMLText(kind, attrs["encoding"], text)
				return start.Name.Local, value, err
			}
		}
	}
}

func decodeXMLText(kind, encoding, text string) (any, error) {
	switch kind {
	case "UINT":
		return strconv.ParseUint(strings.TrimSpace(text), 10, 64)
	case "INT":
		return strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	case "FLOAT":
		return strconv.ParseFloat(strings.TrimSpace(text), 64)
	case "DATE":
		return time.Parse(time.RFC3339Nano, strings.TrimSpace(text))
	case "BINARY", "VOID":
		switch encoding {
		case "hex":
			return decodeHexColumns(text)
		case "ignore":
			return []byte{}, nil
		default:
			return decodeBase64(text)
		}
	default:
		return text, nil
	}
}

// PPrint writes a human-readable indented tree of el (and its subtree,
// for a MASTER), the Go analogue of ebmlite's pprint.
func PPrint(w io.Writer, el *Element) error {
	return pprintElement(w, el, 0)
}

func pprintElement(w io.Writer, el *Element, depth int) error {
	ctx := context.Background()
	indent := strings.Repeat("  ", depth)

	if el.Type.Kind == KindMASTER {
		if _, err := fmt.Fprintf(w, "%s%s (id=0x%X, offset=%d)\n", indent, el.Type.Name, el.Type.ID, el.Offset); err != nil {
			return err
		}
		v, err := el.Value(ctx)
		if err != nil {
			return err
		}
		children, _ := v.([]*Element)
		for _, c := range children {
			if err := pprintElement(w, c, depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	v, err := el.Value(ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s%s (id=0x%X, offset=%d) = %v\n", indent, el.Type.Name, el.Type.ID, el.Offset, v)
	return err
}
