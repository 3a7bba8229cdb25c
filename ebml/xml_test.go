package ebml

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToXMLRendersMasterAndChild(t *testing.T) {
	schema, _, _ := testMasterSchema()
	childBytes := encodeElement(t, 0x81, EncodeUint(7))
	masterBytes := encodeElement(t, 0x82, childBytes)

	el, _, err := ParseElement(bytes.NewReader(masterBytes), 0, schema, nil, ParseOptions{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, ToXML(&buf, el))

	out := buf.String()
	assert.Contains(t, out, "<Seg")
	assert.Contains(t, out, "<X")
	assert.Contains(t, out, "7</X>")
}

func TestWrapBase64RoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte{0x01, 0x02, 0x03}, 40)
	wrapped := wrapBase64(payload)

	lines := bytes.Split([]byte(wrapped), []byte("\n"))
	for _, l := range lines {
		assert.LessOrEqual(t, len(l), 76)
	}

	got, err := decodeBase64(wrapped)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestEncodeHexColumnsRoundTrip(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03, 0x04, 0x05}
	encoded := encodeHexColumns(payload)
	got, err := decodeHexColumns(encoded)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestFromXMLParsesRenderedBinary(t *testing.T) {
	doc := `<X offset="0" size="1" type="BINARY" id="0x81" encoding="base64">AQ==</X>`
	values, err := FromXML(bytes.NewReader([]byte(doc)))
	require.NoError(t, err)
	b, ok := values["X"].([]byte)
	require.True(t, ok)
	assert.Equal(t, []byte{0x01}, b)
}

func TestFromXMLParsesMaster(t *testing.T) {
	doc := `<Seg offset="0" size="1" type="MASTER" id="0x82"><X offset="0" size="1" type="UINT" id="0x81">7</X></Seg>`
	values, err := FromXML(bytes.NewReader([]byte(doc)))
	require.NoError(t, err)
	children, ok := values["Seg"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, uint64(7), children["X"])
}

func TestPPrintWritesIndentedTree(t *testing.T) {
	schema, _, _ := testMasterSchema()
	childBytes := encodeElement(t, 0x81, EncodeUint(7))
	masterBytes := encodeElement(t, 0x82, childBytes)

	el, _, err := ParseElement(bytes.NewReader(masterBytes), 0, schema, nil, ParseOptions{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, PPrint(&buf, el))
	assert.Contains(t, buf.String(), "Seg")
	assert.Contains(t, buf.String(), "  X")
}
