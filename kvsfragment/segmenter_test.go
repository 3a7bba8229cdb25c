package kvsfragment

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/aws-samples/amazon-kinesis-video-streams-ebml-go/ebml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchemaXML = `<?xml version="1.0"?>
<Schema>
  <MasterElement id="0x1A45DFA3" name="EBML">
    <StringElement id="0x4282" name="DocType" length="-1"/>
  </MasterElement>
  <MasterElement id="0x18538067" name="Segment">
    <MasterElement id="0x1F43B675" name="Cluster">
      <BinaryElement id="0xA3" name="SimpleBlock"/>
    </MasterElement>
  </MasterElement>
</Schema>`

func testSchema(t *testing.T) *ebml.Schema {
	t.Helper()
	schema, err := ebml.LoadSchema(strings.NewReader(testSchemaXML))
	require.NoError(t, err)
	return schema
}

// buildFragment assembles one minimal MKV fragment: an EBML header
// followed by a Segment containing one empty Cluster.
func buildFragment(t *testing.T) []byte {
	t.Helper()
	docType := encodeMKVElement(t, 0x4282, ebml.EncodeASCII("matroska", -1))
	header := encodeMKVElement(t, 0x1A45DFA3, docType)
	cluster := encodeMKVElement(t, 0x1F43B675, nil)
	segment := encodeMKVElement(t, 0x18538067, cluster)
	return append(header, segment...)
}

func encodeMKVElement(t *testing.T, id uint64, payload []byte) []byte {
	t.Helper()
	idBytes, err := ebml.EncodeID(id, 0)
	require.NoError(t, err)
	size := uint64(len(payload))
	sizeBytes, err := ebml.EncodeSize(&size, 0)
	require.NoError(t, err)
	out := append([]byte{}, idBytes...)
	out = append(out, sizeBytes...)
	out = append(out, payload...)
	return out
}

func TestSegmenterDeliversSingleFragmentOnClose(t *testing.T) {
	schema := testSchema(t)
	frag1 := buildFragment(t)
	frag2 := buildFragment(t)

	var delivered []Fragment
	var completed bool

	seg := NewSegmenter("stream-1", schema)
	seg.OnFragmentArrived = func(f Fragment) { delivered = append(delivered, f) }
	seg.OnStreamComplete = func(string) { completed = true }

	chunks := make(chan []byte, 2)
	chunks <- append(append([]byte{}, frag1...), frag2...)
	close(chunks)

	seg.Run(context.Background(), chunks)

	require.Len(t, delivered, 1, "two headers in the buffer yield exactly one complete fragment before the stream completes")
	assert.Equal(t, frag1, delivered[0].Bytes)
	assert.True(t, completed)
}

func TestSegmenterHandlesArbitraryChunkSizes(t *testing.T) {
	schema := testSchema(t)
	full := append(buildFragment(t), buildFragment(t)...)
	full = append(full, buildFragment(t)...)

	for chunkSize := 1; chunkSize <= len(full); chunkSize++ {
		var delivered []Fragment
		seg := NewSegmenter("stream", schema)
		seg.OnFragmentArrived = func(f Fragment) { delivered = append(delivered, f) }

		chunks := make(chan []byte, len(full))
		for i := 0; i < len(full); i += chunkSize {
			end := i + chunkSize
			if end > len(full) {
				end = len(full)
			}
			chunks <- full[i:end]
		}
		close(chunks)

		seg.Run(context.Background(), chunks)
		assert.Len(t, delivered, 2, "chunk size %d should still yield 2 complete fragments", chunkSize)
	}
}

func TestSegmenterMultipleFragmentsInOneChunk(t *testing.T) {
	schema := testSchema(t)
	full := append(buildFragment(t), buildFragment(t)...)
	full = append(full, buildFragment(t)...)

	var delivered []Fragment
	seg := NewSegmenter("stream", schema)
	seg.OnFragmentArrived = func(f Fragment) { delivered = append(delivered, f) }

	chunks := make(chan []byte, 1)
	chunks <- full
	close(chunks)

	seg.Run(context.Background(), chunks)
	assert.Len(t, delivered, 2, "a single chunk containing 3 headers yields 2 complete fragments in one pass")
}

func TestSegmenterStopsOnCancelWithoutCompleteCallback(t *testing.T) {
	schema := testSchema(t)
	seg := NewSegmenter("stream", schema)
	var completed bool
	seg.OnStreamComplete = func(string) { completed = true }

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	chunks := make(chan []byte)
	done := make(chan struct{})
	go func() {
		seg.Run(ctx, chunks)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return promptly after cancellation")
	}
	assert.False(t, completed)
}

func TestFindFragmentHeaderOffsetsIgnoresIncompleteBuffer(t *testing.T) {
	schema := testSchema(t)
	full := buildFragment(t)
	offsets := findFragmentHeaderOffsets(full[:len(full)-1], schema)
	assert.Len(t, offsets, 1)
}
