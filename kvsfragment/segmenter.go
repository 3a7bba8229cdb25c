// Package kvsfragment turns an unframed Kinesis Video Streams byte feed
// into whole Matroska fragments, and offers the Matroska-specific
// extraction helpers (tags, tracks, SimpleBlock payloads, WAV synthesis)
// used by Amazon Connect-style two-party audio consumers.
//
// It is grounded directly on the original consumer library's
// kinesis_video_streams_parser.py (the chunk-accumulation/boundary-scan
// loop) and kinesis_video_fragment_processor.py (the Matroska helpers),
// reimplemented over the sibling ebml package instead of ebmlite.
package kvsfragment

import (
	"bytes"
	"context"
	"time"

	"github.com/aws-samples/amazon-kinesis-video-streams-ebml-go/ebml"
)

// idEBMLHeader is the EBML master element id (0x1A45DFA3) that marks the
// start of every MKV fragment, independent of whatever schema is in use.
const idEBMLHeader = 0x1A45DFA3

// Fragment is one complete MKV fragment carved out of a streaming feed.
type Fragment struct {
	StreamName string
	Bytes      []byte
	DOM        *ebml.Document
	Duration   time.Duration
}

// Segmenter accumulates chunks from a byte channel and emits one
// Fragment per completed EBML-header-delimited span.
type Segmenter struct {
	StreamName string
	Schema     *ebml.Schema

	// OnFragmentArrived is called once per completed fragment, in order.
	OnFragmentArrived func(Fragment)
	// OnStreamComplete is called once the chunk channel is closed (and
	// not canceled).
	OnStreamComplete func(streamName string)
	// OnStreamException is reached only if building a completed
	// fragment's DOM returns an error, which ebml.NewDocument does not
	// do. Malformed bytes in the accumulating buffer are not reported:
	// the header scan stops at the first element that fails to parse,
	// exactly as for an incomplete buffer, and the buffer keeps growing.
	// lastGood is the most recently delivered fragment, or nil.
	OnStreamException func(streamName string, err error, lastGood *Fragment)
}

// NewSegmenter constructs a Segmenter for streamName using schema to
// parse each fragment's DOM.
func NewSegmenter(streamName string, schema *ebml.Schema) *Segmenter {
	return &Segmenter{StreamName: streamName, Schema: schema}
}

// Run consumes chunks until it is closed or ctx is canceled, delivering
// fragments via OnFragmentArrived as they complete. It blocks; run it in
// its own goroutine, one per active stream.
//
// Cancellation is cooperative: ctx is checked between chunks. The
// current chunk finishes parsing before Run returns, and OnStreamComplete
// is not called on a canceled run.
func (s *Segmenter) Run(ctx context.Context, chunks <-chan []byte) {
	var buf []byte
	var lastGood *Fragment
	t0 := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case chunk, ok := <-chunks:
			if !ok {
				if s.OnStreamComplete != nil {
					s.OnStreamComplete(s.StreamName)
				}
				return
			}

			buf = append(buf, chunk...)

			for {
				offsets := findFragmentHeaderOffsets(buf, s.Schema)
				if len(offsets) < 2 {
					break
				}

				f0, f1 := offsets[0], offsets[1]
				fragmentBytes := append([]byte(nil), buf[f0:f1]...)

				dom, err := ebml.NewDocument(bytes.NewReader(fragmentBytes), s.Schema, ebml.DocumentOptions{})
				if err != nil {
					if s.OnStreamException != nil {
						s.OnStreamException(s.StreamName, err, lastGood)
					}
					return
				}

				frag := Fragment{
					StreamName: s.StreamName,
					Bytes:      fragmentBytes,
					DOM:        dom,
					Duration:   time.Since(t0),
				}
				lastGood = &frag
				if s.OnFragmentArrived != nil {
					s.OnFragmentArrived(frag)
				}

				buf = buf[f1:]
				t0 = time.Now()
			}
		}
	}
}

// findFragmentHeaderOffsets returns the byte offsets of every top-level
// EBML header element (id 0x1A45DFA3) in buf, in order. Parse failures
// (including simply not having enough bytes yet for the next element)
// are not reported here: they just truncate the scan at whatever was
// parsed so far, since an accumulating buffer is expected to be
// incomplete most of the time.
func findFragmentHeaderOffsets(buf []byte, schema *ebml.Schema) []int64 {
	doc, err := ebml.NewDocument(bytes.NewReader(buf), schema, ebml.DocumentOptions{})
	if err != nil {
		return nil
	}

	var offsets []int64
	for el := range doc.Elements() {
		if el.Type.ID == idEBMLHeader {
			offsets = append(offsets, el.Offset)
		}
	}
	return offsets
}
