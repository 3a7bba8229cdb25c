package kvsfragment

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"

	"github.com/aws-samples/amazon-kinesis-video-streams-ebml-go/ebml"
)

// Amazon Connect's default two-party audio encoding: 8kHz, mono,
// 16-bit little-endian PCM.
const (
	wavSampleRate    = 8000
	wavChannels      = 1
	wavBitsPerSample = 16
)

// EncodeWAV wraps raw little-endian PCM samples in a minimal RIFF/WAVE
// container at the Connect default format. There is no WAV-writing
// dependency anywhere in the surrounding stack, so the header is
// hand-assembled with encoding/binary.
func EncodeWAV(pcm []byte) []byte {
	var buf bytes.Buffer

	byteRate := wavSampleRate * wavChannels * wavBitsPerSample / 8
	blockAlign := wavChannels * wavBitsPerSample / 8
	dataSize := uint32(len(pcm))

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16)) // fmt chunk size
	binary.Write(&buf, binary.LittleEndian, uint16(1))  // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(wavChannels))
	binary.Write(&buf, binary.LittleEndian, uint32(wavSampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(wavBitsPerSample))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, dataSize)
	buf.Write(pcm)

	return buf.Bytes()
}

// SaveTrackAsWAV extracts trackNumber's raw audio from dom and returns
// it wrapped as a WAV buffer, the Go counterpart of
// convert_track_to_wav/save_connect_fragment_audio_track_as_wav.
func SaveTrackAsWAV(ctx context.Context, dom *ebml.Document, trackNumber byte) ([]byte, error) {
	pcm, err := GetTrackBytearray(ctx, dom, trackNumber)
	if err != nil {
		return nil, err
	}
	return EncodeWAV(pcm), nil
}

// Amazon Connect's fixed two-party track names.
const (
	TrackNameAudioFromCustomer = "AUDIO_FROM_CUSTOMER"
	TrackNameAudioToCustomer   = "AUDIO_TO_CUSTOMER"
)

// SaveCustomerAudioTrackAsWAV extracts and WAV-wraps the
// AUDIO_FROM_CUSTOMER track, grounded in
// save_connect_fragment_audio_track_from_customer_as_wav.
func SaveCustomerAudioTrackAsWAV(ctx context.Context, dom *ebml.Document) ([]byte, error) {
	track, err := GetTrackNumberByName(ctx, dom, TrackNameAudioFromCustomer)
	if err != nil {
		return nil, err
	}
	return SaveTrackAsWAV(ctx, dom, byte(track))
}

// SaveAgentAudioTrackAsWAV extracts and WAV-wraps the AUDIO_TO_CUSTOMER
// track (the agent/system side of an Amazon Connect call), grounded in
// save_connect_fragment_audio_track_to_customer_as_wav.
func SaveAgentAudioTrackAsWAV(ctx context.Context, dom *ebml.Document) ([]byte, error) {
	track, err := GetTrackNumberByName(ctx, dom, TrackNameAudioToCustomer)
	if err != nil {
		return nil, err
	}
	return SaveTrackAsWAV(ctx, dom, byte(track))
}

// GetFragmentDOMPrettyString renders dom as a human-readable indented
// tree, grounded in get_fragement_dom_pretty_string.
func GetFragmentDOMPrettyString(dom *ebml.Document) (string, error) {
	var buf bytes.Buffer
	for el := range dom.Elements() {
		if err := ebml.PPrint(&buf, el); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

// SaveFragmentAsLocalMKV writes an already-framed fragment's raw bytes
// to w unchanged, grounded in save_fragment_as_local_mkv.
func SaveFragmentAsLocalMKV(w io.Writer, fragmentBytes []byte) error {
	_, err := w.Write(fragmentBytes)
	return err
}
