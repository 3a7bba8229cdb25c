package kvsfragment

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeWAVHeader(t *testing.T) {
	pcm := []byte{0x01, 0x02, 0x03, 0x04}
	wav := EncodeWAV(pcm)

	assert.Equal(t, "RIFF", string(wav[0:4]))
	assert.Equal(t, "WAVE", string(wav[8:12]))
	assert.Equal(t, "fmt ", string(wav[12:16]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(wav[20:22]), "PCM format tag")
	assert.Equal(t, uint16(wavChannels), binary.LittleEndian.Uint16(wav[22:24]))
	assert.Equal(t, uint32(wavSampleRate), binary.LittleEndian.Uint32(wav[24:28]))
	assert.Equal(t, uint16(wavBitsPerSample), binary.LittleEndian.Uint16(wav[34:36]))
	assert.Equal(t, "data", string(wav[36:40]))
	assert.Equal(t, pcm, wav[44:])
}

func TestSaveCustomerAudioTrackAsWAV(t *testing.T) {
	schema := loadFullSchema(t)
	dom := buildDOMWithTagsAndTrack(t, schema, 1, []byte{0x10, 0x20})

	wav, err := SaveCustomerAudioTrackAsWAV(context.Background(), dom)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x10, 0x20}, wav[44:])
}

func TestSaveAgentAudioTrackAsWAVMissingTrack(t *testing.T) {
	schema := loadFullSchema(t)
	dom := buildDOMWithTagsAndTrack(t, schema, 1, []byte{0x10})

	_, err := SaveAgentAudioTrackAsWAV(context.Background(), dom)
	require.Error(t, err, "no AUDIO_TO_CUSTOMER track declared in this fixture")
}

func TestSaveFragmentAsLocalMKV(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	require.NoError(t, SaveFragmentAsLocalMKV(&buf, payload))
	assert.Equal(t, payload, buf.Bytes())
}

func TestGetFragmentDOMPrettyString(t *testing.T) {
	schema := loadFullSchema(t)
	dom := buildDOMWithTagsAndTrack(t, schema, 1, []byte{0x01})

	out, err := GetFragmentDOMPrettyString(dom)
	require.NoError(t, err)
	assert.Contains(t, out, "Segment")
}
