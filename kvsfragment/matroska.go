package kvsfragment

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws-samples/amazon-kinesis-video-streams-ebml-go/ebml"
)

// Matroska element ids this package reaches into directly, independent
// of whatever schema produced the DOM (mirrors the literal ids used by
// kinesis_video_fragment_processor.py).
const (
	idSegment    = 0x18538067
	idTags       = 0x1254C367
	idTag        = 0x7373
	idSimpleTag  = 0x67C8
	idTagName    = 0x45A3
	idTagString  = 0x4487
	idTagBinary  = 0x4485
	idCluster    = 0x1F43B675
	idSimpleBlk  = 0xA3
	idTracks     = 0x1654AE6B
	idTrackEntry = 0xAE
	idTrackName  = 0x536E
	idTrackNum   = 0xD7
)

// ErrUnsupportedTrackNumberLength is returned when a SimpleBlock's track
// number VarInt occupies more than one octet. Multi-octet track numbers
// are out of scope; callers get a typed error instead of a silently
// miscounted track.
var ErrUnsupportedTrackNumberLength = errors.New("kvsfragment: unsupported multi-octet track number")

// GetFragmentTags walks Segment -> Tags -> Tag -> SimpleTag, returning a
// map of TagName -> TagString (or, for binary tag values, the raw bytes
// as a string) for every SimpleTag found.
func GetFragmentTags(ctx context.Context, dom *ebml.Document) (map[string]string, error) {
	tags := make(map[string]string)

	for root := range dom.Elements() {
		if root.Type.ID != idSegment {
			continue
		}
		segChildren, err := valueChildren(ctx, root)
		if err != nil {
			return nil, err
		}
		for _, segChild := range segChildren {
			if segChild.Type.ID != idTags {
				continue
			}
			tagChildren, err := valueChildren(ctx, segChild)
			if err != nil {
				return nil, err
			}
			for _, tag := range tagChildren {
				if tag.Type.ID != idTag {
					continue
				}
				if err := collectSimpleTags(ctx, tag, tags); err != nil {
					return nil, err
				}
			}
		}
	}
	return tags, nil
}

func collectSimpleTags(ctx context.Context, tag *ebml.Element, tags map[string]string) error {
	children, err := valueChildren(ctx, tag)
	if err != nil {
		return err
	}
	for _, simpleTag := range children {
		if simpleTag.Type.ID != idSimpleTag {
			continue
		}
		grandchildren, err := valueChildren(ctx, simpleTag)
		if err != nil {
			return err
		}

		var name, value string
		var haveValue bool
		for _, c := range grandchildren {
			switch c.Type.ID {
			case idTagName:
				v, err := c.Value(ctx)
				if err != nil {
					return err
				}
				name, _ = v.(string)
			case idTagString:
				v, err := c.Value(ctx)
				if err != nil {
					return err
				}
				value, _ = v.(string)
				haveValue = true
			case idTagBinary:
				v, err := c.Value(ctx)
				if err != nil {
					return err
				}
				if b, ok := v.([]byte); ok {
					value = string(b)
					haveValue = true
				}
			}
		}
		if name != "" && haveValue {
			tags[name] = value
		}
	}
	return nil
}

// GetSimpleBlockElements walks Segment -> Cluster -> SimpleBlock,
// returning every SimpleBlock element found, in document order.
func GetSimpleBlockElements(ctx context.Context, dom *ebml.Document) ([]*ebml.Element, error) {
	var blocks []*ebml.Element
	for root := range dom.Elements() {
		if root.Type.ID != idSegment {
			continue
		}
		segChildren, err := valueChildren(ctx, root)
		if err != nil {
			return nil, err
		}
		for _, segChild := range segChildren {
			if segChild.Type.ID != idCluster {
				continue
			}
			clusterChildren, err := valueChildren(ctx, segChild)
			if err != nil {
				return nil, err
			}
			for _, c := range clusterChildren {
				if c.Type.ID == idSimpleBlk {
					blocks = append(blocks, c)
				}
			}
		}
	}
	return blocks, nil
}

// GetTrackNumberByName walks Segment -> Tracks -> TrackEntry, returning
// the TrackNumber of the first track whose Name matches name.
func GetTrackNumberByName(ctx context.Context, dom *ebml.Document, name string) (uint64, error) {
	for root := range dom.Elements() {
		if root.Type.ID != idSegment {
			continue
		}
		segChildren, err := valueChildren(ctx, root)
		if err != nil {
			return 0, err
		}
		for _, segChild := range segChildren {
			if segChild.Type.ID != idTracks {
				continue
			}
			trackChildren, err := valueChildren(ctx, segChild)
			if err != nil {
				return 0, err
			}
			for _, entry := range trackChildren {
				if entry.Type.ID != idTrackEntry {
					continue
				}
				entryChildren, err := valueChildren(ctx, entry)
				if err != nil {
					return 0, err
				}

				var trackName string
				var trackNum uint64
				var haveNum bool
				for _, c := range entryChildren {
					switch c.Type.ID {
					case idTrackName:
						v, err := c.Value(ctx)
						if err != nil {
							return 0, err
						}
						trackName, _ = v.(string)
					case idTrackNum:
						v, err := c.Value(ctx)
						if err != nil {
							return 0, err
						}
						trackNum, haveNum = v.(uint64)
					}
				}
				if haveNum && trackName == name {
					return trackNum, nil
				}
			}
		}
	}
	return 0, fmt.Errorf("kvsfragment: no track named %q", name)
}

// GetAudioTrackNumberFromSimpleBlock decodes the leading track-number
// VarInt from a SimpleBlock payload. Only a 1-octet track number (high
// bit set, masked with 0x7F) is supported; anything longer is
// ErrUnsupportedTrackNumberLength.
func GetAudioTrackNumberFromSimpleBlock(payload []byte) (byte, error) {
	if len(payload) == 0 {
		return 0, errors.New("kvsfragment: empty SimpleBlock payload")
	}
	length, err := ebml.DecodeSizeLength(payload[0])
	if err != nil {
		return 0, err
	}
	if length != 1 {
		return 0, ErrUnsupportedTrackNumberLength
	}
	return payload[0] & 0x7F, nil
}

// GetRawAudioTrackFromSimpleBlock returns a SimpleBlock's codec payload,
// skipping the 1-octet track number, 2-byte timecode, and 1-byte flags
// that precede it.
func GetRawAudioTrackFromSimpleBlock(payload []byte) ([]byte, error) {
	const headerLen = 4
	if len(payload) < headerLen {
		return nil, errors.New("kvsfragment: SimpleBlock payload too short")
	}
	return payload[headerLen:], nil
}

// GetTrackBytearray concatenates the raw audio payload of every
// SimpleBlock belonging to trackNumber, in document order.
func GetTrackBytearray(ctx context.Context, dom *ebml.Document, trackNumber byte) ([]byte, error) {
	blocks, err := GetSimpleBlockElements(ctx, dom)
	if err != nil {
		return nil, err
	}

	var out []byte
	for _, block := range blocks {
		v, err := block.Value(ctx)
		if err != nil {
			return nil, err
		}
		payload, ok := v.([]byte)
		if !ok {
			continue
		}
		track, err := GetAudioTrackNumberFromSimpleBlock(payload)
		if err != nil {
			return nil, err
		}
		if track != trackNumber {
			continue
		}
		raw, err := GetRawAudioTrackFromSimpleBlock(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, raw...)
	}
	return out, nil
}

// valueChildren fetches a MASTER element's decoded value as its child
// slice.
func valueChildren(ctx context.Context, el *ebml.Element) ([]*ebml.Element, error) {
	v, err := el.Value(ctx)
	if err != nil {
		return nil, err
	}
	children, _ := v.([]*ebml.Element)
	return children, nil
}
