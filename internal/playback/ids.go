package playback

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownStream reports a stream id outside the fixed set.
var ErrUnknownStream = errors.New("unknown stream")

// StreamID names one of the four comparison streams.
type StreamID string

const (
	// Primary is the adaptive stream and the transport time source.
	Primary StreamID = "primary"
	CodecA  StreamID = "codecA"
	CodecB  StreamID = "codecB"
	CodecC  StreamID = "codecC"
)

var streamOrder = [...]StreamID{Primary, CodecA, CodecB, CodecC}

var streamCodecs = map[StreamID]string{
	Primary: "ours",
	CodecA:  "h264",
	CodecB:  "h265",
	CodecC:  "av1",
}

var streamNames = map[StreamID]string{
	Primary: "Our Codec",
	CodecA:  "H.264",
	CodecB:  "H.265",
	CodecC:  "AV1",
}

// StreamIDs returns the four ids with Primary first.
func StreamIDs() []StreamID {
	return append([]StreamID(nil), streamOrder[:]...)
}

// Valid reports whether id is one of the four streams.
func (id StreamID) Valid() bool {
	_, ok := streamCodecs[id]
	return ok
}

// IsPrimary reports whether id is the adaptive stream.
func (id StreamID) IsPrimary() bool { return id == Primary }

// Codec returns the codec key ("ours", "h264", "h265", "av1").
func (id StreamID) Codec() string { return streamCodecs[id] }

// DisplayName returns the human label.
func (id StreamID) DisplayName() string {
	if name, ok := streamNames[id]; ok {
		return name
	}
	return string(id)
}

// ParseStreamID accepts a stream id or its codec key, case-insensitively.
func ParseStreamID(value string) (StreamID, error) {
	v := strings.TrimSpace(value)
	for _, id := range streamOrder {
		if strings.EqualFold(v, string(id)) || strings.EqualFold(v, id.Codec()) {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStream, value)
}

// StreamForCodec maps a codec key back to its stream.
func StreamForCodec(codec string) (StreamID, bool) {
	for _, id := range streamOrder {
		if id.Codec() == codec {
			return id, true
		}
	}
	return "", false
}
