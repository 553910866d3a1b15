package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"unicode/utf8"
)

// RelayTag is the sub-channel tag every relay frame starts with.
const RelayTag = "chatty"

// Frame errors.
var (
	ErrFrameTag     = errors.New("protocol: frame tag mismatch")
	ErrFrameTooLong = errors.New("protocol: string exceeds 65535 bytes")
	ErrFrameUTF8    = errors.New("protocol: string is not valid UTF-8")
)

// RelayFrame is one chat message forwarded between nodes.
type RelayFrame struct {
	Channel string
	Text    string
	// Rich is set when Text holds component JSON rather than a legacy line.
	Rich bool
}

// Encode serialises the frame. All integers are big-endian and each string
// carries a 16-bit length prefix. The reserved field after the tag holds
// the length of the remaining payload.
func (f RelayFrame) Encode() ([]byte, error) {
	var body bytes.Buffer
	if err := writeString(&body, f.Channel); err != nil {
		return nil, err
	}
	if err := writeString(&body, f.Text); err != nil {
		return nil, err
	}
	if f.Rich {
		body.WriteByte(1)
	} else {
		body.WriteByte(0)
	}

	var out bytes.Buffer
	out.Grow(2 + len(RelayTag) + 2 + body.Len())
	if err := writeString(&out, RelayTag); err != nil {
		return nil, err
	}
	reserved := body.Len()
	if reserved > math.MaxUint16 {
		reserved = math.MaxUint16
	}
	binary.Write(&out, binary.BigEndian, uint16(reserved))
	out.Write(body.Bytes())
	return out.Bytes(), nil
}

// DecodeRelayFrame parses a frame produced by Encode. Trailing bytes are
// ignored.
func DecodeRelayFrame(data []byte) (RelayFrame, error) {
	r := bytes.NewReader(data)

	tag, err := readString(r)
	if err != nil {
		return RelayFrame{}, fmt.Errorf("protocol: read tag: %w", err)
	}
	if tag != RelayTag {
		return RelayFrame{}, ErrFrameTag
	}

	var reserved uint16
	if err := binary.Read(r, binary.BigEndian, &reserved); err != nil {
		return RelayFrame{}, fmt.Errorf("protocol: read reserved: %w", err)
	}

	var f RelayFrame
	if f.Channel, err = readString(r); err != nil {
		return RelayFrame{}, fmt.Errorf("protocol: read channel: %w", err)
	}
	if f.Text, err = readString(r); err != nil {
		return RelayFrame{}, fmt.Errorf("protocol: read text: %w", err)
	}
	rich, err := r.ReadByte()
	if err != nil {
		return RelayFrame{}, fmt.Errorf("protocol: read rich flag: %w", err)
	}
	f.Rich = rich != 0
	return f, nil
}

func writeString(w *bytes.Buffer, s string) error {
	if len(s) > math.MaxUint16 {
		return ErrFrameTooLong
	}
	var n [2]byte
	binary.BigEndian.PutUint16(n[:], uint16(len(s)))
	w.Write(n[:])
	w.WriteString(s)
	return nil
}

func readString(r *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	if !utf8.Valid(buf) {
		return "", ErrFrameUTF8
	}
	return string(buf), nil
}
