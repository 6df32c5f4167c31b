package ncp

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
)

// HDLC-like link framing used on the UART:
//
//	0x7E | escaped(kind | payload | fcs16 LE) | 0x7E
//
// 0x7E and 0x7D inside a frame are sent as 0x7D followed by the byte xor 0x20.
const (
	hdlcFlag   = 0x7E
	hdlcEscape = 0x7D
	hdlcXor    = 0x20

	maxFrameSize = 512
)

// Frame kinds.
const (
	frameSignal       uint8 = 0x01 // NCP -> host: type u8, status i32
	frameAttribute    uint8 = 0x02 // NCP -> host: ep u8, cluster u16, attr u16, type u8, len u8, value
	frameStartRequest uint8 = 0x10 // host -> NCP: endpoint u8
)

var (
	errBadFCS       = errors.New("ncp: frame check sequence mismatch")
	errShortFrame   = errors.New("ncp: frame too short")
	errFrameTooLong = errors.New("ncp: frame exceeds maximum size")
)

// --- CRC-16/X.25 (reflected poly=0x8408, init=0xFFFF, xorout=0xFFFF) ---

var fcsTable [256]uint16

func init() {
	const poly = 0x8408
	for i := 0; i < 256; i++ {
		crc := uint16(i)
		for bit := 0; bit < 8; bit++ {
			if crc&1 != 0 {
				crc = (crc >> 1) ^ poly
			} else {
				crc >>= 1
			}
		}
		fcsTable[i] = crc
	}
}

func fcs16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc = (crc >> 8) ^ fcsTable[(crc^uint16(b))&0xFF]
	}
	return crc ^ 0xFFFF
}

// hdlcEncode appends the FCS, escapes and wraps body in flags.
func hdlcEncode(body []byte) []byte {
	raw := make([]byte, len(body)+2)
	copy(raw, body)
	binary.LittleEndian.PutUint16(raw[len(body):], fcs16(body))

	out := make([]byte, 0, len(raw)+4)
	out = append(out, hdlcFlag)
	for _, b := range raw {
		if b == hdlcFlag || b == hdlcEscape {
			out = append(out, hdlcEscape, b^hdlcXor)
			continue
		}
		out = append(out, b)
	}
	return append(out, hdlcFlag)
}

// hdlcDecode unescapes the bytes between two flags and verifies the FCS.
// It returns the body without the FCS.
func hdlcDecode(inner []byte) ([]byte, error) {
	raw := make([]byte, 0, len(inner))
	for i := 0; i < len(inner); i++ {
		b := inner[i]
		if b == hdlcEscape {
			i++
			if i == len(inner) {
				return nil, fmt.Errorf("ncp: dangling escape")
			}
			b = inner[i] ^ hdlcXor
		}
		raw = append(raw, b)
	}
	if len(raw) < 2 {
		return nil, errShortFrame
	}
	body := raw[:len(raw)-2]
	if got := binary.LittleEndian.Uint16(raw[len(raw)-2:]); got != fcs16(body) {
		return nil, errBadFCS
	}
	return body, nil
}

// readRawFrame returns the escaped bytes of the next non-empty frame.
// Bytes before the first flag are discarded.
func readRawFrame(r *bufio.Reader) ([]byte, error) {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if b == hdlcFlag {
			break
		}
	}
	var buf []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if b == hdlcFlag {
			if len(buf) == 0 {
				// back-to-back flags: the closing flag of the previous frame
				continue
			}
			return buf, nil
		}
		if len(buf) >= maxFrameSize {
			return nil, errFrameTooLong
		}
		buf = append(buf, b)
	}
}

func encodeStartRequest(endpoint uint8) []byte {
	return hdlcEncode([]byte{frameStartRequest, endpoint})
}

func encodeSignal(typ uint8, status int32) []byte {
	body := make([]byte, 6)
	body[0] = frameSignal
	body[1] = typ
	binary.LittleEndian.PutUint32(body[2:], uint32(status))
	return hdlcEncode(body)
}

func encodeAttribute(m AttributeMessage) []byte {
	body := make([]byte, 8+len(m.Value))
	body[0] = frameAttribute
	body[1] = m.Endpoint
	binary.LittleEndian.PutUint16(body[2:4], m.ClusterID)
	binary.LittleEndian.PutUint16(body[4:6], m.AttrID)
	body[6] = m.DataType
	body[7] = uint8(len(m.Value))
	copy(body[8:], m.Value)
	return hdlcEncode(body)
}

func parseSignal(p []byte) (Signal, error) {
	if len(p) < 5 {
		return Signal{}, fmt.Errorf("ncp: signal frame: %w", errShortFrame)
	}
	return DecodeSignal(p[0], int32(binary.LittleEndian.Uint32(p[1:5]))), nil
}

// parseAttribute decodes an attribute frame. The value length must fit the
// frame; the value itself is passed through unchecked.
func parseAttribute(p []byte) (AttributeMessage, error) {
	if len(p) < 7 {
		return AttributeMessage{}, fmt.Errorf("ncp: attribute frame: %w", errShortFrame)
	}
	n := int(p[6])
	if len(p) < 7+n {
		return AttributeMessage{}, fmt.Errorf("ncp: attribute frame: value length %d, have %d", n, len(p)-7)
	}
	m := AttributeMessage{
		Endpoint:  p[0],
		ClusterID: binary.LittleEndian.Uint16(p[1:3]),
		AttrID:    binary.LittleEndian.Uint16(p[3:5]),
		DataType:  p[5],
		Value:     make([]byte, n),
	}
	copy(m.Value, p[7:7+n])
	return m, nil
}
