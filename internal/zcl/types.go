package zcl

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ZCL data type IDs
const (
	TypeNoData   uint8 = 0x00
	TypeBool     uint8 = 0x10
	TypeBitmap8  uint8 = 0x18
	TypeBitmap16 uint8 = 0x19
	TypeUint8    uint8 = 0x20
	TypeUint16   uint8 = 0x21
	TypeUint32   uint8 = 0x23
	TypeInt8     uint8 = 0x28
	TypeInt16    uint8 = 0x29
	TypeEnum8    uint8 = 0x30
	TypeEnum16   uint8 = 0x31
)

var (
	// ErrTypeMismatch is returned when a value's declared type tag differs from the expected one.
	ErrTypeMismatch = errors.New("zcl: type mismatch")
	// ErrShortValue is returned when a value has fewer bytes than its type requires.
	ErrShortValue = errors.New("zcl: value too short")
)

// TypeSize returns the fixed size in bytes of a ZCL type, or -1 if unknown here.
func TypeSize(typeID uint8) int {
	switch typeID {
	case TypeNoData:
		return 0
	case TypeBool, TypeUint8, TypeInt8, TypeEnum8, TypeBitmap8:
		return 1
	case TypeUint16, TypeInt16, TypeEnum16, TypeBitmap16:
		return 2
	case TypeUint32:
		return 4
	default:
		return -1
	}
}

// TypeName returns a human-readable name for a ZCL type.
func TypeName(typeID uint8) string {
	switch typeID {
	case TypeNoData:
		return "nodata"
	case TypeBool:
		return "bool"
	case TypeBitmap8:
		return "map8"
	case TypeBitmap16:
		return "map16"
	case TypeUint8:
		return "uint8"
	case TypeUint16:
		return "uint16"
	case TypeUint32:
		return "uint32"
	case TypeInt8:
		return "int8"
	case TypeInt16:
		return "int16"
	case TypeEnum8:
		return "enum8"
	case TypeEnum16:
		return "enum16"
	default:
		return fmt.Sprintf("0x%02X", typeID)
	}
}

// check validates the declared type tag and payload length against want.
func check(want, got uint8, data []byte) error {
	if got != want {
		return fmt.Errorf("%w: want %s, got %s", ErrTypeMismatch, TypeName(want), TypeName(got))
	}
	if size := TypeSize(want); len(data) < size {
		return fmt.Errorf("%w: %s needs %d bytes, have %d", ErrShortValue, TypeName(want), size, len(data))
	}
	return nil
}

// DecodeBool decodes a bool attribute value. Any non-zero byte is true.
func DecodeBool(typeID uint8, data []byte) (bool, error) {
	if err := check(TypeBool, typeID, data); err != nil {
		return false, err
	}
	return data[0] != 0, nil
}

// DecodeUint8 decodes a uint8 attribute value.
func DecodeUint8(typeID uint8, data []byte) (uint8, error) {
	if err := check(TypeUint8, typeID, data); err != nil {
		return 0, err
	}
	return data[0], nil
}

// DecodeUint16 decodes a little-endian uint16 attribute value.
// Extra trailing bytes are ignored.
func DecodeUint16(typeID uint8, data []byte) (uint16, error) {
	if err := check(TypeUint16, typeID, data); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(data[:2]), nil
}

// DecodeValue decodes any fixed-size value known to this package, for logging
// and diagnostics. It returns the Go value and the bytes consumed.
func DecodeValue(typeID uint8, data []byte) (any, int, error) {
	size := TypeSize(typeID)
	if size < 0 {
		return nil, 0, fmt.Errorf("zcl: unsupported type %s", TypeName(typeID))
	}
	if len(data) < size {
		return nil, 0, fmt.Errorf("%w: %s needs %d bytes, have %d", ErrShortValue, TypeName(typeID), size, len(data))
	}
	switch typeID {
	case TypeNoData:
		return nil, 0, nil
	case TypeBool:
		return data[0] != 0, 1, nil
	case TypeUint8, TypeEnum8, TypeBitmap8:
		return data[0], 1, nil
	case TypeInt8:
		return int8(data[0]), 1, nil
	case TypeUint16, TypeEnum16, TypeBitmap16:
		return binary.LittleEndian.Uint16(data), 2, nil
	case TypeInt16:
		return int16(binary.LittleEndian.Uint16(data)), 2, nil
	case TypeUint32:
		return binary.LittleEndian.Uint32(data), 4, nil
	}
	return data[:size], size, nil
}

// EncodeBool encodes a bool in ZCL wire format.
func EncodeBool(v bool) []byte {
	if v {
		return []byte{1}
	}
	return []byte{0}
}

// EncodeUint16 encodes a uint16 in ZCL wire format (little-endian).
func EncodeUint16(v uint16) []byte {
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, v)
	return buf
}
