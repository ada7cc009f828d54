package rows

import (
	"encoding/binary"
	"fmt"

	"github.com/PixeeSandbox/ravendb/ravendb_errors"
)

// Typed field payloads. Integers are fixed-width little-endian so that the
// persisted index-definition records keep deliberately wide slots (a kind tag
// is 8 bytes even while only a handful of kinds exist).

func Int64Bytes(v int64) []byte {
	return binary.LittleEndian.AppendUint64(make([]byte, 0, 8), uint64(v))
}

func Int32Bytes(v int32) []byte {
	return binary.LittleEndian.AppendUint32(make([]byte, 0, 4), uint32(v))
}

func Uint64Bytes(v uint64) []byte {
	return binary.LittleEndian.AppendUint64(make([]byte, 0, 8), v)
}

func BoolBytes(v bool) []byte {
	if v {
		return []byte{1}
	}
	return []byte{0}
}

func Int64Field(f []byte) (int64, error) {
	if len(f) != 8 {
		return 0, fmt.Errorf("%w: int64 field is %d bytes", ravendb_errors.ErrBadRowFormat, len(f))
	}
	return int64(binary.LittleEndian.Uint64(f)), nil
}

func Int32Field(f []byte) (int32, error) {
	if len(f) != 4 {
		return 0, fmt.Errorf("%w: int32 field is %d bytes", ravendb_errors.ErrBadRowFormat, len(f))
	}
	return int32(binary.LittleEndian.Uint32(f)), nil
}

func Uint64Field(f []byte) (uint64, error) {
	if len(f) != 8 {
		return 0, fmt.Errorf("%w: uint64 field is %d bytes", ravendb_errors.ErrBadRowFormat, len(f))
	}
	return binary.LittleEndian.Uint64(f), nil
}

func BoolField(f []byte) (bool, error) {
	if len(f) != 1 || f[0] > 1 {
		return false, fmt.Errorf("%w: bool field %v", ravendb_errors.ErrBadRowFormat, f)
	}
	return f[0] == 1, nil
}
