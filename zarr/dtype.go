package zarr

import (
	"encoding/binary"

	"github.com/clbarnes/multiscale-read/msread"
)

// ParseDtype interprets a numpy-style dtype string like "<f4" or "|u1",
// returning the element type and byte order.  Structured, string, datetime
// and complex dtypes are rejected.
func ParseDtype(dtype string) (msread.DataType, binary.ByteOrder, error) {
	if len(dtype) < 3 {
		return 0, nil, msread.SchemaErrorf("invalid dtype %q", dtype)
	}

	var order binary.ByteOrder
	switch dtype[0] {
	case '<', '=', '|':
		order = binary.LittleEndian
	case '>':
		order = binary.BigEndian
	default:
		return 0, nil, msread.SchemaErrorf("invalid byte order in dtype %q", dtype)
	}

	var t msread.DataType
	switch dtype[1:] {
	case "b1":
		// booleans are stored one per byte
		t = msread.T_uint8
	case "i1":
		t = msread.T_int8
	case "u1":
		t = msread.T_uint8
	case "i2":
		t = msread.T_int16
	case "u2":
		t = msread.T_uint16
	case "i4":
		t = msread.T_int32
	case "u4":
		t = msread.T_uint32
	case "i8":
		t = msread.T_int64
	case "u8":
		t = msread.T_uint64
	case "f4":
		t = msread.T_float32
	case "f8":
		t = msread.T_float64
	default:
		return 0, nil, msread.SchemaErrorf("unsupported dtype %q", dtype)
	}
	return t, order, nil
}
