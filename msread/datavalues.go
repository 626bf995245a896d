/*
   This file handles the layout of array elements, e.g., a voxel value, and
   routines that extract element data from a slice of bytes.
*/

package msread

import (
	"encoding/binary"
	"fmt"
	"math"
)

// DataType is a unique ID for each type of element within a chunked array,
// e.g., a uint8 or a float32.
type DataType uint8

const (
	T_uint8 DataType = iota
	T_int8
	T_uint16
	T_int16
	T_uint32
	T_int32
	T_uint64
	T_int64
	T_float32
	T_float64
)

var typeBytes = map[DataType]int64{
	T_uint8:   1,
	T_int8:    1,
	T_uint16:  2,
	T_int16:   2,
	T_uint32:  4,
	T_int32:   4,
	T_uint64:  8,
	T_int64:   8,
	T_float32: 4,
	T_float64: 8,
}

var typeNames = map[DataType]string{
	T_uint8:   "uint8",
	T_int8:    "int8",
	T_uint16:  "uint16",
	T_int16:   "int16",
	T_uint32:  "uint32",
	T_int32:   "int32",
	T_uint64:  "uint64",
	T_int64:   "int64",
	T_float32: "float32",
	T_float64: "float64",
}

// DataTypeBytes returns the # of bytes for a given element type.
// For example, T_uint16 is 2 bytes.
func DataTypeBytes(t DataType) int64 {
	return typeBytes[t]
}

func (t DataType) String() string {
	return typeNames[t]
}

// DataTypeByName returns the element type for a name like "uint16".
func DataTypeByName(name string) (DataType, error) {
	for t, n := range typeNames {
		if n == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown element data type %q", name)
}

// Ndarray is a fully materialized n-dimensional buffer.  Data holds elements
// of type T in row-major order (last dimension varies fastest) using the
// byte order in Order.
type Ndarray struct {
	Shape []int64
	T     DataType
	Order binary.ByteOrder
	Data  []byte
}

// NewNdarray returns a zeroed buffer with the given shape and element type.
func NewNdarray(shape []int64, t DataType, order binary.ByteOrder) *Ndarray {
	n := int64(1)
	for _, d := range shape {
		n *= d
	}
	return &Ndarray{
		Shape: append([]int64(nil), shape...),
		T:     t,
		Order: order,
		Data:  make([]byte, n*typeBytes[t]),
	}
}

// NumElements returns the total number of elements held by the buffer.
func (a *Ndarray) NumElements() int64 {
	n := int64(1)
	for _, d := range a.Shape {
		n *= d
	}
	return n
}

func (a *Ndarray) String() string {
	return fmt.Sprintf("%s array %v (%d bytes)", a.T, a.Shape, len(a.Data))
}

// Value returns the element at the given byte-aligned element index as a
// float64, converting from the underlying element type.
func (a *Ndarray) Value(i int64) float64 {
	b := a.Data[i*typeBytes[a.T]:]
	switch a.T {
	case T_uint8:
		return float64(b[0])
	case T_int8:
		return float64(int8(b[0]))
	case T_uint16:
		return float64(a.Order.Uint16(b))
	case T_int16:
		return float64(int16(a.Order.Uint16(b)))
	case T_uint32:
		return float64(a.Order.Uint32(b))
	case T_int32:
		return float64(int32(a.Order.Uint32(b)))
	case T_uint64:
		return float64(a.Order.Uint64(b))
	case T_int64:
		return float64(int64(a.Order.Uint64(b)))
	case T_float32:
		return float64(math.Float32frombits(a.Order.Uint32(b)))
	case T_float64:
		return math.Float64frombits(a.Order.Uint64(b))
	}
	return 0
}

// Fill sets every element to the given value, converting to the element type.
func (a *Ndarray) Fill(v float64) {
	elem := make([]byte, typeBytes[a.T])
	switch a.T {
	case T_uint8:
		elem[0] = uint8(v)
	case T_int8:
		elem[0] = byte(int8(v))
	case T_uint16:
		a.Order.PutUint16(elem, uint16(v))
	case T_int16:
		a.Order.PutUint16(elem, uint16(int16(v)))
	case T_uint32:
		a.Order.PutUint32(elem, uint32(v))
	case T_int32:
		a.Order.PutUint32(elem, uint32(int32(v)))
	case T_uint64:
		a.Order.PutUint64(elem, uint64(v))
	case T_int64:
		a.Order.PutUint64(elem, uint64(int64(v)))
	case T_float32:
		a.Order.PutUint32(elem, math.Float32bits(float32(v)))
	case T_float64:
		a.Order.PutUint64(elem, math.Float64bits(v))
	}
	for i := 0; i < len(a.Data); i += len(elem) {
		copy(a.Data[i:], elem)
	}
}

// Float64s decodes every element into a freshly allocated float64 slice in
// row-major order.
func (a *Ndarray) Float64s() []float64 {
	out := make([]float64, a.NumElements())
	for i := range out {
		out[i] = a.Value(int64(i))
	}
	return out
}
