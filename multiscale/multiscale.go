/*
	Package multiscale models multiscale image hierarchies as ordered
	sequences of labeled arrays.  Each scale level pairs a lazily-read raw
	array with one world-space coordinate vector per axis and a pass-through
	attribute map.  The dialect-specific readers live in the ome and ngln5
	subpackages; this package holds what they share.
*/
package multiscale

import (
	"context"
	"fmt"

	"github.com/clbarnes/multiscale-read/msread"
)

// Axis describes one dimension of a scale level: its name, physical unit
// (empty for unitless axes), and the scale/translation mapping array indices
// onto world space.
type Axis struct {
	Name        string
	Unit        string
	Scale       float64
	Translation float64
}

// Validate checks that the axis can produce coordinates.
func (a Axis) Validate() error {
	if !(a.Scale > 0) {
		return msread.ValueErrorf("axis %q has non-positive scale %v", a.Name, a.Scale)
	}
	return nil
}

func (a Axis) String() string {
	if a.Unit == "" {
		return fmt.Sprintf("%s (scale %v, translation %v)", a.Name, a.Scale, a.Translation)
	}
	return fmt.Sprintf("%s (scale %v %s, translation %v %s)", a.Name, a.Scale, a.Unit, a.Translation, a.Unit)
}

// Coordinate is the labeled coordinate vector for one axis.  Numeric axes
// carry Values; axes labeled by a coordinate array carry Labels instead.
type Coordinate struct {
	Name   string
	Unit   string
	Values []float64
	Labels []string
}

// Len returns the number of positions along the axis.
func (c Coordinate) Len() int {
	if c.Labels != nil {
		return len(c.Labels)
	}
	return len(c.Values)
}

// Array is the raw-data collaborator bound into a DataArray: an
// n-dimensional array whose elements are not read until Read is called.
// zarr.Array and n5.Dataset both satisfy it.
type Array interface {
	// Shape returns the row-major extent per dimension.
	Shape() []int64

	// Read materializes the element data.
	Read(ctx context.Context) (*msread.Ndarray, error)
}

// DataArray is one scale level of a hierarchy: raw data plus per-axis
// coordinates and source attributes.  Constructing one never reads element
// data.
type DataArray struct {
	Name   string
	Coords []Coordinate
	Attrs  map[string]interface{}

	data  Array
	shape []int64
}

// NewDataArray binds coordinate vectors and an attribute map onto a raw
// array.  It fails with a SchemaError unless there is exactly one coordinate
// per dimension and each coordinate's length equals the extent of its axis.
func NewDataArray(name string, data Array, coords []Coordinate, attrs map[string]interface{}) (*DataArray, error) {
	shape := data.Shape()
	if len(coords) != len(shape) {
		return nil, msread.SchemaErrorf("%d coordinate vectors for a %d-dimensional array", len(coords), len(shape))
	}
	for i, c := range coords {
		if int64(c.Len()) != shape[i] {
			return nil, msread.SchemaErrorf("coordinate %q has %d positions but axis %d has extent %d",
				c.Name, c.Len(), i, shape[i])
		}
	}
	return &DataArray{
		Name:   name,
		Coords: coords,
		Attrs:  attrs,
		data:   data,
		shape:  shape,
	}, nil
}

// Shape returns the row-major extent per dimension.
func (da *DataArray) Shape() []int64 {
	return append([]int64(nil), da.shape...)
}

// Dims returns the axis names in dimension order.
func (da *DataArray) Dims() []string {
	names := make([]string, len(da.Coords))
	for i, c := range da.Coords {
		names[i] = c.Name
	}
	return names
}

// Coord returns the coordinate vector for a named axis.
func (da *DataArray) Coord(name string) (Coordinate, bool) {
	for _, c := range da.Coords {
		if c.Name == name {
			return c, true
		}
	}
	return Coordinate{}, false
}

// Data reads the raw element data.  This is the only operation on a
// DataArray that touches chunk storage.
func (da *DataArray) Data(ctx context.Context) (*msread.Ndarray, error) {
	return da.data.Read(ctx)
}

func (da *DataArray) String() string {
	return fmt.Sprintf("%s %v dims %v", da.Name, da.shape, da.Dims())
}

// Hierarchy is a multiscale image pyramid: level 0 is the base (highest)
// resolution and each subsequent level is a downsampled version of it.
type Hierarchy interface {
	// NumLevels returns the number of scale levels.
	NumLevels() int

	// Level resolves one scale level into a labeled array.  Metadata
	// problems surface here; raw data stays unread.
	Level(ctx context.Context, idx int) (*DataArray, error)
}

// Levels resolves every level of a hierarchy in order.
func Levels(ctx context.Context, h Hierarchy) ([]*DataArray, error) {
	out := make([]*DataArray, h.NumLevels())
	for i := range out {
		da, err := h.Level(ctx, i)
		if err != nil {
			return nil, err
		}
		out[i] = da
	}
	return out, nil
}
