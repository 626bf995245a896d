package multiscale

import (
	"context"
	"testing"

	"github.com/clbarnes/multiscale-read/msread"
)

func TestCoordinates(t *testing.T) {
	tests := []struct {
		extent      int64
		scale       float64
		translation float64
	}{
		{1, 1, 0},
		{4, 2, 0},
		{8, 0.5, -3},
		{100, 40, 1.5},
	}
	for _, test := range tests {
		coords, err := Coordinates(test.extent, test.scale, test.translation)
		if err != nil {
			t.Fatalf("Coordinates(%d, %v, %v) failed: %v", test.extent, test.scale, test.translation, err)
		}
		if int64(len(coords)) != test.extent {
			t.Fatalf("got %d coordinates, want %d", len(coords), test.extent)
		}
		if coords[0] != test.translation {
			t.Errorf("element 0 = %v, want translation %v", coords[0], test.translation)
		}
		last := test.translation + float64(test.extent-1)*test.scale
		if coords[test.extent-1] != last {
			t.Errorf("element %d = %v, want %v", test.extent-1, coords[test.extent-1], last)
		}
	}
}

func TestCoordinatesRejectsBadExtent(t *testing.T) {
	for _, extent := range []int64{0, -1} {
		if _, err := Coordinates(extent, 1, 0); !msread.IsValueError(err) {
			t.Errorf("extent %d should be a value error, got %v", extent, err)
		}
	}
}

func TestAxisValidate(t *testing.T) {
	if err := (Axis{Name: "x", Scale: 4}).Validate(); err != nil {
		t.Errorf("positive scale should validate: %v", err)
	}
	for _, scale := range []float64{0, -2} {
		err := (Axis{Name: "x", Scale: scale}).Validate()
		if !msread.IsValueError(err) {
			t.Errorf("scale %v should be a value error, got %v", scale, err)
		}
	}
}

// fakeArray stands in for a lazily-read zarr array or N5 dataset.
type fakeArray struct {
	shape []int64
	reads int
}

func (f *fakeArray) Shape() []int64 {
	return append([]int64(nil), f.shape...)
}

func (f *fakeArray) Read(ctx context.Context) (*msread.Ndarray, error) {
	f.reads++
	return msread.NewNdarray(f.shape, msread.T_uint8, nil), nil
}

func TestNewDataArrayChecksCoordinateLengths(t *testing.T) {
	arr := &fakeArray{shape: []int64{4, 8}}

	coords, err := BuildCoords([]Axis{
		{Name: "y", Scale: 2},
		{Name: "x", Scale: 1, Unit: "nm"},
	}, arr.Shape())
	if err != nil {
		t.Fatalf("couldn't build coords: %v", err)
	}
	da, err := NewDataArray("s0", arr, coords, map[string]interface{}{"k": "v"})
	if err != nil {
		t.Fatalf("couldn't build data array: %v", err)
	}
	if arr.reads != 0 {
		t.Errorf("construction must not read raw data, saw %d reads", arr.reads)
	}
	if c, ok := da.Coord("x"); !ok || len(c.Values) != 8 || c.Unit != "nm" {
		t.Errorf("bad x coordinate: %+v", c)
	}

	short := []Coordinate{coords[0]}
	if _, err := NewDataArray("s0", arr, short, nil); !msread.IsSchemaError(err) {
		t.Errorf("coordinate count mismatch should be a schema error, got %v", err)
	}

	wrong := []Coordinate{coords[0], {Name: "x", Values: []float64{0}}}
	if _, err := NewDataArray("s0", arr, wrong, nil); !msread.IsSchemaError(err) {
		t.Errorf("coordinate length mismatch should be a schema error, got %v", err)
	}
}

func TestBuildCoordsMismatch(t *testing.T) {
	_, err := BuildCoords([]Axis{{Name: "x", Scale: 1}}, []int64{2, 2})
	if !msread.IsSchemaError(err) {
		t.Errorf("axis/shape mismatch should be a schema error, got %v", err)
	}
}

func TestLabelledCoordinateLength(t *testing.T) {
	arr := &fakeArray{shape: []int64{3}}
	coords := []Coordinate{{Name: "c", Labels: []string{"dapi", "gfp", "rfp"}}}
	da, err := NewDataArray("s0", arr, coords, nil)
	if err != nil {
		t.Fatalf("labelled coordinate should bind: %v", err)
	}
	if c, _ := da.Coord("c"); c.Len() != 3 {
		t.Errorf("bad labelled coordinate length: %d", c.Len())
	}
}
