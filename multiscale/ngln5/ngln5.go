/*
	Package ngln5 reads multiscale hierarchies described by the
	Neuroglancer-N5 family of metadata conventions.  Three dialects share
	the same concepts under different key names; Neuroglancer-N5 is the
	superset and is probed first, with BigDataViewer and N5Viewer as
	fallbacks.  All per-axis lists in these files are column-major
	(fastest-varying axis first) and are reversed once when axis
	descriptors are built; the raw attribute map is passed through as
	stored, still column-major.
*/
package ngln5

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/clbarnes/multiscale-read/msread"
	"github.com/clbarnes/multiscale-read/multiscale"
	"github.com/clbarnes/multiscale-read/n5"
	"github.com/clbarnes/multiscale-read/storage"
)

// Dialect identifies which key set described a hierarchy.
type Dialect int

const (
	// DialectNeuroglancer is the Neuroglancer-N5 convention: resolution,
	// units, scales, and optionally offset and axes at the group root.
	DialectNeuroglancer Dialect = iota
	// DialectBigDataViewer uses downsamplingFactors + resolution + units.
	DialectBigDataViewer
	// DialectN5Viewer uses pixelResolution (a {unit, dimensions} object or
	// bare list) + scales.
	DialectN5Viewer
)

func (d Dialect) String() string {
	switch d {
	case DialectNeuroglancer:
		return "neuroglancer-n5"
	case DialectBigDataViewer:
		return "bigdataviewer"
	case DialectN5Viewer:
		return "n5viewer"
	}
	return fmt.Sprintf("dialect(%d)", int(d))
}

// metadata is the dialect-independent normal form, still column-major.
type metadata struct {
	dialect    Dialect
	resolution []float64   // base (level 0) scale per axis
	offset     []float64   // world offset per axis, nil for zero
	factors    [][]float64 // per-level downsampling factor per axis
	units      []string    // per-axis units, nil if only unit is set
	unit       string      // single unit applying to every axis
	axes       []string    // axis names, nil for unnamed dimensions
	coordArrs  map[string][]string
}

func (m *metadata) ndim() int {
	return len(m.resolution)
}

// pixelResolution decodes the N5Viewer "pixelResolution" field, which is
// either {"unit": ..., "dimensions": [...]} or a bare list.
type pixelResolution struct {
	Unit       string    `json:"unit"`
	Dimensions []float64 `json:"dimensions"`
}

func (pr *pixelResolution) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '[' {
		return json.Unmarshal(data, &pr.Dimensions)
	}
	type alias pixelResolution
	return json.Unmarshal(data, (*alias)(pr))
}

// sharedKeys are recognized by every dialect.
type sharedKeys struct {
	Axes             []string            `json:"axes"`
	CoordinateArrays map[string][]string `json:"coordinateArrays"`
}

type neuroglancerKeys struct {
	sharedKeys
	Resolution []float64   `json:"resolution"`
	Units      []string    `json:"units"`
	Scales     [][]float64 `json:"scales"`
	Offset     []float64   `json:"offset"`
}

type bigDataViewerKeys struct {
	sharedKeys
	Resolution          []float64   `json:"resolution"`
	Units               []string    `json:"units"`
	DownsamplingFactors [][]float64 `json:"downsamplingFactors"`
}

type n5ViewerKeys struct {
	sharedKeys
	PixelResolution *pixelResolution `json:"pixelResolution"`
	Scales          [][]float64      `json:"scales"`
}

// detect probes the attribute document for each dialect's required keys,
// Neuroglancer-N5 first since the other two are its subsets.
func detect(raw []byte) (*metadata, error) {
	var present map[string]json.RawMessage
	if err := json.Unmarshal(raw, &present); err != nil {
		return nil, msread.SchemaErrorf("unparseable attributes: %v", err)
	}
	has := func(keys ...string) bool {
		for _, k := range keys {
			if _, ok := present[k]; !ok {
				return false
			}
		}
		return true
	}

	switch {
	case has("resolution", "units", "scales"):
		var k neuroglancerKeys
		if err := json.Unmarshal(raw, &k); err != nil {
			return nil, msread.SchemaErrorf("bad neuroglancer-n5 metadata: %v", err)
		}
		return &metadata{
			dialect:    DialectNeuroglancer,
			resolution: k.Resolution,
			offset:     k.Offset,
			factors:    k.Scales,
			units:      k.Units,
			axes:       k.Axes,
			coordArrs:  k.CoordinateArrays,
		}, nil
	case has("resolution", "units", "downsamplingFactors"):
		var k bigDataViewerKeys
		if err := json.Unmarshal(raw, &k); err != nil {
			return nil, msread.SchemaErrorf("bad bigdataviewer metadata: %v", err)
		}
		return &metadata{
			dialect:    DialectBigDataViewer,
			resolution: k.Resolution,
			factors:    k.DownsamplingFactors,
			units:      k.Units,
			axes:       k.Axes,
			coordArrs:  k.CoordinateArrays,
		}, nil
	case has("pixelResolution", "scales"):
		var k n5ViewerKeys
		if err := json.Unmarshal(raw, &k); err != nil {
			return nil, msread.SchemaErrorf("bad n5viewer metadata: %v", err)
		}
		// a JSON null leaves the pointer nil without invoking UnmarshalJSON
		if k.PixelResolution == nil {
			return nil, msread.SchemaErrorf("n5viewer metadata has null pixelResolution")
		}
		return &metadata{
			dialect:    DialectN5Viewer,
			resolution: k.PixelResolution.Dimensions,
			factors:    k.Scales,
			unit:       k.PixelResolution.Unit,
			axes:       k.Axes,
			coordArrs:  k.CoordinateArrays,
		}, nil
	}
	return nil, msread.SchemaErrorf("no neuroglancer-n5, bigdataviewer or n5viewer keys present")
}

// validate enforces consistent dimensionality across every per-axis list.
func (m *metadata) validate() error {
	ndim := m.ndim()
	if ndim == 0 {
		return msread.SchemaErrorf("%s metadata has empty resolution", m.dialect)
	}
	if len(m.factors) == 0 {
		return msread.SchemaErrorf("%s metadata declares no scale levels", m.dialect)
	}
	for i, row := range m.factors {
		if len(row) != ndim {
			return msread.SchemaErrorf("%s downsampling row %d has %d entries for %d dimensions",
				m.dialect, i, len(row), ndim)
		}
	}
	if m.units != nil && len(m.units) != ndim {
		return msread.SchemaErrorf("%s metadata has %d units for %d dimensions", m.dialect, len(m.units), ndim)
	}
	if m.offset != nil && len(m.offset) != ndim {
		return msread.SchemaErrorf("%s metadata has %d offsets for %d dimensions", m.dialect, len(m.offset), ndim)
	}
	if m.axes != nil && len(m.axes) != ndim {
		return msread.SchemaErrorf("%s metadata has %d axis names for %d dimensions", m.dialect, len(m.axes), ndim)
	}
	for name := range m.coordArrs {
		if m.axes == nil {
			return msread.SchemaErrorf("%s metadata has coordinateArrays but no axes", m.dialect)
		}
		found := false
		for _, ax := range m.axes {
			if ax == name {
				found = true
				break
			}
		}
		if !found {
			return msread.SchemaErrorf("%s coordinateArrays names unknown axis %q", m.dialect, name)
		}
	}
	return nil
}

// Hierarchy reads the scale levels of an N5-family multiscale group, whose
// levels live in datasets named s0, s1, ...  It satisfies
// multiscale.Hierarchy.
type Hierarchy struct {
	group *n5.Group
	meta  *metadata
}

// Open opens the N5-family multiscale group at the given path within the
// store, probing Neuroglancer-N5 keys first and falling back to the
// BigDataViewer and N5Viewer key names.
func Open(ctx context.Context, store storage.Store, group string) (*Hierarchy, error) {
	g, err := n5.OpenGroup(ctx, store, group)
	if err != nil {
		return nil, err
	}
	raw := g.RawAttrs()
	if raw == nil {
		return nil, msread.SchemaErrorf("no multiscale metadata at group %q", group)
	}
	meta, err := detect(raw)
	if err != nil {
		return nil, fmt.Errorf("group %q: %w", group, err)
	}
	if err := meta.validate(); err != nil {
		return nil, fmt.Errorf("group %q: %w", group, err)
	}
	return &Hierarchy{group: g, meta: meta}, nil
}

// Dialect reports which key set was found.
func (h *Hierarchy) Dialect() Dialect {
	return h.meta.dialect
}

// NumLevels returns the number of scale levels.
func (h *Hierarchy) NumLevels() int {
	return len(h.meta.factors)
}

// datasetScaleKeys are per-level declarations composed onto the group-wide
// ones: factors multiply, offsets add.
type datasetScaleKeys struct {
	DownsamplingFactors []float64 `json:"downsamplingFactors"`
	Offset              []float64 `json:"offset"`
}

// Level resolves one scale level from the dataset named s<idx>.  Axis
// descriptors come out row-major; the attribute map stays as stored.
func (h *Hierarchy) Level(ctx context.Context, idx int) (*multiscale.DataArray, error) {
	if idx < 0 || idx >= h.NumLevels() {
		return nil, msread.ValueErrorf("level %d out of range [0, %d)", idx, h.NumLevels())
	}
	name := fmt.Sprintf("s%d", idx)
	ds, err := h.group.Dataset(ctx, name)
	if err != nil {
		return nil, err
	}

	ndim := h.meta.ndim()
	dims := ds.Dimensions()
	if len(dims) != ndim {
		return nil, msread.SchemaErrorf("dataset %q has %d dimensions but metadata declares %d",
			name, len(dims), ndim)
	}

	// still column-major here
	scale := make([]float64, ndim)
	translation := make([]float64, ndim)
	for i := 0; i < ndim; i++ {
		scale[i] = h.meta.resolution[i] * h.meta.factors[idx][i]
		if h.meta.offset != nil {
			translation[i] = h.meta.offset[i]
		}
	}
	dsKeys, err := datasetDeclarations(ds)
	if err != nil {
		return nil, fmt.Errorf("dataset %q: %w", name, err)
	}
	if dsKeys.DownsamplingFactors != nil {
		if len(dsKeys.DownsamplingFactors) != ndim {
			return nil, msread.SchemaErrorf("dataset %q downsamplingFactors has %d entries for %d dimensions",
				name, len(dsKeys.DownsamplingFactors), ndim)
		}
		for i, f := range dsKeys.DownsamplingFactors {
			scale[i] *= f
		}
	}
	if dsKeys.Offset != nil {
		if len(dsKeys.Offset) != ndim {
			return nil, msread.SchemaErrorf("dataset %q offset has %d entries for %d dimensions",
				name, len(dsKeys.Offset), ndim)
		}
		for i, o := range dsKeys.Offset {
			translation[i] += o
		}
	}

	// reverse to row-major while building coordinates; only the structured
	// fields flip, never the attribute map
	shape := ds.Shape()
	coords := make([]multiscale.Coordinate, ndim)
	for r := 0; r < ndim; r++ {
		cm := ndim - 1 - r
		axisName := fmt.Sprintf("dim_%d", r)
		if h.meta.axes != nil && h.meta.axes[cm] != "" {
			axisName = h.meta.axes[cm]
		}
		unit := h.meta.unit
		if h.meta.units != nil {
			unit = h.meta.units[cm]
		}

		if labels, ok := h.meta.coordArrs[axisName]; ok {
			if int64(len(labels)) != shape[r] {
				return nil, msread.SchemaErrorf("coordinate array for axis %q has %d labels but extent is %d",
					axisName, len(labels), shape[r])
			}
			coords[r] = multiscale.Coordinate{Name: axisName, Labels: labels}
			continue
		}

		ax := multiscale.Axis{
			Name:        axisName,
			Unit:        unit,
			Scale:       scale[cm],
			Translation: translation[cm],
		}
		if err := ax.Validate(); err != nil {
			return nil, err
		}
		values, err := multiscale.Coordinates(shape[r], ax.Scale, ax.Translation)
		if err != nil {
			return nil, err
		}
		coords[r] = multiscale.Coordinate{Name: ax.Name, Unit: ax.Unit, Values: values}
	}

	return multiscale.NewDataArray(name, ds, coords, ds.Attrs())
}

// datasetDeclarations picks the per-level scale keys out of a dataset's
// attribute document.
func datasetDeclarations(ds *n5.Dataset) (*datasetScaleKeys, error) {
	var keys datasetScaleKeys
	if err := json.Unmarshal(ds.RawAttrs(), &keys); err != nil {
		return nil, msread.SchemaErrorf("bad per-level scale declarations: %v", err)
	}
	return &keys, nil
}

var _ multiscale.Hierarchy = (*Hierarchy)(nil)
