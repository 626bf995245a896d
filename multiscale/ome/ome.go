/*
	Package ome reads OME-NGFF multiscale hierarchies.  The group's
	".zattrs" document is validated against an embedded JSON Schema and then
	cross-checked: every dataset must declare exactly one scale transform
	and at most one translation transform, each with one entry per axis.
	Axis order in OME-NGFF is already row-major, so no reordering happens.
*/
package ome

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/clbarnes/multiscale-read/msread"
	"github.com/clbarnes/multiscale-read/multiscale"
	"github.com/clbarnes/multiscale-read/storage"
	"github.com/clbarnes/multiscale-read/zarr"
)

// AxisMeta is one entry of the OME-NGFF "axes" list.
type AxisMeta struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
	Unit string `json:"unit,omitempty"`
}

// Transform is one OME-NGFF coordinate transformation.
type Transform struct {
	Type        string    `json:"type"`
	Scale       []float64 `json:"scale,omitempty"`
	Translation []float64 `json:"translation,omitempty"`
}

// DatasetMeta names one scale level and its transforms.
type DatasetMeta struct {
	Path                      string      `json:"path"`
	CoordinateTransformations []Transform `json:"coordinateTransformations"`
}

// Multiscale is one entry of the "multiscales" attribute.
type Multiscale struct {
	Version                   string        `json:"version,omitempty"`
	Name                      string        `json:"name,omitempty"`
	Axes                      []AxisMeta    `json:"axes"`
	Datasets                  []DatasetMeta `json:"datasets"`
	CoordinateTransformations []Transform   `json:"coordinateTransformations,omitempty"`
}

type attrsDoc struct {
	Multiscales []Multiscale `json:"multiscales"`
}

// Hierarchy reads the scale levels declared by one multiscale entry.
// It satisfies multiscale.Hierarchy.
type Hierarchy struct {
	group *zarr.Group
	ms    Multiscale

	// per-level transforms resolved and checked at open time
	scales       [][]float64
	translations [][]float64
}

// Open opens the first multiscale entry of the OME-NGFF group at the given
// path within the store.
func Open(ctx context.Context, store storage.Store, group string) (*Hierarchy, error) {
	return OpenIndex(ctx, store, group, 0)
}

// OpenIndex opens the multiscale entry at the given index within the
// group's "multiscales" attribute.  All metadata validation happens here;
// no raw data is read.
func OpenIndex(ctx context.Context, store storage.Store, group string, index int) (*Hierarchy, error) {
	zg, err := zarr.OpenGroup(ctx, store, group)
	if err != nil {
		return nil, err
	}
	raw := zg.RawAttrs()
	if raw == nil {
		return nil, msread.SchemaErrorf("no OME-NGFF multiscale metadata at group %q", group)
	}

	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, msread.SchemaErrorf("unparseable attributes at group %q: %v", group, err)
	}
	if err := compiledSchema.Validate(generic); err != nil {
		return nil, msread.SchemaErrorf("group %q is not a valid OME-NGFF multiscale: %v", group, err)
	}

	var doc attrsDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, msread.SchemaErrorf("group %q: %v", group, err)
	}
	if index < 0 || index >= len(doc.Multiscales) {
		return nil, msread.SchemaErrorf("group %q has %d multiscale entries, index %d requested",
			group, len(doc.Multiscales), index)
	}
	ms := doc.Multiscales[index]

	h := &Hierarchy{group: zg, ms: ms}
	naxes := len(ms.Axes)
	msScale, msTrans, err := resolveTransforms(ms.CoordinateTransformations, naxes, false)
	if err != nil {
		return nil, msread.SchemaErrorf("group %q multiscale transforms: %v", group, err)
	}
	for _, ds := range ms.Datasets {
		scale, trans, err := resolveTransforms(ds.CoordinateTransformations, naxes, true)
		if err != nil {
			return nil, msread.SchemaErrorf("group %q dataset %q: %v", group, ds.Path, err)
		}
		// dataset transform applies first, then the multiscale-wide one
		for i := range scale {
			trans[i] = trans[i]*msScale[i] + msTrans[i]
			scale[i] *= msScale[i]
		}
		h.scales = append(h.scales, scale)
		h.translations = append(h.translations, trans)
	}
	return h, nil
}

// resolveTransforms reduces a transform list to per-axis scale and
// translation vectors.  Dataset-level lists must contain exactly one scale
// transform; the multiscale-wide list may omit it.  At most one translation
// is allowed, defaulting to zero per axis.
func resolveTransforms(ts []Transform, naxes int, scaleRequired bool) (scale, translation []float64, err error) {
	for _, t := range ts {
		switch t.Type {
		case "scale":
			if scale != nil {
				return nil, nil, fmt.Errorf("more than one scale transform")
			}
			if len(t.Scale) != naxes {
				return nil, nil, fmt.Errorf("scale has %d entries for %d axes", len(t.Scale), naxes)
			}
			scale = append([]float64(nil), t.Scale...)
		case "translation":
			if translation != nil {
				return nil, nil, fmt.Errorf("more than one translation transform")
			}
			if len(t.Translation) != naxes {
				return nil, nil, fmt.Errorf("translation has %d entries for %d axes", len(t.Translation), naxes)
			}
			translation = append([]float64(nil), t.Translation...)
		default:
			return nil, nil, fmt.Errorf("unsupported transform type %q", t.Type)
		}
	}
	if scale == nil {
		if scaleRequired {
			return nil, nil, fmt.Errorf("missing scale transform")
		}
		scale = make([]float64, naxes)
		for i := range scale {
			scale[i] = 1
		}
	}
	if translation == nil {
		translation = make([]float64, naxes)
	}
	return scale, translation, nil
}

// Name returns the multiscale entry's declared name, often empty.
func (h *Hierarchy) Name() string {
	return h.ms.Name
}

// NumLevels returns the number of scale levels.
func (h *Hierarchy) NumLevels() int {
	return len(h.ms.Datasets)
}

// Level resolves one scale level.  The returned array carries one
// coordinate per axis, in the metadata's axis order, and the zarr array's
// own attributes.
func (h *Hierarchy) Level(ctx context.Context, idx int) (*multiscale.DataArray, error) {
	if idx < 0 || idx >= len(h.ms.Datasets) {
		return nil, msread.ValueErrorf("level %d out of range [0, %d)", idx, len(h.ms.Datasets))
	}
	ds := h.ms.Datasets[idx]
	arr, err := h.group.Array(ctx, ds.Path)
	if err != nil {
		return nil, err
	}
	shape := arr.Shape()
	if len(shape) != len(h.ms.Axes) {
		return nil, msread.SchemaErrorf("dataset %q has %d dimensions but metadata declares %d axes",
			ds.Path, len(shape), len(h.ms.Axes))
	}

	axes := make([]multiscale.Axis, len(h.ms.Axes))
	for i, am := range h.ms.Axes {
		axes[i] = multiscale.Axis{
			Name:        am.Name,
			Unit:        am.Unit,
			Scale:       h.scales[idx][i],
			Translation: h.translations[idx][i],
		}
	}
	coords, err := multiscale.BuildCoords(axes, shape)
	if err != nil {
		return nil, err
	}
	return multiscale.NewDataArray(ds.Path, arr, coords, arr.Attrs())
}

var _ multiscale.Hierarchy = (*Hierarchy)(nil)
