/*
	Package n5 reads N5 groups and datasets from a storage.Store.  N5 stores
	declare dimensions column-major (fastest-varying dimension first); this
	package keeps the declared order in metadata accessors but materializes
	element data row-major, so Dataset.Shape and Read agree with the rest of
	the library.
*/
package n5

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/clbarnes/multiscale-read/msread"
	"github.com/clbarnes/multiscale-read/storage"
)

// AttrsKey is the store key of the JSON attribute document kept at every
// N5 group and dataset path.
const AttrsKey = "attributes.json"

// Compression identifies an N5 block codec.
type Compression struct {
	Type  string `json:"type"`
	Level int    `json:"level,omitempty"`
}

// DatasetAttrs is the subset of an N5 attribute document that describes the
// stored blocks of a dataset.
type DatasetAttrs struct {
	// Dimensions is the extent per dimension, fastest-varying first.
	Dimensions []int64 `json:"dimensions"`
	// BlockSize is the nominal block extent per dimension, same order.
	BlockSize []int64 `json:"blockSize"`
	// DataType names the element type, e.g., "uint16".
	DataType string `json:"dataType"`
	// Compression is the block codec.  Older datasets use the legacy
	// CompressionType string instead.
	Compression     *Compression `json:"compression"`
	CompressionType string       `json:"compressionType"`
}

// Codec returns the block codec name, defaulting to "raw".
func (m *DatasetAttrs) Codec() string {
	if m.Compression != nil {
		return m.Compression.Type
	}
	if m.CompressionType != "" {
		return m.CompressionType
	}
	return "raw"
}

// Validate checks the internal consistency of dataset attributes.
func (m *DatasetAttrs) Validate() error {
	if len(m.Dimensions) == 0 {
		return msread.SchemaErrorf("dataset attributes missing dimensions")
	}
	if m.DataType == "" {
		return msread.SchemaErrorf("dataset attributes missing dataType")
	}
	if len(m.BlockSize) != len(m.Dimensions) {
		return msread.SchemaErrorf("dimensions has %d entries but blockSize has %d",
			len(m.Dimensions), len(m.BlockSize))
	}
	for _, b := range m.BlockSize {
		if b < 1 {
			return msread.SchemaErrorf("non-positive block extent %d", b)
		}
	}
	for _, d := range m.Dimensions {
		if d < 0 {
			return msread.SchemaErrorf("negative dimension extent %d", d)
		}
	}
	switch m.Codec() {
	case "raw", "gzip", "zstd", "bzip2":
	default:
		return msread.SchemaErrorf("unsupported N5 compression %q", m.Codec())
	}
	return nil
}

// Group is a node in an N5 hierarchy.
type Group struct {
	store    storage.Store
	path     string
	rawAttrs []byte
	attrs    map[string]interface{}
}

// OpenGroup opens the group at a "/"-separated path within the store.  A
// missing attribute document is not an error.
func OpenGroup(ctx context.Context, store storage.Store, path string) (*Group, error) {
	g := &Group{
		store: store,
		path:  path,
		attrs: map[string]interface{}{},
	}
	raw, err := store.ReadAll(ctx, storage.Join(path, AttrsKey))
	switch {
	case err == nil:
		if err := json.Unmarshal(raw, &g.attrs); err != nil {
			return nil, msread.SchemaErrorf("malformed %s for group %q: %v", AttrsKey, path, err)
		}
		g.rawAttrs = raw
	case errors.Is(err, storage.ErrKeyNotFound):
		// attribute-less group
	default:
		return nil, err
	}
	return g, nil
}

// Path returns the group's path within the store.
func (g *Group) Path() string {
	return g.path
}

// Attrs returns the group's full attribute map, untouched from the store.
func (g *Group) Attrs() map[string]interface{} {
	return g.attrs
}

// RawAttrs returns the raw attribute JSON document, or nil.
func (g *Group) RawAttrs() []byte {
	return g.rawAttrs
}

// Dataset opens the named dataset within the group without reading blocks.
func (g *Group) Dataset(ctx context.Context, name string) (*Dataset, error) {
	return OpenDataset(ctx, g.store, storage.Join(g.path, name))
}

// Dataset is a lazily-read N5 dataset.
type Dataset struct {
	store    storage.Store
	path     string
	meta     DatasetAttrs
	rawAttrs []byte
	attrs    map[string]interface{}
	dtype    msread.DataType
}

// OpenDataset opens the dataset at a "/"-separated path within the store.
func OpenDataset(ctx context.Context, store storage.Store, path string) (*Dataset, error) {
	raw, err := store.ReadAll(ctx, storage.Join(path, AttrsKey))
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil, msread.SchemaErrorf("no N5 dataset at %q: missing %s", path, AttrsKey)
		}
		return nil, err
	}
	d := &Dataset{
		store:    store,
		path:     path,
		rawAttrs: raw,
		attrs:    map[string]interface{}{},
	}
	if err := json.Unmarshal(raw, &d.meta); err != nil {
		return nil, msread.SchemaErrorf("malformed %s at %q: %v", AttrsKey, path, err)
	}
	if err := json.Unmarshal(raw, &d.attrs); err != nil {
		return nil, msread.SchemaErrorf("malformed %s at %q: %v", AttrsKey, path, err)
	}
	if err := d.meta.Validate(); err != nil {
		return nil, fmt.Errorf("dataset at %q: %w", path, err)
	}
	if d.dtype, err = msread.DataTypeByName(d.meta.DataType); err != nil {
		return nil, msread.SchemaErrorf("dataset at %q: %v", path, err)
	}
	return d, nil
}

// Path returns the dataset's path within the store.
func (d *Dataset) Path() string {
	return d.path
}

// Dimensions returns the extents as declared in the store, fastest-varying
// dimension first.
func (d *Dataset) Dimensions() []int64 {
	return append([]int64(nil), d.meta.Dimensions...)
}

// Shape returns the extents row-major, i.e., Dimensions reversed.
func (d *Dataset) Shape() []int64 {
	n := len(d.meta.Dimensions)
	shape := make([]int64, n)
	for i, e := range d.meta.Dimensions {
		shape[n-1-i] = e
	}
	return shape
}

// Dtype returns the element type.
func (d *Dataset) Dtype() msread.DataType {
	return d.dtype
}

// NumBytes returns the uncompressed size of the full dataset.
func (d *Dataset) NumBytes() int64 {
	n := msread.DataTypeBytes(d.dtype)
	for _, e := range d.meta.Dimensions {
		n *= e
	}
	return n
}

// Attrs returns the dataset's full attribute map, untouched from the store
// (dimension-ordered fields in it stay column-major).
func (d *Dataset) Attrs() map[string]interface{} {
	return d.attrs
}

// RawAttrs returns the raw attribute JSON document.
func (d *Dataset) RawAttrs() []byte {
	return d.rawAttrs
}

func (d *Dataset) String() string {
	return fmt.Sprintf("N5 dataset %q %s%v", d.path, d.meta.DataType, d.meta.Dimensions)
}
