/*
	Package zarr reads zarr v2 groups and arrays from a storage.Store.
	Opening a group or array only fetches the small JSON metadata documents;
	chunk data is not touched until Array.Read is called.
*/
package zarr

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/clbarnes/multiscale-read/msread"
	"github.com/clbarnes/multiscale-read/storage"
)

// Group is a node in a zarr hierarchy that can hold attributes and arrays.
type Group struct {
	store    storage.Store
	path     string
	rawAttrs []byte
	attrs    Attributes
}

// OpenGroup opens the group at a "/"-separated path within the store.  An
// empty path addresses the store root.  A missing ".zattrs" document is not
// an error; the group simply has no attributes.
func OpenGroup(ctx context.Context, store storage.Store, path string) (*Group, error) {
	g := &Group{
		store: store,
		path:  path,
		attrs: Attributes{},
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

// Attrs returns the group's userland attributes.
func (g *Group) Attrs() Attributes {
	return g.attrs
}

// RawAttrs returns the raw ".zattrs" JSON document, or nil if the group has
// none.
func (g *Group) RawAttrs() []byte {
	return g.rawAttrs
}

// Array opens the named array within the group without reading any chunk
// data.
func (g *Group) Array(ctx context.Context, name string) (*Array, error) {
	return OpenArray(ctx, g.store, storage.Join(g.path, name))
}

// Array is a lazily-read zarr v2 array.  Only metadata is held in memory;
// Read materializes the element data.
type Array struct {
	store storage.Store
	path  string
	meta  ArrayMeta
	attrs Attributes
	dtype msread.DataType
	order binary.ByteOrder
}

// OpenArray opens the array at a "/"-separated path within the store.
func OpenArray(ctx context.Context, store storage.Store, path string) (*Array, error) {
	raw, err := store.ReadAll(ctx, storage.Join(path, ArrayMetaKey))
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil, msread.SchemaErrorf("no zarr array at %q: missing %s", path, ArrayMetaKey)
		}
		return nil, err
	}
	a := &Array{
		store: store,
		path:  path,
		attrs: Attributes{},
	}
	if err := json.Unmarshal(raw, &a.meta); err != nil {
		return nil, msread.SchemaErrorf("malformed %s at %q: %v", ArrayMetaKey, path, err)
	}
	if err := a.meta.Validate(); err != nil {
		return nil, fmt.Errorf("array at %q: %w", path, err)
	}
	if a.dtype, a.order, err = ParseDtype(a.meta.Dtype); err != nil {
		return nil, fmt.Errorf("array at %q: %w", path, err)
	}

	attrData, err := store.ReadAll(ctx, storage.Join(path, AttrsKey))
	switch {
	case err == nil:
		if err := json.Unmarshal(attrData, &a.attrs); err != nil {
			return nil, msread.SchemaErrorf("malformed %s at %q: %v", AttrsKey, path, err)
		}
	case errors.Is(err, storage.ErrKeyNotFound):
		// attribute-less array
	default:
		return nil, err
	}
	return a, nil
}

// Path returns the array's path within the store.
func (a *Array) Path() string {
	return a.path
}

// Shape returns the array's extent per dimension, row-major.
func (a *Array) Shape() []int64 {
	return append([]int64(nil), a.meta.Shape...)
}

// Dtype returns the element type.
func (a *Array) Dtype() msread.DataType {
	return a.dtype
}

// NumBytes returns the uncompressed size of the full array.
func (a *Array) NumBytes() int64 {
	n := msread.DataTypeBytes(a.dtype)
	for _, d := range a.meta.Shape {
		n *= d
	}
	return n
}

// Attrs returns the array's userland attributes.
func (a *Array) Attrs() Attributes {
	return a.attrs
}

func (a *Array) String() string {
	return fmt.Sprintf("zarr array %q %s%v", a.path, a.meta.Dtype, a.meta.Shape)
}
