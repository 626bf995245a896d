package ome

import (
	"context"
	"reflect"
	"testing"

	"github.com/clbarnes/multiscale-read/msread"
	"github.com/clbarnes/multiscale-read/storage"
)

var sampleAttrs = `{
	"multiscales": [
		{
			"version": "0.4",
			"name": "em volume",
			"axes": [
				{"name": "z", "type": "space", "unit": "micrometer"},
				{"name": "y", "type": "space", "unit": "micrometer"},
				{"name": "x", "type": "space", "unit": "micrometer"}
			],
			"datasets": [
				{
					"path": "s0",
					"coordinateTransformations": [
						{"type": "scale", "scale": [2.0, 1.0, 1.0]}
					]
				},
				{
					"path": "s1",
					"coordinateTransformations": [
						{"type": "scale", "scale": [2.0, 2.0, 2.0]},
						{"type": "translation", "translation": [0.0, 0.5, 0.5]}
					]
				}
			]
		}
	]
}`

func zarrayDoc(shape string) []byte {
	return []byte(`{
		"zarr_format": 2,
		"shape": ` + shape + `,
		"chunks": ` + shape + `,
		"dtype": "|u1",
		"compressor": null,
		"fill_value": 0,
		"order": "C"
	}`)
}

func sampleStore(t *testing.T) *storage.MemStore {
	t.Helper()
	ctx := context.Background()
	store := storage.NewMemStore()
	seed := func(key string, data []byte) {
		if err := store.WriteAll(ctx, key, data); err != nil {
			t.Fatalf("couldn't seed %q: %v", key, err)
		}
	}
	seed("vol/.zattrs", []byte(sampleAttrs))
	seed("vol/s0/.zarray", zarrayDoc("[4, 8, 8]"))
	seed("vol/s0/.zattrs", []byte(`{"channel": "em"}`))
	seed("vol/s1/.zarray", zarrayDoc("[2, 4, 4]"))
	return store
}

func TestWorkedExample(t *testing.T) {
	ctx := context.Background()
	store := sampleStore(t)
	defer store.Close()

	h, err := Open(ctx, store, "vol")
	if err != nil {
		t.Fatalf("couldn't open hierarchy: %v", err)
	}
	if h.NumLevels() != 2 {
		t.Fatalf("expected 2 levels, got %d", h.NumLevels())
	}

	da, err := h.Level(ctx, 0)
	if err != nil {
		t.Fatalf("couldn't resolve level 0: %v", err)
	}
	if got := da.Dims(); !reflect.DeepEqual(got, []string{"z", "y", "x"}) {
		t.Fatalf("axis order mangled: %v", got)
	}

	z, _ := da.Coord("z")
	if !reflect.DeepEqual(z.Values, []float64{0, 2, 4, 6}) {
		t.Errorf("z coordinates = %v, want [0 2 4 6]", z.Values)
	}
	if z.Unit != "micrometer" {
		t.Errorf("unit not carried through: %q", z.Unit)
	}
	y, _ := da.Coord("y")
	if y.Values[0] != 0 || y.Values[7] != 7 {
		t.Errorf("y coordinates = %v", y.Values)
	}
	x, _ := da.Coord("x")
	if len(x.Values) != 8 || x.Values[3] != 3 {
		t.Errorf("x coordinates = %v", x.Values)
	}

	if da.Attrs["channel"] != "em" {
		t.Errorf("array attributes not passed through: %v", da.Attrs)
	}
}

func TestTranslationAppliedAtLevel1(t *testing.T) {
	ctx := context.Background()
	store := sampleStore(t)
	defer store.Close()

	h, err := Open(ctx, store, "vol")
	if err != nil {
		t.Fatalf("couldn't open hierarchy: %v", err)
	}
	da, err := h.Level(ctx, 1)
	if err != nil {
		t.Fatalf("couldn't resolve level 1: %v", err)
	}
	y, _ := da.Coord("y")
	if y.Values[0] != 0.5 || y.Values[1] != 2.5 {
		t.Errorf("y coordinates = %v, want start 0.5 step 2", y.Values)
	}
	z, _ := da.Coord("z")
	if z.Values[0] != 0 {
		t.Errorf("missing z translation should default to 0, got %v", z.Values[0])
	}
}

func TestRereadingIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := sampleStore(t)
	defer store.Close()

	var snapshots [2]*multiscaleSnapshot
	for i := range snapshots {
		h, err := Open(ctx, store, "vol")
		if err != nil {
			t.Fatalf("open %d failed: %v", i, err)
		}
		da, err := h.Level(ctx, 0)
		if err != nil {
			t.Fatalf("level resolve %d failed: %v", i, err)
		}
		snapshots[i] = &multiscaleSnapshot{coords: da.Coords, attrs: da.Attrs}
	}
	if !reflect.DeepEqual(snapshots[0], snapshots[1]) {
		t.Error("two reads of the same hierarchy diverged")
	}
}

type multiscaleSnapshot struct {
	coords interface{}
	attrs  map[string]interface{}
}

func TestSchemaErrors(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore()
	defer store.Close()
	seed := func(key, doc string) {
		if err := store.WriteAll(ctx, key, []byte(doc)); err != nil {
			t.Fatalf("couldn't seed %q: %v", key, err)
		}
	}

	// no attributes at all
	if _, err := Open(ctx, store, "empty"); !msread.IsSchemaError(err) {
		t.Errorf("missing metadata should be a schema error, got %v", err)
	}

	// attributes without a multiscales key
	seed("plain/.zattrs", `{"note": "just a group"}`)
	if _, err := Open(ctx, store, "plain"); !msread.IsSchemaError(err) {
		t.Errorf("absent multiscales key should be a schema error, got %v", err)
	}

	// scale entries don't match the axis count
	seed("short/.zattrs", `{
		"multiscales": [{
			"axes": [{"name": "y"}, {"name": "x"}],
			"datasets": [{
				"path": "s0",
				"coordinateTransformations": [{"type": "scale", "scale": [1.0]}]
			}]
		}]
	}`)
	if _, err := Open(ctx, store, "short"); !msread.IsSchemaError(err) {
		t.Errorf("axis/scale count mismatch should be a schema error, got %v", err)
	}

	// two scale transforms on one dataset
	seed("twoscale/.zattrs", `{
		"multiscales": [{
			"axes": [{"name": "x"}],
			"datasets": [{
				"path": "s0",
				"coordinateTransformations": [
					{"type": "scale", "scale": [1.0]},
					{"type": "scale", "scale": [2.0]}
				]
			}]
		}]
	}`)
	if _, err := Open(ctx, store, "twoscale"); !msread.IsSchemaError(err) {
		t.Errorf("duplicate scale transform should be a schema error, got %v", err)
	}

	// transform type outside the convention
	seed("affine/.zattrs", `{
		"multiscales": [{
			"axes": [{"name": "x"}],
			"datasets": [{
				"path": "s0",
				"coordinateTransformations": [{"type": "affine"}]
			}]
		}]
	}`)
	if _, err := Open(ctx, store, "affine"); !msread.IsSchemaError(err) {
		t.Errorf("unsupported transform type should be a schema error, got %v", err)
	}

	// dataset missing its scale transform entirely
	seed("noscale/.zattrs", `{
		"multiscales": [{
			"axes": [{"name": "x"}],
			"datasets": [{
				"path": "s0",
				"coordinateTransformations": [{"type": "translation", "translation": [1.0]}]
			}]
		}]
	}`)
	if _, err := Open(ctx, store, "noscale"); !msread.IsSchemaError(err) {
		t.Errorf("missing scale transform should be a schema error, got %v", err)
	}
}

func TestAxisCountMustMatchArray(t *testing.T) {
	ctx := context.Background()
	store := sampleStore(t)
	defer store.Close()

	// overwrite s0 with a 2D array under 3-axis metadata
	if err := store.WriteAll(ctx, "vol/s0/.zarray", zarrayDoc("[4, 8]")); err != nil {
		t.Fatalf("couldn't overwrite array: %v", err)
	}
	h, err := Open(ctx, store, "vol")
	if err != nil {
		t.Fatalf("couldn't open hierarchy: %v", err)
	}
	if _, err := h.Level(ctx, 0); !msread.IsSchemaError(err) {
		t.Errorf("dimensionality mismatch should be a schema error, got %v", err)
	}
}

func TestOpenIndexOutOfRange(t *testing.T) {
	ctx := context.Background()
	store := sampleStore(t)
	defer store.Close()

	if _, err := OpenIndex(ctx, store, "vol", 1); !msread.IsSchemaError(err) {
		t.Errorf("multiscale index past the end should be a schema error, got %v", err)
	}
}

func TestLevelIndexOutOfRange(t *testing.T) {
	ctx := context.Background()
	store := sampleStore(t)
	defer store.Close()

	h, err := Open(ctx, store, "vol")
	if err != nil {
		t.Fatalf("couldn't open hierarchy: %v", err)
	}
	if _, err := h.Level(ctx, 2); !msread.IsValueError(err) {
		t.Errorf("level out of range should be a value error, got %v", err)
	}
	if _, err := h.Level(ctx, -1); !msread.IsValueError(err) {
		t.Errorf("negative level should be a value error, got %v", err)
	}
}

func TestMultiscaleWideTransformComposes(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore()
	defer store.Close()
	seed := func(key string, data []byte) {
		if err := store.WriteAll(ctx, key, data); err != nil {
			t.Fatalf("couldn't seed %q: %v", key, err)
		}
	}
	seed("vol/.zattrs", []byte(`{
		"multiscales": [{
			"axes": [{"name": "x", "unit": "nanometer"}],
			"datasets": [{
				"path": "s0",
				"coordinateTransformations": [
					{"type": "scale", "scale": [2.0]},
					{"type": "translation", "translation": [1.0]}
				]
			}],
			"coordinateTransformations": [
				{"type": "scale", "scale": [10.0]},
				{"type": "translation", "translation": [5.0]}
			]
		}]
	}`))
	seed("vol/s0/.zarray", zarrayDoc("[3]"))

	h, err := Open(ctx, store, "vol")
	if err != nil {
		t.Fatalf("couldn't open hierarchy: %v", err)
	}
	da, err := h.Level(ctx, 0)
	if err != nil {
		t.Fatalf("couldn't resolve level: %v", err)
	}
	// dataset transform first, then the hierarchy-wide one:
	// world = 10*(2k + 1) + 5 = 20k + 15
	x, _ := da.Coord("x")
	if !reflect.DeepEqual(x.Values, []float64{15, 35, 55}) {
		t.Errorf("composed coordinates = %v, want [15 35 55]", x.Values)
	}
}
