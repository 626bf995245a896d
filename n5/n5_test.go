package n5

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"

	"github.com/klauspost/compress/gzip"

	"github.com/clbarnes/multiscale-read/msread"
	"github.com/clbarnes/multiscale-read/storage"
)

func seed(t *testing.T, store *storage.MemStore, key string, data []byte) {
	t.Helper()
	if err := store.WriteAll(context.Background(), key, data); err != nil {
		t.Fatalf("couldn't seed %q: %v", key, err)
	}
}

// makeBlock assembles an N5 block: big-endian header (mode 0, ndim, per-dim
// extent), then the payload compressed with the given codec.
func makeBlock(t *testing.T, dims []int64, payload []byte, codec string) []byte {
	t.Helper()
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint16(blockModeDefault))
	binary.Write(&buf, binary.BigEndian, uint16(len(dims)))
	for _, d := range dims {
		binary.Write(&buf, binary.BigEndian, uint32(d))
	}
	switch codec {
	case "raw":
		buf.Write(payload)
	case "gzip":
		zw := gzip.NewWriter(&buf)
		zw.Write(payload)
		zw.Close()
	default:
		t.Fatalf("unknown test codec %q", codec)
	}
	return buf.Bytes()
}

func TestReadGzipBlocks(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore()
	defer store.Close()

	// x extent 3 (fastest), y extent 2; element value 10*y + x
	seed(t, store, "ds/attributes.json", []byte(`{
		"dimensions": [3, 2],
		"blockSize": [2, 2],
		"dataType": "uint8",
		"compression": {"type": "gzip", "level": -1}
	}`))
	seed(t, store, "ds/0/0", makeBlock(t, []int64{2, 2}, []byte{0, 1, 10, 11}, "gzip"))
	seed(t, store, "ds/1/0", makeBlock(t, []int64{1, 2}, []byte{2, 12}, "gzip"))

	ds, err := OpenDataset(ctx, store, "ds")
	if err != nil {
		t.Fatalf("couldn't open dataset: %v", err)
	}
	if dims := ds.Dimensions(); dims[0] != 3 || dims[1] != 2 {
		t.Errorf("declared dimensions mangled: %v", dims)
	}
	if shape := ds.Shape(); shape[0] != 2 || shape[1] != 3 {
		t.Errorf("row-major shape should reverse declared dimensions, got %v", shape)
	}

	nd, err := ds.Read(ctx)
	if err != nil {
		t.Fatalf("couldn't read dataset: %v", err)
	}
	want := []byte{0, 1, 2, 10, 11, 12}
	if !bytes.Equal(nd.Data, want) {
		t.Errorf("read %v, want %v", nd.Data, want)
	}
}

func TestLegacyCompressionTypeAndMissingBlocks(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore()
	defer store.Close()

	seed(t, store, "ds/attributes.json", []byte(`{
		"dimensions": [4],
		"blockSize": [2],
		"dataType": "uint16",
		"compressionType": "raw"
	}`))
	var payload bytes.Buffer
	binary.Write(&payload, binary.BigEndian, []uint16{100, 200})
	seed(t, store, "ds/1", makeBlock(t, []int64{2}, payload.Bytes(), "raw"))
	// block 0 left unwritten

	ds, err := OpenDataset(ctx, store, "ds")
	if err != nil {
		t.Fatalf("couldn't open dataset: %v", err)
	}
	nd, err := ds.Read(ctx)
	if err != nil {
		t.Fatalf("couldn't read dataset: %v", err)
	}
	got := nd.Float64s()
	want := []float64{0, 0, 100, 200}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("element %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestOpenDatasetErrors(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore()
	defer store.Close()

	if _, err := OpenDataset(ctx, store, "absent"); !msread.IsSchemaError(err) {
		t.Errorf("missing attributes should be a schema error, got %v", err)
	}

	seed(t, store, "nodims/attributes.json", []byte(`{"dataType": "uint8"}`))
	if _, err := OpenDataset(ctx, store, "nodims"); !msread.IsSchemaError(err) {
		t.Errorf("missing dimensions should be a schema error, got %v", err)
	}

	seed(t, store, "badcomp/attributes.json", []byte(`{
		"dimensions": [2],
		"blockSize": [2],
		"dataType": "uint8",
		"compression": {"type": "lz77"}
	}`))
	if _, err := OpenDataset(ctx, store, "badcomp"); !msread.IsSchemaError(err) {
		t.Errorf("unknown compression should be a schema error at open time, got %v", err)
	}

	seed(t, store, "badtype/attributes.json", []byte(`{
		"dimensions": [2],
		"blockSize": [2],
		"dataType": "quaternion"
	}`))
	if _, err := OpenDataset(ctx, store, "badtype"); !msread.IsSchemaError(err) {
		t.Errorf("unknown dataType should be a schema error, got %v", err)
	}
}

func TestObjectBlockRejected(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore()
	defer store.Close()

	seed(t, store, "ds/attributes.json", []byte(`{
		"dimensions": [2],
		"blockSize": [2],
		"dataType": "uint8",
		"compression": {"type": "raw"}
	}`))
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint16(blockModeObject))
	binary.Write(&buf, binary.BigEndian, uint16(1))
	binary.Write(&buf, binary.BigEndian, uint32(2))
	seed(t, store, "ds/0", buf.Bytes())

	ds, err := OpenDataset(ctx, store, "ds")
	if err != nil {
		t.Fatalf("couldn't open dataset: %v", err)
	}
	if _, err := ds.Read(ctx); !msread.IsSchemaError(err) {
		t.Errorf("object block should be a schema error, got %v", err)
	}
}

func TestGroupAttrsPassThrough(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore()
	defer store.Close()

	seed(t, store, "g/attributes.json", []byte(`{"axes": ["x", "y", "z"], "note": "column-major"}`))

	g, err := OpenGroup(ctx, store, "g")
	if err != nil {
		t.Fatalf("couldn't open group: %v", err)
	}
	axes, ok := g.Attrs()["axes"].([]interface{})
	if !ok || len(axes) != 3 || axes[0] != "x" {
		t.Errorf("attribute map should come through unmodified, got %v", g.Attrs())
	}
}

func TestBlockKey(t *testing.T) {
	if key := BlockKey([]int64{1, 0, 2}); key != "1/0/2" {
		t.Errorf("bad block key: %q", key)
	}
	if key := BlockKey([]int64{7}); key != "7" {
		t.Errorf("bad block key: %q", key)
	}
}
