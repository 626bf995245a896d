package zarr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"runtime"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/sync/errgroup"

	"github.com/clbarnes/multiscale-read/msread"
	"github.com/clbarnes/multiscale-read/storage"
)

// GridShape returns the number of chunks along each dimension: for each
// dimension i the grid extent is ceil(shape[i] / chunks[i]).
func GridShape(shape, chunks []int64) []int64 {
	grid := make([]int64, len(shape))
	for i := range shape {
		grid[i] = (shape[i] + chunks[i] - 1) / chunks[i]
	}
	return grid
}

// ChunkKey generates the store key suffix for a chunk given its grid
// indices, e.g., indices [1, 4] with separator "." give "1.4".  Scalar
// (0-dimensional) arrays store their single chunk under "0".
func ChunkKey(indices []int64, separator string) string {
	if len(indices) == 0 {
		return "0"
	}
	parts := make([]string, len(indices))
	for i, idx := range indices {
		parts[i] = strconv.FormatInt(idx, 10)
	}
	return strings.Join(parts, separator)
}

// Read materializes the full array.  Chunks are fetched and decoded
// concurrently; chunks absent from the store take the fill value.  The
// returned buffer is row-major regardless of the chunks' internal layout.
func (a *Array) Read(ctx context.Context) (*msread.Ndarray, error) {
	timedLog := msread.NewTimeLog()
	out := msread.NewNdarray(a.meta.Shape, a.dtype, a.order)
	if err := a.applyFill(out); err != nil {
		return nil, err
	}

	grid := GridShape(a.meta.Shape, a.meta.Chunks)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	idx := make([]int64, len(grid))
	for {
		chunkIdx := append([]int64(nil), idx...)
		g.Go(func() error {
			return a.readChunk(ctx, chunkIdx, out)
		})
		if !increment(idx, grid) {
			break
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	timedLog.Infof("Read %s", a)
	return out, nil
}

// readChunk fetches one chunk and copies its clipped extent into the output
// buffer.  Concurrent calls write disjoint element ranges.
func (a *Array) readChunk(ctx context.Context, idx []int64, out *msread.Ndarray) error {
	key := storage.Join(a.path, ChunkKey(idx, a.meta.Separator()))
	data, err := a.store.ReadAll(ctx, key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil // fill value already applied
	}
	if err != nil {
		return err
	}
	raw, err := a.decompress(data)
	if err != nil {
		return fmt.Errorf("chunk %q: %w", key, err)
	}

	elemSize := msread.DataTypeBytes(a.dtype)
	chunkElems := int64(1)
	for _, c := range a.meta.Chunks {
		chunkElems *= c
	}
	if int64(len(raw)) < chunkElems*elemSize {
		return msread.SchemaErrorf("chunk %q has %d bytes, expected %d", key, len(raw), chunkElems*elemSize)
	}

	ndim := len(a.meta.Shape)
	if ndim == 0 {
		copy(out.Data, raw[:elemSize])
		return nil
	}

	// clip the chunk against the array bounds
	start := make([]int64, ndim)
	n := make([]int64, ndim)
	for i := range n {
		start[i] = idx[i] * a.meta.Chunks[i]
		n[i] = a.meta.Chunks[i]
		if rem := a.meta.Shape[i] - start[i]; rem < n[i] {
			n[i] = rem
		}
		if n[i] <= 0 {
			return nil
		}
	}

	outStride := rowMajorStrides(a.meta.Shape)
	if a.meta.Order == "C" {
		// contiguous runs along the last dimension
		chunkStride := rowMajorStrides(a.meta.Chunks)
		run := n[ndim-1] * elemSize
		pos := make([]int64, ndim)
		for {
			var srcOff, dstOff int64
			for i := 0; i < ndim; i++ {
				srcOff += pos[i] * chunkStride[i]
				dstOff += (start[i] + pos[i]) * outStride[i]
			}
			copy(out.Data[dstOff*elemSize:dstOff*elemSize+run], raw[srcOff*elemSize:srcOff*elemSize+run])
			if !incrementPartial(pos, n, ndim-1) {
				break
			}
		}
		return nil
	}

	// "F" chunks are transposed element by element
	chunkStride := colMajorStrides(a.meta.Chunks)
	pos := make([]int64, ndim)
	for {
		var srcOff, dstOff int64
		for i := 0; i < ndim; i++ {
			srcOff += pos[i] * chunkStride[i]
			dstOff += (start[i] + pos[i]) * outStride[i]
		}
		copy(out.Data[dstOff*elemSize:(dstOff+1)*elemSize], raw[srcOff*elemSize:(srcOff+1)*elemSize])
		if !incrementPartial(pos, n, ndim) {
			break
		}
	}
	return nil
}

func (a *Array) decompress(data []byte) ([]byte, error) {
	if a.meta.Compressor == nil {
		return data, nil
	}
	switch a.meta.Compressor.ID {
	case "zlib":
		r, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	case "gzip":
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	case "zstd":
		d, err := zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer d.Close()
		return io.ReadAll(d.IOReadCloser())
	}
	// Validate() rejects anything else at open time
	return nil, msread.SchemaErrorf("unsupported compressor %q", a.meta.Compressor.ID)
}

func (a *Array) applyFill(out *msread.Ndarray) error {
	switch v := a.meta.FillValue.(type) {
	case nil:
		return nil
	case float64:
		out.Fill(v)
	case bool:
		if v {
			out.Fill(1)
		}
	case string:
		if a.dtype != msread.T_float32 && a.dtype != msread.T_float64 {
			return msread.SchemaErrorf("fill value %q invalid for %s array", v, a.dtype)
		}
		switch v {
		case "NaN":
			out.Fill(math.NaN())
		case "Infinity":
			out.Fill(math.Inf(1))
		case "-Infinity":
			out.Fill(math.Inf(-1))
		default:
			return msread.SchemaErrorf("unsupported fill value %q", v)
		}
	default:
		return msread.SchemaErrorf("unsupported fill value %v (%T)", v, v)
	}
	return nil
}

func rowMajorStrides(shape []int64) []int64 {
	strides := make([]int64, len(shape))
	s := int64(1)
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = s
		s *= shape[i]
	}
	return strides
}

func colMajorStrides(shape []int64) []int64 {
	strides := make([]int64, len(shape))
	s := int64(1)
	for i := range shape {
		strides[i] = s
		s *= shape[i]
	}
	return strides
}

// increment advances a mixed-radix counter with the last digit fastest,
// returning false once the counter wraps to all zeros.
func increment(idx, limit []int64) bool {
	return incrementPartial(idx, limit, len(idx))
}

// incrementPartial is increment restricted to the first ndigits digits.
func incrementPartial(idx, limit []int64, ndigits int) bool {
	for d := ndigits - 1; d >= 0; d-- {
		idx[d]++
		if idx[d] < limit[d] {
			return true
		}
		idx[d] = 0
	}
	return false
}
