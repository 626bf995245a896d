package n5

import (
	"bytes"
	"compress/bzip2"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strconv"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/sync/errgroup"

	"github.com/clbarnes/multiscale-read/msread"
	"github.com/clbarnes/multiscale-read/storage"
)

// N5 block modes.  Object blocks hold serialized objects rather than an
// element grid and cannot be mapped onto an array.
const (
	blockModeDefault   = 0
	blockModeVarlength = 1
	blockModeObject    = 2
)

// BlockKey generates the store key suffix for a block from its grid indices
// in declared (column-major) dimension order, e.g., [1, 0, 2] gives "1/0/2".
func BlockKey(indices []int64) string {
	key := make([]byte, 0, 2*len(indices))
	for i, idx := range indices {
		if i > 0 {
			key = append(key, '/')
		}
		key = strconv.AppendInt(key, idx, 10)
	}
	return string(key)
}

// Read materializes the full dataset row-major.  Blocks are fetched and
// decoded concurrently; blocks absent from the store stay zero.
func (d *Dataset) Read(ctx context.Context) (*msread.Ndarray, error) {
	timedLog := msread.NewTimeLog()
	out := msread.NewNdarray(d.Shape(), d.dtype, binary.BigEndian)

	ndim := len(d.meta.Dimensions)
	grid := make([]int64, ndim)
	for i := range grid {
		grid[i] = (d.meta.Dimensions[i] + d.meta.BlockSize[i] - 1) / d.meta.BlockSize[i]
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	idx := make([]int64, ndim)
	for {
		blockIdx := append([]int64(nil), idx...)
		g.Go(func() error {
			return d.readBlock(ctx, blockIdx, out)
		})
		if !increment(idx, grid) {
			break
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	timedLog.Infof("Read %s", d)
	return out, nil
}

// readBlock fetches one block and copies its clipped extent into the
// row-major output buffer.  Concurrent calls write disjoint element ranges.
func (d *Dataset) readBlock(ctx context.Context, idx []int64, out *msread.Ndarray) error {
	key := storage.Join(d.path, BlockKey(idx))
	data, err := d.store.ReadAll(ctx, key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil // unwritten blocks read as zero
	}
	if err != nil {
		return err
	}

	ndim := len(d.meta.Dimensions)
	if len(data) < 4+4*ndim {
		return msread.SchemaErrorf("block %q truncated at %d bytes", key, len(data))
	}
	mode := binary.BigEndian.Uint16(data)
	blockNdim := int(binary.BigEndian.Uint16(data[2:]))
	if blockNdim != ndim {
		return msread.SchemaErrorf("block %q declares %d dimensions, dataset has %d", key, blockNdim, ndim)
	}
	blockDims := make([]int64, ndim)
	off := 4
	for i := range blockDims {
		blockDims[i] = int64(binary.BigEndian.Uint32(data[off:]))
		off += 4
	}
	switch mode {
	case blockModeDefault:
	case blockModeVarlength:
		off += 4 // stored element count, implied by the dims for grid blocks
	case blockModeObject:
		return msread.SchemaErrorf("block %q holds serialized objects, not array elements", key)
	default:
		return msread.SchemaErrorf("block %q has unknown mode %d", key, mode)
	}
	if off > len(data) {
		return msread.SchemaErrorf("block %q truncated at %d bytes", key, len(data))
	}

	payload, err := d.decompress(data[off:])
	if err != nil {
		return fmt.Errorf("block %q: %w", key, err)
	}

	elemSize := msread.DataTypeBytes(d.dtype)
	blockElems := int64(1)
	for _, b := range blockDims {
		blockElems *= b
	}
	if int64(len(payload)) < blockElems*elemSize {
		return msread.SchemaErrorf("block %q has %d payload bytes, expected %d", key, len(payload), blockElems*elemSize)
	}

	// clip against the dataset bounds, all in declared dimension order
	start := make([]int64, ndim)
	n := make([]int64, ndim)
	for i := range n {
		start[i] = idx[i] * d.meta.BlockSize[i]
		n[i] = blockDims[i]
		if rem := d.meta.Dimensions[i] - start[i]; rem < n[i] {
			n[i] = rem
		}
		if n[i] <= 0 {
			return nil
		}
	}

	// Block payload has declared dimension 0 fastest, so contiguous runs
	// along dimension 0 stay contiguous in the row-major output, whose
	// fastest axis is the same dimension after reversal.
	srcStride := make([]int64, ndim)
	s := int64(1)
	for i := range srcStride {
		srcStride[i] = s
		s *= blockDims[i]
	}
	dstStride := make([]int64, ndim) // indexed by declared dimension
	s = 1
	shape := out.Shape
	for i := 0; i < ndim; i++ {
		dstStride[i] = s
		s *= shape[ndim-1-i]
	}

	run := n[0] * elemSize
	pos := make([]int64, ndim)
	for {
		var srcOff, dstOff int64
		for i := 1; i < ndim; i++ {
			srcOff += pos[i] * srcStride[i]
			dstOff += (start[i] + pos[i]) * dstStride[i]
		}
		dstOff += start[0]
		copy(out.Data[dstOff*elemSize:dstOff*elemSize+run], payload[srcOff*elemSize:srcOff*elemSize+run])

		dim := 1
		for ; dim < ndim; dim++ {
			pos[dim]++
			if pos[dim] < n[dim] {
				break
			}
			pos[dim] = 0
		}
		if dim == ndim {
			break
		}
	}
	return nil
}

func (d *Dataset) decompress(data []byte) ([]byte, error) {
	switch d.meta.Codec() {
	case "raw":
		return data, nil
	case "gzip":
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	case "zstd":
		zr, err := zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		return io.ReadAll(zr.IOReadCloser())
	case "bzip2":
		return io.ReadAll(bzip2.NewReader(bytes.NewReader(data)))
	}
	// Validate() rejects anything else at open time
	return nil, msread.SchemaErrorf("unsupported N5 compression %q", d.meta.Codec())
}

// increment advances a mixed-radix counter with the last digit fastest,
// returning false once the counter wraps to all zeros.
func increment(idx, limit []int64) bool {
	for d := len(idx) - 1; d >= 0; d-- {
		idx[d]++
		if idx[d] < limit[d] {
			return true
		}
		idx[d] = 0
	}
	return false
}
