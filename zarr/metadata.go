package zarr

import "github.com/clbarnes/multiscale-read/msread"

// Store keys for the zarr v2 metadata documents.
const (
	// ArrayMetaKey stores essential array configuration for a path.
	ArrayMetaKey = ".zarray"
	// GroupKey marks a path as a group.
	GroupKey = ".zgroup"
	// AttrsKey stores userland metadata for an array or group.
	AttrsKey = ".zattrs"
)

// Attributes holds userland metadata from a ".zattrs" document.
type Attributes map[string]interface{}

// ArrayMeta is the ".zarray" configuration metadata required to interpret
// the stored chunks of an array.
type ArrayMeta struct {
	// ZarrFormat is the storage specification version, 2 for this package.
	ZarrFormat int `json:"zarr_format"`
	// Shape is the length of each dimension of the array.
	Shape []int64 `json:"shape"`
	// Chunks is the length of each dimension of a chunk.  All chunks within
	// a zarr array have the same nominal shape.
	Chunks []int64 `json:"chunks"`
	// Dtype is a numpy-style data type string, e.g., "<f4".
	Dtype string `json:"dtype"`
	// Compressor identifies the primary compression codec, or is null if
	// chunks are stored raw.
	Compressor *CompressorConfig `json:"compressor"`
	// FillValue is the default value for chunks absent from the store, or
	// null for zero fill.  Float fills may be the strings "NaN", "Infinity"
	// or "-Infinity".
	FillValue interface{} `json:"fill_value"`
	// Order is "C" (row-major) or "F" (column-major) byte layout within
	// each chunk.
	Order string `json:"order"`
	// Filters are additional codec configurations; this package rejects
	// arrays using them.
	Filters []FilterConfig `json:"filters"`
	// DimensionSeparator is "." or "/" between chunk grid indices in chunk
	// keys.  Unset means ".".
	DimensionSeparator string `json:"dimension_separator"`
}

// CompressorConfig identifies a compression codec and its parameters.
type CompressorConfig struct {
	ID    string `json:"id"`
	Level int    `json:"level,omitempty"`
}

// FilterConfig identifies a filter codec.
type FilterConfig struct {
	ID string `json:"id"`
}

// Validate checks the internal consistency of array metadata.
func (m *ArrayMeta) Validate() error {
	if m.ZarrFormat != 2 {
		return msread.SchemaErrorf("unsupported zarr format %d, only v2 is readable", m.ZarrFormat)
	}
	if len(m.Shape) != len(m.Chunks) {
		return msread.SchemaErrorf("shape has %d dimensions but chunks has %d", len(m.Shape), len(m.Chunks))
	}
	for _, c := range m.Chunks {
		if c < 1 {
			return msread.SchemaErrorf("non-positive chunk extent %d", c)
		}
	}
	for _, s := range m.Shape {
		if s < 0 {
			return msread.SchemaErrorf("negative shape extent %d", s)
		}
	}
	switch m.Order {
	case "C", "F":
	default:
		return msread.SchemaErrorf("chunk layout order must be \"C\" or \"F\", got %q", m.Order)
	}
	if m.Compressor != nil {
		switch m.Compressor.ID {
		case "zlib", "gzip", "zstd":
		default:
			return msread.SchemaErrorf("unsupported compressor %q", m.Compressor.ID)
		}
	}
	if len(m.Filters) > 0 {
		return msread.SchemaErrorf("filter codecs are not supported (found %q)", m.Filters[0].ID)
	}
	switch m.DimensionSeparator {
	case "", ".", "/":
	default:
		return msread.SchemaErrorf("dimension separator must be \".\" or \"/\", got %q", m.DimensionSeparator)
	}
	return nil
}

// Separator returns the chunk key separator, defaulting to ".".
func (m *ArrayMeta) Separator() string {
	if m.DimensionSeparator == "" {
		return "."
	}
	return m.DimensionSeparator
}
