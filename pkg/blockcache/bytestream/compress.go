package bytestream

import (
	"errors"
	"fmt"

	"github.com/pierrec/lz4/v4"
)

// ErrDecompressedSizeUnknown is returned by Decompress when the caller has
// not recorded how large the original payload was; LZ4 block mode carries
// no length of its own.
var ErrDecompressedSizeUnknown = errors.New("bytestream: decompressed size must be known to decompress")

// Compress LZ4-compresses an arbitrary byte payload, generalizing the
// uint32-slice-specific compression helper the rbtree allocator used
// (CompressUInt32Slice) to any chunk payload. A chunk's compressed form is
// only ever smaller than its declared class size when this beats raw
// storage; chunk.go decides whether to use it.
func Compress(data []byte) ([]byte, error) {
	bound := lz4.CompressBlockBound(len(data))
	out := make([]byte, bound)

	n, err := lz4.CompressBlock(data, out, nil)
	if err != nil {
		return nil, fmt.Errorf("bytestream: lz4 compress: %w", err)
	}

	if n == 0 {
		// Incompressible input: lz4.CompressBlock reports this by
		// returning 0 rather than an error.
		return nil, nil
	}

	return out[:n], nil
}

// Decompress reverses Compress. originalSize must be the exact length of
// the payload before compression (chunk.go stores it in the chunk header).
func Decompress(data []byte, originalSize int) ([]byte, error) {
	if originalSize < 0 {
		return nil, ErrDecompressedSizeUnknown
	}

	out := make([]byte, originalSize)

	n, err := lz4.UncompressBlock(data, out)
	if err != nil {
		return nil, fmt.Errorf("bytestream: lz4 decompress: %w", err)
	}

	return out[:n], nil
}
