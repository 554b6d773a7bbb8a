package bytestream

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// chunkHeaderSize is the byte size of the fixed chunk header: one flags
// byte, then the original (pre-compression) payload length and the stored
// payload length, each a uint32. The header lets a reader recover exactly
// how many meaningful bytes follow before the zero padding starts.
const chunkHeaderSize = 1 + 4 + 4

const flagCompressed = byte(1)

// ErrChunkTooLarge is returned when a serialized entry (plus header)
// cannot fit in the size class its length rounds up to, which should never
// happen given how classFor is computed but is checked defensively since
// this is the one engine that performs real I/O against caller-controlled
// byte layouts.
var ErrChunkTooLarge = errors.New("bytestream: encoded chunk exceeds its size class")

// ErrCorruptChunk is returned when a chunk's header is internally
// inconsistent (e.g. a declared payload length larger than the class
// itself), which indicates the stream was corrupted or truncated.
var ErrCorruptChunk = errors.New("bytestream: corrupt chunk header")

// classFor returns the power-of-two exponent i such that 2^i is the
// smallest power of two greater than or equal to n.
func classFor(n int) int {
	class := 0
	size := 1

	for size < n {
		size <<= 1
		class++
	}

	return class
}

// encodeChunk frames payload (optionally LZ4-compressed) into exactly
// classSize bytes, zero-padded. useCompression controls whether Compress is
// attempted; compression is skipped when it does not shrink the payload.
func encodeChunk(payload []byte, classSize int64, useCompression bool) ([]byte, error) {
	stored := payload
	flags := byte(0)

	if useCompression {
		compressed, err := Compress(payload)
		if err == nil && compressed != nil && len(compressed)+chunkHeaderSize < len(payload)+chunkHeaderSize {
			stored = compressed
			flags = flagCompressed
		}
	}

	if int64(len(stored)+chunkHeaderSize) > classSize {
		return nil, ErrChunkTooLarge
	}

	out := make([]byte, classSize)
	out[0] = flags
	binary.LittleEndian.PutUint32(out[1:5], uint32(len(payload)))
	binary.LittleEndian.PutUint32(out[5:9], uint32(len(stored)))
	copy(out[chunkHeaderSize:], stored)

	return out, nil
}

// decodeChunk reverses encodeChunk, returning the original (possibly
// decompressed) payload.
func decodeChunk(chunk []byte) ([]byte, error) {
	if len(chunk) < chunkHeaderSize {
		return nil, ErrCorruptChunk
	}

	flags := chunk[0]
	origLen := binary.LittleEndian.Uint32(chunk[1:5])
	storedLen := binary.LittleEndian.Uint32(chunk[5:9])

	if int64(storedLen)+chunkHeaderSize > int64(len(chunk)) {
		return nil, ErrCorruptChunk
	}

	stored := chunk[chunkHeaderSize : chunkHeaderSize+int(storedLen)]

	if flags&flagCompressed == 0 {
		out := make([]byte, len(stored))
		copy(out, stored)

		return out, nil
	}

	decompressed, err := Decompress(stored, int(origLen))
	if err != nil {
		return nil, fmt.Errorf("bytestream: decode chunk: %w", err)
	}

	return decompressed, nil
}
