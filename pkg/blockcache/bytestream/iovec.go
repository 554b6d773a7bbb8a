package bytestream

import (
	"fmt"
	"io"
)

// ioVec is an append-only vector of fixed-size chunks backed by a Stream:
// one per power-of-two size class. Index i in the chunk vector occupies
// bytes [i*classSize, (i+1)*classSize) of the stream. Removal is always a
// swap-remove against the last chunk, named after the original design's
// IOVec so the correspondence with spec.md §4.4 stays legible.
type ioVec struct {
	stream    Stream
	classSize int64
	count     int64
}

func newIOVec(stream Stream, classSize int64) *ioVec {
	return &ioVec{stream: stream, classSize: classSize}
}

// Len returns the number of chunks currently stored.
func (v *ioVec) Len() int64 { return v.count }

// Append writes chunk (already framed to exactly classSize bytes) at the
// end of the log.
func (v *ioVec) Append(chunk []byte) error {
	if int64(len(chunk)) != v.classSize {
		return ErrChunkTooLarge
	}

	if _, err := v.stream.Seek(v.count*v.classSize, SeekStart); err != nil {
		return fmt.Errorf("bytestream: seek append: %w", err)
	}

	if _, err := v.stream.Write(chunk); err != nil {
		return fmt.Errorf("bytestream: write chunk: %w", err)
	}

	v.count++

	return nil
}

// ReadAt reads the raw framed chunk at index i.
func (v *ioVec) ReadAt(i int64) ([]byte, error) {
	if i < 0 || i >= v.count {
		return nil, io.EOF
	}

	if _, err := v.stream.Seek(i*v.classSize, SeekStart); err != nil {
		return nil, fmt.Errorf("bytestream: seek read: %w", err)
	}

	buf := make([]byte, v.classSize)
	if _, err := io.ReadFull(v.stream, buf); err != nil {
		return nil, fmt.Errorf("bytestream: read chunk: %w", err)
	}

	return buf, nil
}

// SwapRemove moves the last chunk into slot i (unless i is already last)
// and truncates the log by one chunk, returning the chunk that occupied
// slot i before the move.
func (v *ioVec) SwapRemove(i int64) ([]byte, error) {
	if i < 0 || i >= v.count {
		return nil, io.EOF
	}

	removed, err := v.ReadAt(i)
	if err != nil {
		return nil, err
	}

	last := v.count - 1

	if i != last {
		lastChunk, err := v.ReadAt(last)
		if err != nil {
			return nil, err
		}

		if _, err := v.stream.Seek(i*v.classSize, SeekStart); err != nil {
			return nil, fmt.Errorf("bytestream: seek swap: %w", err)
		}

		if _, err := v.stream.Write(lastChunk); err != nil {
			return nil, fmt.Errorf("bytestream: write swap: %w", err)
		}
	}

	v.count--

	if err := v.stream.Truncate(v.count * v.classSize); err != nil {
		return nil, fmt.Errorf("bytestream: truncate: %w", err)
	}

	return removed, nil
}

// WriteAt overwrites the chunk at index i in place with chunk (already
// framed to exactly classSize bytes), without changing the log's length.
func (v *ioVec) WriteAt(i int64, chunk []byte) error {
	if i < 0 || i >= v.count {
		return io.EOF
	}

	if int64(len(chunk)) != v.classSize {
		return ErrChunkTooLarge
	}

	if _, err := v.stream.Seek(i*v.classSize, SeekStart); err != nil {
		return fmt.Errorf("bytestream: seek write: %w", err)
	}

	if _, err := v.stream.Write(chunk); err != nil {
		return fmt.Errorf("bytestream: write chunk: %w", err)
	}

	return nil
}

// Close releases the underlying stream.
func (v *ioVec) Close() error {
	return v.stream.Close()
}
