// Package bytestream implements the byte-stream engine: entries are
// serialized and appended to size-bucketed, fixed-chunk logs kept on an
// external Stream (in-memory or file-backed). It is the one engine that
// can fail mid-operation, because it performs real I/O and
// (de)serialization.
package bytestream

import "io"

// Whence mirrors io.Seek's origin constants so callers of Stream.Seek don't
// need to import "io" just for these three values.
type Whence = int

const (
	SeekStart   Whence = io.SeekStart
	SeekCurrent Whence = io.SeekCurrent
	SeekEnd     Whence = io.SeekEnd
)

// Stream is a byte-addressable, random-access byte sequence: readable,
// writable, seekable, resizable, and cheaply cloneable into a second handle
// that aliases the same underlying bytes. The byte-stream engine never
// assumes a particular backing medium; MemStream and FileStream are the two
// implementations provided.
type Stream interface {
	io.Reader
	io.Writer
	io.Seeker

	// Truncate resizes the stream to exactly n bytes, zero-filling any
	// newly exposed region when growing.
	Truncate(n int64) error

	// Len returns the current size of the stream in bytes.
	Len() (int64, error)

	// Clone returns a new handle aliasing the same underlying bytes, with
	// its own independent seek position.
	Clone() Stream

	// Close releases any resources held by the stream (e.g. an open file
	// descriptor). MemStream's Close is a no-op.
	Close() error
}

// StreamFactory spawns a fresh Stream on demand. The byte-stream engine
// calls Create exactly once per size class, the first time that class is
// used, and keeps the returned Stream for the block's lifetime.
type StreamFactory interface {
	Create() (Stream, error)
}
