package bytestream

import (
	"errors"
	"io"
	"sync"
)

// ErrNegativeSeek is returned when a Seek would move the position before
// the start of the stream.
var ErrNegativeSeek = errors.New("bytestream: negative seek position")

// memBuf is the data shared by every clone of a given MemStream.
type memBuf struct {
	mu   sync.Mutex
	data []byte
}

// MemStream is an in-memory Stream, the analogue of the original design's
// vector-backed stream. Clones share the same underlying buffer but track
// their own seek position independently, exactly as the Stream contract
// requires.
type MemStream struct {
	buf *memBuf
	pos int64
}

var _ Stream = (*MemStream)(nil)

// NewMemStream creates an empty in-memory stream.
func NewMemStream() *MemStream {
	return &MemStream{buf: &memBuf{}}
}

// MemStreamFactory is a StreamFactory that hands out independent MemStream
// instances, one per Create call.
type MemStreamFactory struct{}

var _ StreamFactory = MemStreamFactory{}

// Create implements StreamFactory.
func (MemStreamFactory) Create() (Stream, error) { return NewMemStream(), nil }

func (m *MemStream) Read(p []byte) (int, error) {
	m.buf.mu.Lock()
	defer m.buf.mu.Unlock()

	if m.pos >= int64(len(m.buf.data)) {
		return 0, io.EOF
	}

	n := copy(p, m.buf.data[m.pos:])
	m.pos += int64(n)

	return n, nil
}

func (m *MemStream) Write(p []byte) (int, error) {
	m.buf.mu.Lock()
	defer m.buf.mu.Unlock()

	end := m.pos + int64(len(p))
	if end > int64(len(m.buf.data)) {
		grown := make([]byte, end)
		copy(grown, m.buf.data)
		m.buf.data = grown
	}

	n := copy(m.buf.data[m.pos:end], p)
	m.pos += int64(n)

	return n, nil
}

func (m *MemStream) Seek(offset int64, whence int) (int64, error) {
	m.buf.mu.Lock()
	size := int64(len(m.buf.data))
	m.buf.mu.Unlock()

	var next int64

	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = m.pos + offset
	case io.SeekEnd:
		next = size + offset
	}

	if next < 0 {
		return 0, ErrNegativeSeek
	}

	m.pos = next

	return m.pos, nil
}

func (m *MemStream) Truncate(n int64) error {
	m.buf.mu.Lock()
	defer m.buf.mu.Unlock()

	if n < 0 {
		return ErrNegativeSeek
	}

	if n <= int64(len(m.buf.data)) {
		m.buf.data = m.buf.data[:n]

		return nil
	}

	grown := make([]byte, n)
	copy(grown, m.buf.data)
	m.buf.data = grown

	return nil
}

func (m *MemStream) Len() (int64, error) {
	m.buf.mu.Lock()
	defer m.buf.mu.Unlock()

	return int64(len(m.buf.data)), nil
}

func (m *MemStream) Clone() Stream {
	return &MemStream{buf: m.buf}
}

func (m *MemStream) Close() error { return nil }
