package wire

import (
	"bufio"
	"errors"
	"io"

	"github.com/tosca-iot/tosca-go/pkg/value"
)

// ChunkReader yields the chunks of a stream response in sequence order.
// Next returns io.EOF after the chunk marked Last.
type ChunkReader interface {
	Next() (value.Chunk, error)
	Close() error
}

// NewChunkReader splits r into chunks of at most value.MaxPayloadSize bytes.
// The final chunk is marked Last; an empty r yields a single empty last chunk.
// If r is an io.Closer it is closed by Close.
func NewChunkReader(r io.Reader) ChunkReader {
	return &readerChunks{src: r, br: bufio.NewReaderSize(r, value.MaxPayloadSize)}
}

type readerChunks struct {
	src  io.Reader
	br   *bufio.Reader
	seq  uint32
	done bool
}

func (c *readerChunks) Next() (value.Chunk, error) {
	if c.done {
		return value.Chunk{}, io.EOF
	}
	buf := make([]byte, value.MaxPayloadSize)
	n, err := io.ReadFull(c.br, buf)
	last := false
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		last = true
	case err != nil:
		return value.Chunk{}, err
	default:
		if _, perr := c.br.Peek(1); errors.Is(perr, io.EOF) {
			last = true
		}
	}
	chunk := value.Chunk{Seq: c.seq, Data: buf[:n], Last: last}
	c.seq++
	c.done = last
	return chunk, nil
}

func (c *readerChunks) Close() error {
	c.done = true
	if closer, ok := c.src.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// ReadAll drains a ChunkReader and concatenates the chunk data. It checks that
// sequence numbers are contiguous from zero.
func ReadAll(r ChunkReader) ([]byte, error) {
	defer r.Close()
	var out []byte
	var want uint32
	for {
		c, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		if c.Seq != want {
			return out, ErrChunkSequence
		}
		want++
		out = append(out, c.Data...)
		if c.Last {
			return out, nil
		}
	}
}

// ErrChunkSequence is returned when stream chunks arrive out of order.
var ErrChunkSequence = errors.New("stream chunk out of sequence")
