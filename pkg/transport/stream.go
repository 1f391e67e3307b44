package transport

import (
	"errors"
	"fmt"
	"io"

	"github.com/tosca-iot/tosca-go/pkg/value"
	"github.com/tosca-iot/tosca-go/pkg/wire"
)

// ErrBadChunk is returned for a stream frame that is not a chunk value.
var ErrBadChunk = errors.New("bad stream chunk")

// writeStream sends a stream response: the encoded response header, then
// one frame per chunk. The chunk source is always closed.
func writeStream(fw *FrameWriter, resp *wire.Response) error {
	src := resp.Stream
	defer src.Close()

	header, err := wire.EncodeResponse(resp)
	if err != nil {
		return err
	}
	if err := fw.WriteFrame(header); err != nil {
		return err
	}

	for {
		c, err := src.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		v, err := value.NewChunk(c)
		if err != nil {
			return err
		}
		data, err := value.Marshal(v)
		if err != nil {
			return err
		}
		if err := fw.WriteFrame(data); err != nil {
			return err
		}
		if c.Last {
			return nil
		}
	}
}

// StreamReader yields the chunks of a stream response body. It implements
// wire.ChunkReader.
type StreamReader struct {
	body io.Closer
	fr   *FrameReader
	next uint32
	done bool
}

var _ wire.ChunkReader = (*StreamReader)(nil)

// NewStreamReader reads chunk frames from body. The response header frame
// must already have been consumed.
func NewStreamReader(body io.ReadCloser, maxFrameSize uint32) *StreamReader {
	return &StreamReader{body: body, fr: NewFrameReaderWithMaxSize(body, maxFrameSize)}
}

// Next returns the next chunk, or io.EOF after the last one. A stream that
// ends without a chunk marked Last yields ErrFrameTruncated.
func (s *StreamReader) Next() (value.Chunk, error) {
	if s.done {
		return value.Chunk{}, io.EOF
	}
	data, err := s.fr.ReadFrame()
	if errors.Is(err, io.EOF) {
		s.done = true
		return value.Chunk{}, ErrFrameTruncated
	}
	if err != nil {
		return value.Chunk{}, err
	}

	v, err := value.Unmarshal(data)
	if err != nil {
		return value.Chunk{}, fmt.Errorf("%w: %v", ErrBadChunk, err)
	}
	c, ok := v.Chunk()
	if !ok {
		return value.Chunk{}, fmt.Errorf("%w: got %s", ErrBadChunk, v.Kind())
	}
	if c.Seq != s.next {
		return value.Chunk{}, fmt.Errorf("%w: seq %d, want %d", wire.ErrChunkSequence, c.Seq, s.next)
	}
	s.next++
	s.done = c.Last
	return c, nil
}

// Close releases the response body.
func (s *StreamReader) Close() error {
	s.done = true
	return s.body.Close()
}
