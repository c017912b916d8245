package tts

import "io"

// httpStream wraps an HTTP response body as AudioStream.
type httpStream struct {
	body   io.ReadCloser
	format AudioFormat
	buf    [4096]byte

	// PCM16 samples are two bytes; an odd trailing byte from one body read
	// is carried into the next chunk so sample alignment survives arbitrary
	// network chunking.
	carry    byte
	hasCarry bool
}

// Read returns the next audio chunk. Chunks are always an even number of
// bytes.
func (s *httpStream) Read() ([]byte, error) {
	off := 0
	if s.hasCarry {
		s.buf[0] = s.carry
		s.hasCarry = false
		off = 1
	}

	n, err := s.body.Read(s.buf[off:])
	n += off
	if n%2 == 1 {
		n--
		s.carry = s.buf[n]
		s.hasCarry = true
	}

	if n > 0 {
		chunk := make([]byte, n)
		copy(chunk, s.buf[:n])
		return chunk, nil
	}
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte{}, nil
}

// Close stops the stream.
func (s *httpStream) Close() error {
	return s.body.Close()
}

// Format returns the audio format.
func (s *httpStream) Format() AudioFormat {
	return s.format
}

// bufferStream serves a complete audio buffer as a stream.
type bufferStream struct {
	data   []byte
	format AudioFormat
	pos    int
}

const bufferChunkSize = 4096

// Read returns the next audio chunk.
func (s *bufferStream) Read() ([]byte, error) {
	if s.pos >= len(s.data) {
		return nil, nil
	}
	end := s.pos + bufferChunkSize
	if end > len(s.data) {
		end = len(s.data)
	}
	chunk := s.data[s.pos:end]
	s.pos = end
	return chunk, nil
}

// Close stops the stream.
func (s *bufferStream) Close() error {
	return nil
}

// Format returns the audio format.
func (s *bufferStream) Format() AudioFormat {
	return s.format
}
