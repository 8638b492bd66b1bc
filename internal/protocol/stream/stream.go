// Package stream implements the relay's binary framing: big-endian fixed
// width integers of 1, 2 and 4 bytes, and strings and byte arrays prefixed
// with their length in one of those widths.
//
// Writers do not check that a length fits its prefix; a too long payload is
// written with a truncated prefix and the peer will misread it.
package stream

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"relay_chat/internal/errs"
)

type Reader struct {
	r io.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

func (s *Reader) ReadInt1() (int64, error) {
	return s.readInt(1)
}

func (s *Reader) ReadInt2() (int64, error) {
	return s.readInt(2)
}

func (s *Reader) ReadInt4() (int64, error) {
	return s.readInt(4)
}

func (s *Reader) ReadString1() (string, error) { return s.readString(1) }
func (s *Reader) ReadString2() (string, error) { return s.readString(2) }
func (s *Reader) ReadString4() (string, error) { return s.readString(4) }

func (s *Reader) ReadBytes1() ([]byte, error) { return s.readBytes(1) }
func (s *Reader) ReadBytes2() ([]byte, error) { return s.readBytes(2) }
func (s *Reader) ReadBytes4() ([]byte, error) { return s.readBytes(4) }

func (s *Reader) readInt(width int) (int64, error) {
	buf, err := s.read(width)
	if err != nil {
		return 0, err
	}
	var v int64
	for _, b := range buf {
		v = v<<8 | int64(b)
	}
	return v, nil
}

func (s *Reader) readString(width int) (string, error) {
	b, err := s.readBytes(width)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (s *Reader) readBytes(width int) ([]byte, error) {
	n, err := s.readInt(width)
	if err != nil {
		return nil, err
	}
	return s.readPayload(n)
}

// readPayload buffers at most what the source actually delivers, so a
// forged length prefix cannot force a large allocation up front.
func (s *Reader) readPayload(n int64) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, min(n, 512)))
	got, err := io.CopyN(buf, s.r, n)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return buf.Bytes(), fmt.Errorf("read %d of %d bytes: %w", got, n, errs.ErrShortRead)
		}
		return buf.Bytes(), err
	}
	return buf.Bytes(), nil
}

// read loops until n bytes arrived or the source is exhausted. A partial
// result is returned together with an ErrShortRead.
func (s *Reader) read(n int) ([]byte, error) {
	buf := make([]byte, n)
	got, err := io.ReadFull(s.r, buf)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return buf[:got], fmt.Errorf("read %d of %d bytes: %w", got, n, errs.ErrShortRead)
		}
		return buf[:got], err
	}
	return buf, nil
}

// Writer records the first write error and turns every later call into a
// no-op; check Err once after a sequence of writes.
type Writer struct {
	w   io.Writer
	err error
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (s *Writer) Err() error {
	return s.err
}

func (s *Writer) WriteInt1(v int64) { s.writeInt(v, 1) }
func (s *Writer) WriteInt2(v int64) { s.writeInt(v, 2) }
func (s *Writer) WriteInt4(v int64) { s.writeInt(v, 4) }

func (s *Writer) WriteString1(v string) { s.writeBytes([]byte(v), 1) }
func (s *Writer) WriteString2(v string) { s.writeBytes([]byte(v), 2) }
func (s *Writer) WriteString4(v string) { s.writeBytes([]byte(v), 4) }

func (s *Writer) WriteBytes1(v []byte) { s.writeBytes(v, 1) }
func (s *Writer) WriteBytes2(v []byte) { s.writeBytes(v, 2) }
func (s *Writer) WriteBytes4(v []byte) { s.writeBytes(v, 4) }

func (s *Writer) writeInt(v int64, width int) {
	buf := make([]byte, width)
	for i := width - 1; i >= 0; i-- {
		buf[i] = byte(v)
		v >>= 8
	}
	s.write(buf)
}

func (s *Writer) writeBytes(v []byte, width int) {
	s.writeInt(int64(len(v)), width)
	s.write(v)
}

func (s *Writer) write(b []byte) {
	if s.err != nil || len(b) == 0 {
		return
	}
	_, s.err = s.w.Write(b)
}
