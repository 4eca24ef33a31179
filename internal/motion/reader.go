package motion

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// payloadReader reads the little-endian binary payload fields that follow
// an opcode byte, turning any short read into a wrapped I/O error.
type payloadReader struct {
	r io.Reader
}

func (p payloadReader) readByte() (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(p.r, b[:]); err != nil {
		return 0, fmt.Errorf("motion: short read on byte payload: %w", err)
	}
	return b[0], nil
}

func (p payloadReader) readFloat32() (float32, error) {
	var b [4]byte
	if _, err := io.ReadFull(p.r, b[:]); err != nil {
		return 0, fmt.Errorf("motion: short read on float payload: %w", err)
	}
	bits := binary.LittleEndian.Uint32(b[:])
	return math.Float32frombits(bits), nil
}

func (p payloadReader) readBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if n == 0 {
		return buf, nil
	}
	if _, err := io.ReadFull(p.r, buf); err != nil {
		return nil, fmt.Errorf("motion: short read on raw payload: %w", err)
	}
	return buf, nil
}
