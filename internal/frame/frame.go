// Package frame implements the line I/O and framing utilities: building
// checksummed command frames for the main and tool channels, reading
// delimited lines out of a bounded receive buffer, validating tool replies,
// and parsing structured key:value status replies.
package frame

import (
	"errors"
	"fmt"
)

// MaxFrameLength is the hard cap on a fully framed line, including its
// terminal newline.
const MaxFrameLength = 256

// ErrFrameTooLong is returned when an assembled frame would not fit in
// MaxFrameLength bytes. It is a generator bug, not a recoverable condition.
var ErrFrameTooLong = errors.New("frame: assembled line exceeds 256 bytes")

func xorAll(b []byte) byte {
	var c byte
	for _, x := range b {
		c ^= x
	}
	return c
}

// BuildMain frames a main-channel command with a line number:
//
//	CMD N{lineno}*{checksum}\n
//
// where checksum is the XOR of every byte of "CMD N{lineno}".
func BuildMain(cmd string, lineno uint32) ([]byte, error) {
	prefix := fmt.Sprintf("%s N%d", cmd, lineno)
	checksum := xorAll([]byte(prefix))
	line := fmt.Sprintf("%s*%d\n", prefix, checksum)
	if len(line) > MaxFrameLength {
		return nil, ErrFrameTooLong
	}
	return []byte(line), nil
}

// BuildTool frames a tool-channel payload:
//
//	1 {payload} *{checksum}\n
//
// The checksum XOR covers "1 " + payload + the space before "*", but not the
// "*" or the checksum digits themselves.
func BuildTool(payload string) ([]byte, error) {
	body := "1 " + payload + " "
	checksum := xorAll([]byte(body))
	line := fmt.Sprintf("%s*%d\n", body, checksum)
	if len(line) > MaxFrameLength {
		return nil, ErrFrameTooLong
	}
	return []byte(line), nil
}
