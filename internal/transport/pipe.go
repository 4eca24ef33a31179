// internal/transport/pipe.go
// A plain file-backed controller channel, for development against a named
// pipe, a pty, or a serial device node instead of real USB hardware.

package transport

import (
	"fmt"
	"os"
)

// Pipe wraps an already-open file (named pipe, serial tty, pty) as a
// player.Transport.
type Pipe struct {
	f *os.File
}

// OpenPipe opens path for reading and writing, e.g. a serial device node
// or a named pipe created by a simulator.
func OpenPipe(path string) (*Pipe, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("transport: open pipe %q: %w", path, err)
	}
	return &Pipe{f: f}, nil
}

func (p *Pipe) Write(b []byte) (int, error) {
	n, err := p.f.Write(b)
	if err != nil {
		return n, fmt.Errorf("transport: pipe write: %w", err)
	}
	return n, nil
}

func (p *Pipe) Read(b []byte) (int, error) {
	n, err := p.f.Read(b)
	if err != nil {
		return n, err
	}
	return n, nil
}

func (p *Pipe) Close() error {
	return p.f.Close()
}
