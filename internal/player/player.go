// Package player implements the controller dialogue reliability layer:
// line-numbered send, the sent/padding command queues, and retransmission
// on LN/ER LINE_MISMATCH/ER CHECKSUM_MISMATCH replies.
package player

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"motionstream/internal/frame"
	"motionstream/internal/queue"
)

// Transport is the capability the reliability layer needs from a
// controller channel: writing framed bytes out, and a raw byte source the
// Player's internal LineReader pulls replies from. A gousb bulk endpoint
// and a plain file-backed pipe both satisfy this without modification.
type Transport interface {
	io.Writer
	io.Reader
}

// Player ties C1 (framing), C2 (queues), and a Transport together,
// assigning line numbers, tracking sent-vs-buffered state, and
// retransmitting on protocol desync.
type Player struct {
	transport  Transport
	lineReader *frame.LineReader

	sent    queue.Queue
	padding queue.Queue

	nextLineno uint32
	generation uint32

	stats frame.Stats
}

// New builds a Player. recvBufferSize is forwarded to frame.NewLineReader;
// pass 0 to use frame.MinRecvBufferSize.
func New(t Transport, recvBufferSize int) *Player {
	return &Player{
		transport:  t,
		lineReader: frame.NewLineReader(recvBufferSize),
		nextLineno: 1,
	}
}

// Stats exposes framing diagnostics counters for a status API.
func (p *Player) Stats() frame.Snapshot { return p.stats.Snapshot() }

// SentLen and PaddingLen expose queue depths for diagnostics/status APIs.
func (p *Player) SentLen() int    { return p.sent.Len() }
func (p *Player) PaddingLen() int { return p.padding.Len() }

// Generation returns the current retransmit-generation token (0 means no
// retransmit is in flight).
func (p *Player) Generation() uint32 { return p.generation }

// Send frames cmd with the next line number and writes it to the
// transport. The frame is also appended to the sent queue so it can be
// retransmitted later. Send is all-or-nothing: either the full frame
// reaches the transport or an I/O error is returned and no state changes.
func (p *Player) Send(cmd string) (uint32, error) {
	lineno := p.nextLineno
	framed, err := frame.BuildMain(cmd, lineno)
	p.stats.RecordBuild(err)
	if err != nil {
		return 0, err
	}
	if _, err := p.transport.Write(framed); err != nil {
		return 0, fmt.Errorf("player: writing frame %d: %w", lineno, err)
	}
	p.sent.Append(framed, lineno)
	p.nextLineno++
	return lineno, nil
}

// SendTool frames payload for the tool channel and writes it directly to
// the transport, bypassing the sent/padding queues: tool replies are
// validated separately (frame.ValidateToolReply) and never retransmitted
// through the LN/ER dialogue.
func (p *Player) SendTool(payload string) error {
	framed, err := frame.BuildTool(payload)
	p.stats.RecordBuild(err)
	if err != nil {
		return err
	}
	if _, err := p.transport.Write(framed); err != nil {
		return fmt.Errorf("player: writing tool frame: %w", err)
	}
	return nil
}

// ReadAndHandle reads one line from the transport and dispatches it via
// HandleLine. It returns frame.Overflow's error unchanged if the line
// reader's buffer is exceeded.
func (p *Player) ReadAndHandle(passthrough func(line []byte)) error {
	res, line, err := p.lineReader.ReadLine(p.transport)
	if err != nil {
		if res == frame.Overflow {
			p.stats.RecordOverflow()
		}
		return err
	}
	if res == frame.NoData {
		return nil
	}
	return p.HandleLine(line, passthrough)
}

// HandleLine dispatches one controller reply line: LN, ER LINE_MISMATCH,
// ER CHECKSUM_MISMATCH, or anything else, which is handed to passthrough
// unmodified.
func (p *Player) HandleLine(line []byte, passthrough func(line []byte)) error {
	fields := strings.Fields(string(line))
	if len(fields) == 0 {
		return nil
	}

	switch fields[0] {
	case "LN":
		if len(fields) < 3 {
			if passthrough != nil {
				passthrough(line)
			}
			return nil
		}
		receivedLn, err1 := parseUint32(fields[1])
		queueDepth, err2 := strconv.Atoi(fields[2])
		if err1 != nil || err2 != nil {
			if passthrough != nil {
				passthrough(line)
			}
			return nil
		}
		p.handleLN(receivedLn, queueDepth)
		return nil

	case "ER":
		if len(fields) < 2 {
			if passthrough != nil {
				passthrough(line)
			}
			return nil
		}
		switch fields[1] {
		case "LINE_MISMATCH":
			if len(fields) < 4 {
				break
			}
			expected, err1 := parseUint32(fields[2])
			received, err2 := parseUint32(fields[3])
			if err1 != nil || err2 != nil {
				break
			}
			_, err := p.handleLineMismatch(expected, received)
			return err
		case "CHECKSUM_MISMATCH":
			if len(fields) < 3 {
				break
			}
			lineno, err := parseUint32(fields[2])
			if err != nil {
				break
			}
			_, retErr := p.handleChecksumMismatch(lineno)
			return retErr
		}
		if passthrough != nil {
			passthrough(line)
		}
		return nil

	default:
		if passthrough != nil {
			passthrough(line)
		}
		return nil
	}
}

// handleLN moves every item with lineno <= receivedLn from sent to
// padding, then truncates padding down to queueDepth, freeing dropped
// items (each item PopFront removes is discarded, so its buffer is left to
// the garbage collector and nothing leaks). Returns the logical in-flight
// count queueDepth + |sent|.
func (p *Player) handleLN(receivedLn uint32, queueDepth int) int {
	moved := p.sent.DropWhile(func(it *queue.Item) bool { return it.Lineno <= receivedLn })
	for _, it := range moved {
		p.padding.AppendItem(it)
	}

	for p.padding.Len() > queueDepth {
		p.padding.PopFront() // dropped item's buffer is unreferenced and freed by the GC
	}

	if p.generation != 0 && receivedLn >= p.generation {
		p.generation = 0
	}

	return queueDepth + p.sent.Len()
}

// handleLineMismatch handles an ER LINE_MISMATCH reply.
func (p *Player) handleLineMismatch(expectedLn, receivedLn uint32) (uint32, error) {
	moved := p.sent.DropWhile(func(it *queue.Item) bool { return it.Lineno < expectedLn })
	for _, it := range moved {
		p.padding.AppendItem(it)
	}

	if expectedLn < receivedLn {
		return p.retransmit()
	}
	return 0, nil
}

// handleChecksumMismatch handles an ER CHECKSUM_MISMATCH reply.
func (p *Player) handleChecksumMismatch(lineno uint32) (uint32, error) {
	moved := p.sent.DropWhile(func(it *queue.Item) bool { return it.Lineno < lineno })
	for _, it := range moved {
		p.padding.AppendItem(it)
	}
	return p.retransmit()
}

// retransmit resends every item in the sent queue in order, guarded by a
// non-zero generation token so overlapping mismatch events don't each
// trigger their own retransmit burst. It returns the head's line number as
// the new token, or the current token unchanged if one is already set.
func (p *Player) retransmit() (uint32, error) {
	if p.generation != 0 {
		return p.generation, nil
	}
	head := p.sent.Front()
	if head == nil {
		return 0, nil
	}

	var writeErr error
	p.sent.Each(func(it *queue.Item) {
		if writeErr != nil {
			return
		}
		if _, err := p.transport.Write(it.Buffer); err != nil {
			writeErr = fmt.Errorf("player: retransmitting line %d: %w", it.Lineno, err)
		}
	})
	if writeErr != nil {
		return 0, writeErr
	}

	p.generation = head.Lineno
	return p.generation, nil
}

func parseUint32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}
