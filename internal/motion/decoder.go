package motion

import (
	"fmt"
	"io"
	"math"
)

// maxSegments is the hard clamp on sub-segments a single G1 may be split
// into.
const maxSegments = 4096

// Decoder parses the binary task-stream opcode format and drives a State
// through it, emitting textual commands to a Sink as it goes.
type Decoder struct {
	cfg   Config
	state *State
}

// NewDecoder builds a Decoder with a freshly seeded State.
func NewDecoder(cfg Config) *Decoder {
	return &Decoder{cfg: cfg, state: NewState(cfg)}
}

// State exposes the decoder's live machine state, e.g. for diagnostics.
func (d *Decoder) State() *State { return d.state }

// Feed consumes exactly one opcode record from r and dispatches it,
// calling sink zero or more times. It returns the number of bytes consumed
// on success, (0, io.EOF) at end of stream, or (0, err) for a recoverable
// decode error (ErrPosition, ErrMultiExtruder) or a fatal I/O error.
func (d *Decoder) Feed(r io.Reader, sink Sink) (int, error) {
	var opcode [1]byte
	read, err := r.Read(opcode[:])
	if read == 0 {
		if err == nil || err == io.EOF {
			return 0, io.EOF
		}
		return 0, fmt.Errorf("motion: reading opcode byte: %w", err)
	}

	pr := payloadReader{r: r}
	cmd := opcode[0]
	n := 1
	switch {
	case cmd&0x80 != 0:
		return d.decodeG1(pr, n, cmd, sink)
	case cmd&0x40 != 0:
		return d.decodeG92(pr, n, cmd, sink)
	case cmd&0x30 == 0x30:
		return d.decodeFan(pr, n, sink)
	case cmd&0x20 != 0:
		return d.decodeLaser(pr, n, sink)
	case cmd&0x10 != 0:
		return d.decodeHeater(pr, n, cmd, sink)
	case cmd == 7:
		return d.decodePauseWithHeight(pr, n, sink)
	case cmd == 6:
		return d.decodeRaw(pr, n, cmd, sink)
	case cmd == 5:
		if err := sink("", PAUSE); err != nil {
			return 0, err
		}
		return n, nil
	case cmd&0x04 != 0:
		return d.decodeSleep(pr, n, sink)
	case cmd&0x03 == 0x03:
		if err := sink("G91", MAIN); err != nil {
			return 0, err
		}
		d.state.Relative = true
		return n, nil
	case cmd&0x02 != 0:
		if err := sink("G90", MAIN); err != nil {
			return 0, err
		}
		d.state.Relative = false
		return n, nil
	case cmd == 1:
		if err := sink("G28", MAIN); err != nil {
			return 0, err
		}
		return n, nil
	default:
		return n, nil
	}
}

func (d *Decoder) decodeFan(pr payloadReader, n int, sink Sink) (int, error) {
	v, err := pr.readFloat32()
	if err != nil {
		return 0, err
	}
	n += 4
	cmdText := fmt.Sprintf("F1%d", scaleDuty(float64(v)))
	if err := sink(cmdText, HEAD); err != nil {
		return 0, err
	}
	return n, nil
}

func (d *Decoder) decodeLaser(pr payloadReader, n int, sink Sink) (int, error) {
	v, err := pr.readFloat32()
	if err != nil {
		return 0, err
	}
	n += 4
	cmdText := fmt.Sprintf("X2O%d", scaleDuty(float64(v)))
	if err := sink(cmdText, MAIN); err != nil {
		return 0, err
	}
	return n, nil
}

func (d *Decoder) decodeHeater(pr payloadReader, n int, cmd byte, sink Sink) (int, error) {
	v, err := pr.readFloat32()
	if err != nil {
		return 0, err
	}
	n += 4
	block := cmd&0x08 != 0
	target := HEAD
	if block {
		target = BLOCK_HEAD
	}
	cmdText := fmt.Sprintf("H%s", formatHeater(float64(v)))
	if err := sink(cmdText, target); err != nil {
		return 0, err
	}
	return n, nil
}

func (d *Decoder) decodePauseWithHeight(pr payloadReader, n int, sink Sink) (int, error) {
	v, err := pr.readFloat32()
	if err != nil {
		return 0, err
	}
	n += 4
	if err := sink(formatAxis(float64(v)), PAUSE); err != nil {
		return 0, err
	}
	return n, nil
}

func (d *Decoder) decodeRaw(pr payloadReader, n int, cmd byte, sink Sink) (int, error) {
	length, err := pr.readByte()
	if err != nil {
		return 0, err
	}
	n++
	payload, err := pr.readBytes(int(length))
	if err != nil {
		return 0, err
	}
	n += int(length)

	target := MAIN
	if cmd&0x01 != 0 {
		target = HEAD
	}
	if err := sink(string(payload), target); err != nil {
		return 0, err
	}
	return n, nil
}

func (d *Decoder) decodeSleep(pr payloadReader, n int, sink Sink) (int, error) {
	v, err := pr.readFloat32()
	if err != nil {
		return 0, err
	}
	n += 4
	cmdText := fmt.Sprintf("G4 P%d", int(v))
	if err := sink(cmdText, MAIN); err != nil {
		return 0, err
	}
	return n, nil
}

// decodeG92 resets coordinates/extruder positions directly, without
// segment splitting. Its flag layout reuses G1's X/Y/Z/E0/E1/E2 sub-flags,
// minus F.
func (d *Decoder) decodeG92(pr payloadReader, n int, cmd byte, sink Sink) (int, error) {
	var parts []string

	if cmd&0x20 != 0 {
		v, err := pr.readFloat32()
		if err != nil {
			return 0, err
		}
		n += 4
		d.state.X = float64(v)
		parts = append(parts, "X"+formatAxis(float64(v)))
	}
	if cmd&0x10 != 0 {
		v, err := pr.readFloat32()
		if err != nil {
			return 0, err
		}
		n += 4
		d.state.Y = float64(v)
		parts = append(parts, "Y"+formatAxis(float64(v)))
	}
	if cmd&0x08 != 0 {
		v, err := pr.readFloat32()
		if err != nil {
			return 0, err
		}
		n += 4
		d.state.Z = float64(v)
		parts = append(parts, "Z"+formatAxis(float64(v)))
	}

	if len(parts) > 0 {
		line := "G92 " + joinSpace(parts)
		if err := sink(line, MAIN); err != nil {
			return 0, err
		}
	}

	for i := 0; i < 3; i++ {
		bit := byte(0x04 >> i)
		if cmd&bit == 0 {
			continue
		}
		if d.state.Tool != i {
			if err := sink(fmt.Sprintf("T%d", i), MAIN); err != nil {
				return 0, err
			}
			d.state.Tool = i
		}
		v, err := pr.readFloat32()
		if err != nil {
			return 0, err
		}
		n += 4
		d.state.E[i] = float64(v)
		if err := sink("G92 E"+formatAxis(float64(v)), MAIN); err != nil {
			return 0, err
		}
	}

	return n, nil
}

func joinSpace(parts []string) string {
	out := parts[0]
	for _, p := range parts[1:] {
		out += " " + p
	}
	return out
}

// decodeG1 parses a G1 move's flag-gated payload, validates it against the
// motion envelope, performs a tool-change reseat if needed, and hands off
// to emitG1 for segment splitting.
func (d *Decoder) decodeG1(pr payloadReader, n int, cmd byte, sink Sink) (int, error) {
	var f float64
	x, y, z := math.NaN(), math.NaN(), math.NaN()
	e := [3]float64{math.NaN(), math.NaN(), math.NaN()}
	var eCount, eIdx int
	var xPresent, yPresent, zPresent bool

	if cmd&0x40 != 0 {
		v, err := pr.readFloat32()
		if err != nil {
			return 0, err
		}
		n += 4
		f = float64(v)
	}
	if cmd&0x20 != 0 {
		v, err := pr.readFloat32()
		if err != nil {
			return 0, err
		}
		n += 4
		x = float64(v)
		xPresent = true
	}
	if cmd&0x10 != 0 {
		v, err := pr.readFloat32()
		if err != nil {
			return 0, err
		}
		n += 4
		y = float64(v)
		yPresent = true
	}
	if cmd&0x08 != 0 {
		v, err := pr.readFloat32()
		if err != nil {
			return 0, err
		}
		n += 4
		z = float64(v)
		zPresent = true
	}
	for i, bit := range []byte{0x04, 0x02, 0x01} {
		if cmd&bit == 0 {
			continue
		}
		v, err := pr.readFloat32()
		if err != nil {
			return 0, err
		}
		n += 4
		e[i] = float64(v)
		eCount++
		eIdx = i
	}

	// Resolve absolute targets: X/Y are always absolute; Z is relative to
	// the stored position when in relative mode.
	resolvedX, resolvedY, resolvedZ := math.NaN(), math.NaN(), math.NaN()
	if xPresent {
		resolvedX = x
	}
	if yPresent {
		resolvedY = y
	}
	if zPresent {
		if d.state.Relative && !unknown(d.state.Z) {
			resolvedZ = d.state.Z + z
		} else {
			resolvedZ = z
		}
	}

	checkX := resolvedX
	if !xPresent {
		checkX = d.state.X
	}
	checkY := resolvedY
	if !yPresent {
		checkY = d.state.Y
	}
	if !unknown(checkX) && !unknown(checkY) {
		if checkX*checkX+checkY*checkY > d.cfg.MaxR2 {
			return 0, ErrPosition
		}
	}
	if zPresent && !unknown(resolvedZ) {
		if resolvedZ < d.cfg.MinZ || resolvedZ > d.cfg.MaxZ {
			return 0, ErrPosition
		}
	}

	if eCount > 1 {
		return 0, ErrMultiExtruder
	}

	activeTool := d.state.Tool
	resolvedE := math.NaN()
	if eCount == 1 {
		activeTool = eIdx
		if d.state.Relative && !unknown(d.state.E[eIdx]) {
			resolvedE = d.state.E[eIdx] + e[eIdx]
		} else {
			resolvedE = e[eIdx]
		}

		if activeTool != d.state.Tool {
			if err := sink(fmt.Sprintf("T%d", activeTool), MAIN); err != nil {
				return 0, err
			}
			if err := sink("G92 E"+formatAxis(d.state.E[activeTool]), MAIN); err != nil {
				return 0, err
			}
			d.state.Tool = activeTool
		}
	}

	if err := d.emitG1(f, resolvedX, resolvedY, resolvedZ, resolvedE, sink); err != nil {
		return 0, err
	}
	return n, nil
}

// emitG1 splits a move into time-bounded sub-segments when the prior
// position is fully known, always re-emitting the exact final target to
// avoid accumulated rounding drift.
func (d *Decoder) emitG1(f, x, y, z, e float64, sink Sink) error {
	st := d.state

	if f == 0 {
		if st.Feedrate == 0 {
			f = 3000
		} else {
			f = float64(st.Feedrate)
		}
	}

	if !unknown(st.X) && !unknown(st.Y) && !unknown(st.Z) {
		dx := deltaOrZero(x, st.X)
		dy := deltaOrZero(y, st.Y)
		dz := deltaOrZero(z, st.Z)
		de := deltaOrZero(e, st.E[st.Tool])

		length := math.Sqrt(dx*dx + dy*dy + dz*dz)
		st.Traveled += length

		tcost := length / f * 100
		section := int(tcost / d.cfg.MaxExecTime)
		if section > maxSegments {
			section = maxSegments
		}
		if section < 0 {
			section = 0
		}

		feedrateEmitted := false
		for i := 1; i < section; i++ {
			r := float64(i) / float64(section)
			var parts []string

			if f != float64(st.Feedrate) && !feedrateEmitted {
				parts = append(parts, fmt.Sprintf("F%d", int(f)))
				st.Feedrate = int(f)
				feedrateEmitted = true
			}
			if dx != 0 {
				parts = append(parts, "X"+formatAxis(st.X+dx*r))
			}
			if dy != 0 {
				parts = append(parts, "Y"+formatAxis(st.Y+dy*r))
			}
			if dz != 0 {
				parts = append(parts, "Z"+formatAxis(st.Z+dz*r))
			}
			if de != 0 {
				parts = append(parts, "E"+formatAxis(st.E[st.Tool]+de*r))
			}
			if len(parts) == 0 {
				continue
			}
			if err := sink("G1 "+joinSpace(parts), MAIN); err != nil {
				return err
			}
		}
	}

	var parts []string
	if f != float64(st.Feedrate) {
		parts = append(parts, fmt.Sprintf("F%d", int(f)))
		st.Feedrate = int(f)
	}
	if !unknown(x) {
		parts = append(parts, "X"+formatAxis(x))
		st.X = x
	}
	if !unknown(y) {
		parts = append(parts, "Y"+formatAxis(y))
		st.Y = y
	}
	if !unknown(z) {
		parts = append(parts, "Z"+formatAxis(z))
		st.Z = z
	}
	if !unknown(e) {
		parts = append(parts, "E"+formatAxis(e))
		st.E[st.Tool] = e
	}

	line := "G1"
	if len(parts) > 0 {
		line = "G1 " + joinSpace(parts)
	}
	return sink(line, MAIN)
}

func deltaOrZero(target, current float64) float64 {
	if unknown(target) {
		return 0
	}
	return target - current
}
