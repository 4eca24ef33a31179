package motion

import "errors"

// Decoder error sentinels. A successful Feed call returns (n, nil) with n
// equal to the bytes consumed; end-of-stream returns (0, io.EOF); these
// sentinels report the remaining negative cases by value rather than by
// byte count.
var (
	// ErrPosition is returned when a G1's resolved target would violate the
	// configured motion envelope. No command is emitted and the FSM is left
	// unmodified.
	ErrPosition = errors.New("motion: target position outside envelope")
	// ErrMultiExtruder is returned when a single G1 carries more than one
	// of E0/E1/E2.
	ErrMultiExtruder = errors.New("motion: more than one extruder in a single move")
)
