package frame

// Tool-reply validation result codes, in the same low-level convenience
// style used elsewhere in this package: zero or positive is the validated
// payload length (the index of the '*' checksum sigil), negative values
// are categorised failures.
const (
	ErrToolShort            = -4 // line shorter than the minimum "1 *0" frame
	ErrToolWrongPrefix      = -3 // line does not begin with "1 "
	ErrToolNoChecksumSigil  = -2 // no '*' checksum sigil found, or no digits after it
	ErrToolChecksumMismatch = -1 // checksum digits don't match the computed XOR
)

// ValidateToolReply checks a candidate tool-channel reply line (without its
// terminating newline). On success it returns the index of the '*' sigil
// (i.e. the length of the "1 " prefix plus payload); on failure it returns
// one of the ErrTool* negative sentinels.
func ValidateToolReply(line []byte) int {
	if len(line) < 4 {
		return ErrToolShort
	}
	if line[0] != '1' || line[1] != ' ' {
		return ErrToolWrongPrefix
	}

	sumcheck := byte('1') ^ byte(' ')
	for i := 2; i < len(line); i++ {
		if line[i] == '*' {
			recv, ok := parseDecimalInt(line[i+1:])
			if !ok {
				return ErrToolNoChecksumSigil
			}
			if recv != int(sumcheck) {
				return ErrToolChecksumMismatch
			}
			return i
		}
		sumcheck ^= line[i]
	}
	return ErrToolNoChecksumSigil
}

// parseDecimalInt parses a leading run of an optional sign followed by
// decimal digits, the way C's atoi does: as much as it can, defaulting to 0
// ok=false if nothing digit-like was found at all.
func parseDecimalInt(b []byte) (int, bool) {
	i := 0
	neg := false
	if i < len(b) && (b[i] == '+' || b[i] == '-') {
		neg = b[i] == '-'
		i++
	}
	start := i
	val := 0
	for i < len(b) && b[i] >= '0' && b[i] <= '9' {
		val = val*10 + int(b[i]-'0')
		i++
	}
	if i == start {
		return 0, false
	}
	if neg {
		val = -val
	}
	return val, true
}
