package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReplySimplePairs(t *testing.T) {
	m, err := ParseReply([]byte("ST:0 LN:42"))
	require.NoError(t, err)
	assert.Equal(t, "0", m["ST"])
	assert.Equal(t, "42", m["LN"])
}

func TestParseReplyQuotedValueWithSpaces(t *testing.T) {
	m, err := ParseReply([]byte(`MSG:"line mismatch" LN:10`))
	require.NoError(t, err)
	assert.Equal(t, "line mismatch", m["MSG"])
	assert.Equal(t, "10", m["LN"])
}

func TestParseReplyBackslashEscape(t *testing.T) {
	m, err := ParseReply([]byte(`MSG:a\:b`))
	require.NoError(t, err)
	assert.Equal(t, "a:b", m["MSG"])
}

func TestParseReplyNumericSequenceKeys(t *testing.T) {
	m, err := ParseReply([]byte("TT:210.5,0,0,0 RT:25.1"))
	require.NoError(t, err)

	tt, ok := m["TT"].([]float64)
	require.True(t, ok)
	assert.Equal(t, []float64{210.5, 0, 0, 0}, tt)

	rt, ok := m["RT"].([]float64)
	require.True(t, ok)
	assert.Equal(t, []float64{25.1}, rt)
}

func TestParseReplyMissingColonIsMalformed(t *testing.T) {
	_, err := ParseReply([]byte("ST 0"))
	assert.Error(t, err)
}

func TestParseReplyMalformedNumericSequence(t *testing.T) {
	_, err := ParseReply([]byte("TT:abc"))
	assert.Error(t, err)
}

func TestParseReplyEmptyLine(t *testing.T) {
	m, err := ParseReply([]byte(""))
	require.NoError(t, err)
	assert.Empty(t, m)
}

// TestParseReplyRoundTrip exercises the key:value round-trip property: a
// reply parsed and re-rendered and re-parsed yields the same logical
// content, independent of key ordering.
func TestParseReplyRoundTrip(t *testing.T) {
	original := "ST:0 LN:7 TT:210.5,0,0,0"
	m1, err := ParseReply([]byte(original))
	require.NoError(t, err)

	rendered := CanonicalTokens(m1)
	m2, err := ParseReply([]byte(rendered))
	require.NoError(t, err)

	assert.Equal(t, m1, m2)
}
