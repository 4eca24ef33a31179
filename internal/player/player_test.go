package player

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTransport is an in-memory Transport: writes accumulate in Sent,
// reads are served from In.
type fakeTransport struct {
	In   *bytes.Buffer
	Sent [][]byte
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{In: &bytes.Buffer{}}
}

func (f *fakeTransport) Write(p []byte) (int, error) {
	cp := append([]byte(nil), p...)
	f.Sent = append(f.Sent, cp)
	return len(p), nil
}

func (f *fakeTransport) Read(p []byte) (int, error) {
	if f.In.Len() == 0 {
		return 0, io.EOF
	}
	return f.In.Read(p)
}

// Scenario D: send 1,2,3; receive "LN 2 1".
func TestHandleLNMovesAndTruncates(t *testing.T) {
	tr := newFakeTransport()
	p := New(tr, 0)

	for i := 0; i < 3; i++ {
		_, err := p.Send("G1 X1")
		require.NoError(t, err)
	}
	require.Equal(t, 3, p.SentLen())

	err := p.HandleLine([]byte("LN 2 1"), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, p.SentLen())
	assert.Equal(t, uint32(3), p.sent.Front().Lineno)
	assert.Equal(t, 1, p.PaddingLen())
	assert.Equal(t, uint32(2), p.padding.Front().Lineno)
}

// Scenario E: send 1..5; receive "ER CHECKSUM_MISMATCH 3".
func TestHandleChecksumMismatchRetransmits(t *testing.T) {
	tr := newFakeTransport()
	p := New(tr, 0)

	for i := 0; i < 5; i++ {
		_, err := p.Send("G1 X1")
		require.NoError(t, err)
	}
	tr.Sent = nil // clear the initial sends, isolate the retransmit burst

	err := p.HandleLine([]byte("ER CHECKSUM_MISMATCH 3"), nil)
	require.NoError(t, err)

	assert.Equal(t, 2, p.PaddingLen())
	assert.Equal(t, uint32(1), p.padding.Front().Lineno)
	assert.Equal(t, 3, p.SentLen())
	assert.Equal(t, uint32(3), p.sent.Front().Lineno)
	assert.Equal(t, uint32(3), p.Generation())

	require.Len(t, tr.Sent, 3)
}

func TestRetransmitGuardedByGeneration(t *testing.T) {
	tr := newFakeTransport()
	p := New(tr, 0)
	for i := 0; i < 3; i++ {
		_, err := p.Send("G1 X1")
		require.NoError(t, err)
	}
	tr.Sent = nil

	tok1, err := p.handleChecksumMismatch(1)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), tok1)
	firstBurst := len(tr.Sent)
	require.Greater(t, firstBurst, 0)

	tok2, err := p.handleChecksumMismatch(1)
	require.NoError(t, err)
	assert.Equal(t, tok1, tok2)
	assert.Equal(t, firstBurst, len(tr.Sent)) // no second burst while generation is set
}

func TestHandleLNClearsGenerationOnceHeadAcked(t *testing.T) {
	tr := newFakeTransport()
	p := New(tr, 0)
	for i := 0; i < 3; i++ {
		_, err := p.Send("G1 X1")
		require.NoError(t, err)
	}

	_, err := p.handleChecksumMismatch(1)
	require.NoError(t, err)
	require.NotZero(t, p.Generation())

	p.handleLN(1, 0)
	assert.Zero(t, p.Generation())
}

func TestHandleLineMismatchControllerBehindRetransmits(t *testing.T) {
	tr := newFakeTransport()
	p := New(tr, 0)
	for i := 0; i < 3; i++ {
		_, err := p.Send("G1 X1")
		require.NoError(t, err)
	}
	tr.Sent = nil

	tok, err := p.handleLineMismatch(1, 5)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), tok)
	assert.NotEmpty(t, tr.Sent)
}

func TestHandleLineMismatchControllerAheadNoRetransmit(t *testing.T) {
	tr := newFakeTransport()
	p := New(tr, 0)
	for i := 0; i < 3; i++ {
		_, err := p.Send("G1 X1")
		require.NoError(t, err)
	}
	tr.Sent = nil

	tok, err := p.handleLineMismatch(5, 1)
	require.NoError(t, err)
	assert.Zero(t, tok)
	assert.Empty(t, tr.Sent)
}

func TestUnrecognisedLinePassesThrough(t *testing.T) {
	tr := newFakeTransport()
	p := New(tr, 0)

	var got []byte
	err := p.HandleLine([]byte("T:210.0 /210.0 B:60.0"), func(line []byte) {
		got = append([]byte(nil), line...)
	})
	require.NoError(t, err)
	assert.Equal(t, "T:210.0 /210.0 B:60.0", string(got))
}

func TestSendAssignsMonotonicLineNumbers(t *testing.T) {
	tr := newFakeTransport()
	p := New(tr, 0)

	ln1, err := p.Send("G28")
	require.NoError(t, err)
	ln2, err := p.Send("G1 X1")
	require.NoError(t, err)

	assert.Equal(t, uint32(1), ln1)
	assert.Equal(t, uint32(2), ln2)
}

func TestSendToolWritesToolFrameWithoutQueueing(t *testing.T) {
	tr := newFakeTransport()
	p := New(tr, 0)

	err := p.SendTool("M104 S210")
	require.NoError(t, err)

	require.Len(t, tr.Sent, 1)
	assert.Equal(t, "1 M104 S210 *9\n", string(tr.Sent[0]))
	assert.Equal(t, 0, p.SentLen())
	assert.Equal(t, 0, p.PaddingLen())

	snap := p.Stats()
	assert.Equal(t, uint64(1), snap.FramesBuilt)
}
