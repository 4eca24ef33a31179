package frame

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineReaderNoDataOnPartialLine(t *testing.T) {
	r := bytes.NewReader([]byte("no newline yet"))
	lr := NewLineReader(MinRecvBufferSize)

	res, line, err := lr.ReadLine(r)
	require.NoError(t, err)
	assert.Equal(t, NoData, res)
	assert.Nil(t, line)
}

func TestLineReaderLineComplete(t *testing.T) {
	r := bytes.NewReader([]byte("ok N1*2\n"))
	lr := NewLineReader(MinRecvBufferSize)

	res, line, err := lr.ReadLine(r)
	require.NoError(t, err)
	assert.Equal(t, LineComplete, res)
	assert.Equal(t, "ok N1*2", string(line))
}

func TestLineReaderResidueThenSecondLine(t *testing.T) {
	r := bytes.NewReader([]byte("first\nsecond\n"))
	lr := NewLineReader(MinRecvBufferSize)

	res, line, err := lr.ReadLine(r)
	require.NoError(t, err)
	assert.Equal(t, LineCompleteResidue, res)
	assert.Equal(t, "first", string(line))

	// Next call must drain the residue without performing another Read;
	// pass a reader that would error if touched to prove that.
	res2, line2, err2 := lr.ReadLine(erroringReader{})
	require.NoError(t, err2)
	assert.Equal(t, LineComplete, res2)
	assert.Equal(t, "second", string(line2))
}

func TestLineReaderAccumulatesAcrossReads(t *testing.T) {
	parts := []string{"par", "tial", " line\n"}
	var readers []byteReaderChunk
	for _, p := range parts {
		readers = append(readers, byteReaderChunk(p))
	}
	mr := &multiChunkReader{chunks: readers}
	lr := NewLineReader(MinRecvBufferSize)

	var (
		res  Result
		line []byte
		err  error
	)
	for i := 0; i < len(parts); i++ {
		res, line, err = lr.ReadLine(mr)
		require.NoError(t, err)
		if res == LineComplete || res == LineCompleteResidue {
			break
		}
		assert.Equal(t, NoData, res)
	}
	assert.Equal(t, LineComplete, res)
	assert.Equal(t, "partial line", string(line))
}

func TestLineReaderOverflow(t *testing.T) {
	r := bytes.NewReader(bytes.Repeat([]byte("x"), MinRecvBufferSize+10))
	lr := NewLineReader(MinRecvBufferSize)

	var (
		res Result
		err error
	)
	for i := 0; i < 3; i++ {
		res, _, err = lr.ReadLine(r)
		if res == Overflow {
			break
		}
	}
	assert.Equal(t, Overflow, res)
	assert.ErrorIs(t, err, ErrBufferOverflow)
}

func TestLineReaderUsableAfterOverflow(t *testing.T) {
	mr := &multiChunkReader{chunks: []byteReaderChunk{
		byteReaderChunk(bytes.Repeat([]byte("y"), MinRecvBufferSize)),
		byteReaderChunk("clean\n"),
	}}
	lr := NewLineReader(MinRecvBufferSize)

	res, _, err := lr.ReadLine(mr)
	require.ErrorIs(t, err, ErrBufferOverflow)
	assert.Equal(t, Overflow, res)

	res2, line2, err2 := lr.ReadLine(mr)
	require.NoError(t, err2)
	assert.Equal(t, LineComplete, res2)
	assert.Equal(t, "clean", string(line2))
}

// erroringReader fails any Read call, used to prove a residue line is
// served without touching the underlying reader again.
type erroringReader struct{}

func (erroringReader) Read([]byte) (int, error) {
	panic("ReadLine should not read again while residue remains")
}

type byteReaderChunk string

// multiChunkReader serves one chunk per Read call, simulating a stream that
// arrives in several partial reads.
type multiChunkReader struct {
	chunks []byteReaderChunk
	pos    int
}

func (m *multiChunkReader) Read(p []byte) (int, error) {
	if m.pos >= len(m.chunks) {
		return 0, nil
	}
	chunk := []byte(m.chunks[m.pos])
	m.pos++
	n := copy(p, chunk)
	return n, nil
}
