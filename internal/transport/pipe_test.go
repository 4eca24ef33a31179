package transport

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipeWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "controller")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	p, err := OpenPipe(path)
	require.NoError(t, err)
	defer p.Close()

	n, err := p.Write([]byte("G1 X1 N1*2\n"))
	require.NoError(t, err)
	assert.Equal(t, 11, n)

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "G1 X1 N1*2\n", string(contents))
}

func TestPipeRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "controller")
	require.NoError(t, os.WriteFile(path, []byte("LN 2 1\n"), 0o600))

	p, err := OpenPipe(path)
	require.NoError(t, err)
	defer p.Close()

	buf := make([]byte, 32)
	n, err := p.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "LN 2 1\n", string(buf[:n]))
}

func TestOpenPipeMissingPathErrors(t *testing.T) {
	_, err := OpenPipe(filepath.Join(t.TempDir(), "does-not-exist"))
	assert.Error(t, err)
}
