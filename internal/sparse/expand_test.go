package sparse

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandToFileHolePunchesDontCare(t *testing.T) {
	img := buildImage(t, 4096)
	logger, _ := test.NewNullLogger()

	dir := t.TempDir()
	out, err := os.Create(filepath.Join(dir, "out.img"))
	require.NoError(t, err)
	defer out.Close()

	require.NoError(t, Expand(bytes.NewReader(img), out, logger))

	info, err := out.Stat()
	require.NoError(t, err)
	assert.Equal(t, int64(4*4096), info.Size())

	decoded := make([]byte, 4*4096)
	_, err = out.ReadAt(decoded, 0)
	require.NoError(t, err)

	for i := 0; i < 4096; i++ {
		assert.Equal(t, byte(i), decoded[i])
	}
	for i := 4096; i < 4096+2*4096; i += 4 {
		assert.Equal(t, []byte{0xAA, 0xBB, 0xCC, 0xDD}, decoded[i:i+4])
	}
	for i := 3 * 4096; i < 4*4096; i++ {
		assert.Equal(t, byte(0), decoded[i])
	}
}

func TestExpandToNonSeekableWriterZeroFillsDontCare(t *testing.T) {
	img := buildImage(t, 4096)
	logger, _ := test.NewNullLogger()

	var out bytes.Buffer
	require.NoError(t, Expand(bytes.NewReader(img), writeOnly{&out}, logger))

	decoded := out.Bytes()
	require.Len(t, decoded, 4*4096)
	for i := 3 * 4096; i < 4*4096; i++ {
		assert.Equal(t, byte(0), decoded[i])
	}
}

// writeOnly hides io.Seeker (and the *os.File type assertion) from Expand so
// the zero-fill fallback path is exercised instead of seek/truncate.
type writeOnly struct {
	w *bytes.Buffer
}

func (w writeOnly) Write(p []byte) (int, error) { return w.w.Write(p) }

func TestExpandRejectsUnknownChunkType(t *testing.T) {
	var buf bytes.Buffer
	hdr := New(4096, 0, 1)
	hb := hdr.Bytes()
	buf.Write(hb[:])

	bad := ChunkHeader{ChunkType: ChunkTypeRaw, ChunkSize: 0, TotalSize: ChunkHeaderSize}
	bb := bad.Bytes()
	bb[0] = 0x01 // corrupt the type code in place
	bb[1] = 0x01
	buf.Write(bb[:])

	logger, _ := test.NewNullLogger()
	var out bytes.Buffer
	err := Expand(bytes.NewReader(buf.Bytes()), &out, logger)
	require.Error(t, err)
}
