package behaviour_tests

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"

	"github.com/rogpeppe/go-internal/testscript"
)

const (
	fileHeaderSize  = 28
	chunkHeaderSize = 12
	magic           = 0xED26FF3A

	chunkRaw      = 0xCAC1
	chunkFill     = 0xCAC2
	chunkDontCare = 0xCAC3
)

func putFileHeader(buf *bytes.Buffer, blockSize, blocks, chunks uint32) {
	var h [fileHeaderSize]byte
	binary.LittleEndian.PutUint32(h[0:4], magic)
	binary.LittleEndian.PutUint16(h[4:6], 1) // major
	binary.LittleEndian.PutUint16(h[6:8], 0) // minor
	binary.LittleEndian.PutUint16(h[8:10], fileHeaderSize)
	binary.LittleEndian.PutUint16(h[10:12], chunkHeaderSize)
	binary.LittleEndian.PutUint32(h[12:16], blockSize)
	binary.LittleEndian.PutUint32(h[16:20], blocks)
	binary.LittleEndian.PutUint32(h[20:24], chunks)
	binary.LittleEndian.PutUint32(h[24:28], 0) // checksum
	buf.Write(h[:])
}

func putChunkHeader(buf *bytes.Buffer, chunkType uint16, chunkSize, totalSize uint32) {
	var h [chunkHeaderSize]byte
	binary.LittleEndian.PutUint16(h[0:2], chunkType)
	binary.LittleEndian.PutUint16(h[2:4], 0) // reserved
	binary.LittleEndian.PutUint32(h[4:8], chunkSize)
	binary.LittleEndian.PutUint32(h[8:12], totalSize)
	buf.Write(h[:])
}

// buildE1Image reproduces spec.md's E1 scenario: a 1-block Raw chunk of
// 0xAA, a 2-block Fill chunk with pattern 0xDEADBEEF, and a 1-block
// DontCare chunk.
func buildE1Image() []byte {
	const blockSize = 4096
	var buf bytes.Buffer
	putFileHeader(&buf, blockSize, 4, 3)

	putChunkHeader(&buf, chunkRaw, 1, chunkHeaderSize+blockSize)
	buf.Write(bytes.Repeat([]byte{0xAA}, blockSize))

	putChunkHeader(&buf, chunkFill, 2, chunkHeaderSize+4)
	buf.Write([]byte{0xEF, 0xBE, 0xAD, 0xDE})

	putChunkHeader(&buf, chunkDontCare, 1, chunkHeaderSize)

	return buf.Bytes()
}

// buildRaw10Image is a single 10-block Raw chunk with a deterministic,
// non-repeating byte pattern, sized so split budgets land mid-chunk (E3).
func buildRaw10Image() []byte {
	const blockSize = 4096
	const blocks = 10
	var buf bytes.Buffer
	putFileHeader(&buf, blockSize, blocks, 1)
	putChunkHeader(&buf, chunkRaw, blocks, chunkHeaderSize+blocks*blockSize)

	payload := make([]byte, blocks*blockSize)
	for i := range payload {
		payload[i] = byte(i)
	}
	buf.Write(payload)

	return buf.Bytes()
}

func cmdMkImage(ts *testscript.TestScript, neg bool, args []string) {
	if len(args) != 2 {
		ts.Fatalf("usage: mkimage path.bin <e1|raw10>")
	}
	var data []byte
	switch args[1] {
	case "e1":
		data = buildE1Image()
	case "raw10":
		data = buildRaw10Image()
	default:
		ts.Fatalf("mkimage: unknown variant %q", args[1])
	}
	if err := os.WriteFile(ts.MkAbs(args[0]), data, 0o644); err != nil {
		ts.Fatalf("mkimage: %v", err)
	}
}

// cmdCheckFrag reconstructs the decoded image from a sequence of
// independently-flashed sparse fragments (leading DontCare chunks act as a
// seek on the shared target, per spec.md §4.3) and compares it byte-for-
// byte against an already-expanded reference image, testing spec.md §8's
// invariant 2.
func cmdCheckFrag(ts *testscript.TestScript, neg bool, args []string) {
	if len(args) < 2 {
		ts.Fatalf("usage: checkfrag expected.bin frag.0 [frag.1 ...]")
	}

	expected, err := os.ReadFile(ts.MkAbs(args[0]))
	if err != nil {
		ts.Fatalf("checkfrag: reading expected image: %v", err)
	}

	out := make([]byte, len(expected))
	var pos int64

	for _, fragPath := range args[1:] {
		data, err := os.ReadFile(ts.MkAbs(fragPath))
		if err != nil {
			ts.Fatalf("checkfrag: reading %s: %v", fragPath, err)
		}
		r := bytes.NewReader(data)

		var fh [fileHeaderSize]byte
		if _, err := io.ReadFull(r, fh[:]); err != nil {
			ts.Fatalf("checkfrag: %s: reading file header: %v", fragPath, err)
		}
		if binary.LittleEndian.Uint32(fh[0:4]) != magic {
			ts.Fatalf("checkfrag: %s: bad magic", fragPath)
		}
		blockSize := int64(binary.LittleEndian.Uint32(fh[12:16]))
		chunks := binary.LittleEndian.Uint32(fh[20:24])

		for i := uint32(0); i < chunks; i++ {
			var ch [chunkHeaderSize]byte
			if _, err := io.ReadFull(r, ch[:]); err != nil {
				ts.Fatalf("checkfrag: %s: reading chunk header: %v", fragPath, err)
			}
			typ := binary.LittleEndian.Uint16(ch[0:2])
			chunkSize := int64(binary.LittleEndian.Uint32(ch[4:8]))
			totalSize := int64(binary.LittleEndian.Uint32(ch[8:12]))
			dataSize := totalSize - chunkHeaderSize
			outSize := chunkSize * blockSize

			switch typ {
			case chunkRaw:
				if pos+outSize > int64(len(out)) {
					ts.Fatalf("checkfrag: %s: raw chunk overruns target", fragPath)
				}
				if _, err := io.ReadFull(r, out[pos:pos+outSize]); err != nil {
					ts.Fatalf("checkfrag: %s: reading raw payload: %v", fragPath, err)
				}
				pos += outSize
			case chunkFill:
				var pattern [4]byte
				if _, err := io.ReadFull(r, pattern[:]); err != nil {
					ts.Fatalf("checkfrag: %s: reading fill pattern: %v", fragPath, err)
				}
				for o := int64(0); o < outSize; o += 4 {
					copy(out[pos+o:pos+o+4], pattern[:])
				}
				pos += outSize
			case chunkDontCare:
				pos += outSize
			default:
				if _, err := io.CopyN(io.Discard, r, dataSize); err != nil {
					ts.Fatalf("checkfrag: %s: skipping chunk payload: %v", fragPath, err)
				}
			}
		}
	}

	if pos != int64(len(out)) {
		ts.Fatalf("checkfrag: fragments covered %d bytes, want %d", pos, len(out))
	}
	if !bytes.Equal(out, expected) {
		ts.Fatalf("checkfrag: reconstructed image does not match expected")
	}
}
