package sparse

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// fillBatchBlocks caps how many repeats of a 4-byte Fill pattern are
// buffered per write, bounding memory use for very large Fill chunks while
// still batching writes.
const fillBatchBlocks = 16 * 1024 // 64KiB of pattern per Write call

// zeroBatchSize is the chunk size used when zero-filling a DontCare region
// on a sink that cannot seek.
const zeroBatchSize = 64 * 1024

// Expand reads a sparse image from r and materializes the fully decoded
// image into w, in chunk order. If w is an *os.File, DontCare regions are
// punched as real filesystem holes and the final length is set with
// Truncate; otherwise DontCare regions are handled by seeking forward when w
// implements io.Seeker, falling back to writing zeros when it does not.
//
// logger receives Debug-level notices for discarded Crc32 chunks and any
// fallback from hole-punching to a plain seek; a nil logger uses
// logrus.StandardLogger().
func Expand(r io.Reader, w io.Writer, logger logrus.FieldLogger) error {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	header, err := readFileHeader(r)
	if err != nil {
		return err
	}

	file, isFile := w.(*os.File)
	seeker, seekable := w.(io.Seeker)

	var pos int64
	for i := uint32(0); i < header.Chunks; i++ {
		chunk, err := readChunkHeader(r)
		if err != nil {
			return err
		}
		if err := chunk.ValidatePayloadSize(); err != nil {
			return err
		}
		if err := chunk.ValidateRawSize(header); err != nil {
			return err
		}

		outSize := int64(chunk.OutSize(header))

		switch chunk.ChunkType {
		case ChunkTypeRaw:
			n, err := io.CopyN(w, r, outSize)
			if err != nil {
				return &StructuralError{Op: "copy raw chunk", Err: err}
			}
			pos += n

		case ChunkTypeFill:
			var pattern [4]byte
			if _, err := io.ReadFull(r, pattern[:]); err != nil {
				return &StructuralError{Op: "read fill pattern", Err: err}
			}
			if err := writeFillPattern(w, pattern, outSize); err != nil {
				return fmt.Errorf("sparse: write fill chunk: %w", err)
			}
			pos += outSize

		case ChunkTypeDontCare:
			if isFile {
				if err := punchHole(file, pos, outSize); err != nil {
					logger.WithError(err).Debug("hole punch unavailable, falling back to seek")
				}
			}
			switch {
			case seekable:
				if _, err := seeker.Seek(outSize, io.SeekCurrent); err != nil {
					return fmt.Errorf("sparse: seek over dontcare chunk: %w", err)
				}
			default:
				if err := zeroFill(w, outSize); err != nil {
					return fmt.Errorf("sparse: zero-fill dontcare chunk: %w", err)
				}
			}
			pos += outSize

		case ChunkTypeCrc32:
			var crc [4]byte
			if _, err := io.ReadFull(r, crc[:]); err != nil {
				return &StructuralError{Op: "read crc32 chunk", Err: err}
			}
			logger.WithField("crc32", fmt.Sprintf("%08x", crc)).Debug("ignoring unvalidated crc32 chunk")

		default:
			return &StructuralError{Op: "expand chunk", Err: fmt.Errorf("%w: 0x%04x", ErrUnknownChunkType, uint16(chunk.ChunkType))}
		}
	}

	total := int64(header.TotalSize())
	switch {
	case isFile:
		if err := file.Truncate(total); err != nil {
			return fmt.Errorf("sparse: truncate output to final size: %w", err)
		}
	case pos < total:
		if seekable {
			if _, err := seeker.Seek(total-1, io.SeekStart); err != nil {
				return fmt.Errorf("sparse: extend output to final size: %w", err)
			}
			if _, err := w.Write([]byte{0}); err != nil {
				return fmt.Errorf("sparse: extend output to final size: %w", err)
			}
		} else if err := zeroFill(w, total-pos); err != nil {
			return fmt.Errorf("sparse: extend output to final size: %w", err)
		}
	}

	return nil
}

// writeFillPattern writes size bytes to w, each a repetition of the 4-byte
// pattern, in batches of at most fillBatchBlocks*4 bytes.
func writeFillPattern(w io.Writer, pattern [4]byte, size int64) error {
	if size == 0 {
		return nil
	}
	batchLen := int64(fillBatchBlocks) * 4
	if size < batchLen {
		batchLen = size
	}
	buf := make([]byte, batchLen)
	for i := int64(0); i < batchLen; i += 4 {
		copy(buf[i:i+4], pattern[:])
	}

	remaining := size
	for remaining > 0 {
		n := batchLen
		if remaining < n {
			n = remaining
		}
		if _, err := w.Write(buf[:n]); err != nil {
			return err
		}
		remaining -= n
	}
	return nil
}

// zeroFill writes size zero bytes to w in bounded batches.
func zeroFill(w io.Writer, size int64) error {
	if size <= 0 {
		return nil
	}
	batchLen := int64(zeroBatchSize)
	if size < batchLen {
		batchLen = size
	}
	buf := make([]byte, batchLen)
	remaining := size
	for remaining > 0 {
		n := batchLen
		if remaining < n {
			n = remaining
		}
		if _, err := w.Write(buf[:n]); err != nil {
			return err
		}
		remaining -= n
	}
	return nil
}
