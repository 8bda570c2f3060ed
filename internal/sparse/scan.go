package sparse

import (
	"io"
)

// ScannedChunk is a decoded ChunkHeader plus the absolute byte offset and
// size of its payload within the source file, as produced by Scan.
type ScannedChunk struct {
	Header ChunkHeader
	Offset int64
	Size   int64
}

// Scan reads the FileHeader and every ChunkHeader of a sparse image exactly
// once, validating structure as it goes, and returns the decoded header
// together with the chunk list. r must support Seek so the scanner can skip
// over chunk payloads without reading them.
//
// Scan additionally checks that the sum of ChunkSize across all chunks
// equals header.Blocks, surfacing a StructuralError eagerly rather than
// only at expand time (spec.md §3's chunk-count invariant).
func Scan(r io.ReadSeeker) (FileHeader, []ScannedChunk, error) {
	header, err := readFileHeader(r)
	if err != nil {
		return FileHeader{}, nil, err
	}

	chunks := make([]ScannedChunk, 0, header.Chunks)
	var totalBlocks uint64

	for i := uint32(0); i < header.Chunks; i++ {
		chunk, err := readChunkHeader(r)
		if err != nil {
			return FileHeader{}, nil, err
		}
		if err := chunk.ValidatePayloadSize(); err != nil {
			return FileHeader{}, nil, err
		}
		if err := chunk.ValidateRawSize(header); err != nil {
			return FileHeader{}, nil, err
		}

		offset, err := r.Seek(0, io.SeekCurrent)
		if err != nil {
			return FileHeader{}, nil, &StructuralError{Op: "locate chunk payload", Err: err}
		}

		dataSize := int64(chunk.DataSize())
		if _, err := r.Seek(dataSize, io.SeekCurrent); err != nil {
			return FileHeader{}, nil, &StructuralError{Op: "skip chunk payload", Err: err}
		}

		chunks = append(chunks, ScannedChunk{
			Header: chunk,
			Offset: offset,
			Size:   dataSize,
		})
		totalBlocks += uint64(chunk.ChunkSize)
	}

	if totalBlocks != uint64(header.Blocks) {
		return FileHeader{}, nil, &StructuralError{Op: "validate chunk list", Err: ErrChunkCountMismatch}
	}

	return header, chunks, nil
}
