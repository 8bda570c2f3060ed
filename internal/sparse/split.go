package sparse

import (
	"fmt"

	"github.com/google/uuid"
)

// FragmentChunk is one chunk within a FragmentPlan: its on-wire header plus
// the absolute offset in the original source file to copy its payload from.
// Synthesized leading DontCare chunks carry no payload; Offset is
// meaningless for them (DataSize() is always 0 for DontCare).
type FragmentChunk struct {
	Header ChunkHeader
	Offset int64
}

// FragmentPlan is one self-contained sparse fragment produced by Split: a
// rewritten FileHeader followed by its FragmentChunks. Writing Header.Bytes()
// followed by each chunk's Header.Bytes() and (for chunks with a nonzero
// DataSize) the DataSize() bytes read from the source file at Offset
// produces a byte-exact, independently valid sparse image.
//
// ID identifies the fragment only for log correlation (e.g. "writing
// fragment" / "wrote fragment" lines in a multi-fragment split); it plays
// no role in the wire format or in reconstructing the original image.
type FragmentPlan struct {
	ID     uuid.UUID
	Header FileHeader
	Chunks []FragmentChunk
}

// chunkWireCost is the number of bytes a chunk contributes to a fragment's
// serialized size: its own header plus its payload.
func chunkWireCost(h ChunkHeader) int64 {
	return int64(ChunkHeaderSize) + int64(h.DataSize())
}

// Split repartitions a scanned chunk sequence into an ordered list of
// fragments, each serializing to at most maxBytes bytes, such that flashing
// every fragment in order to the same target partition reconstructs the
// original decoded image (spec.md §4.3).
//
// Every fragment but the first begins with a synthesized DontCare chunk
// whose ChunkSize equals the number of blocks covered by all strictly prior
// fragments; flashing a fragment skips forward over that span on the
// target, leaving the previous fragment's write intact, before laying down
// its own new blocks. Consequently each fragment's Header.Blocks is the
// cumulative block count reached by the end of that fragment, and the final
// fragment's Header.Blocks equals header.Blocks.
func Split(header FileHeader, chunks []ScannedChunk, maxBytes int64) ([]FragmentPlan, error) {
	minFeasible := int64(FileHeaderSize) + 2*int64(ChunkHeaderSize) + int64(header.BlockSize)
	if maxBytes < minFeasible {
		return nil, &PlanInfeasibleError{Reason: fmt.Sprintf("max_bytes=%d is below the minimum feasible fragment size %d", maxBytes, minFeasible)}
	}

	var fragments []FragmentPlan
	var coveredBlocks uint64 // blocks contributed by all fragments closed so far

	var curChunks []FragmentChunk
	curBytes := int64(FileHeaderSize)
	var newBlocks uint64 // blocks newly contributed by the in-progress fragment (excludes its leading chunk)
	leadingAdded := false

	closeFragment := func() {
		fh := New(header.BlockSize, uint32(coveredBlocks+newBlocks), uint32(len(curChunks)))
		fragments = append(fragments, FragmentPlan{ID: uuid.New(), Header: fh, Chunks: curChunks})
		coveredBlocks += newBlocks
		curChunks = nil
		curBytes = FileHeaderSize
		newBlocks = 0
		leadingAdded = false
	}

	// addLeadingIfNeeded prepends the synthesized DontCare offset chunk the
	// first time a fragment after the first one receives real data, and
	// returns the bytes it added (0 if one was already present, or this is
	// the very first fragment).
	addLeadingIfNeeded := func() int64 {
		if coveredBlocks == 0 || leadingAdded {
			return 0
		}
		curChunks = append(curChunks, FragmentChunk{Header: ChunkHeader{
			ChunkType: ChunkTypeDontCare,
			ChunkSize: uint32(coveredBlocks),
			TotalSize: ChunkHeaderSize,
		}})
		leadingAdded = true
		return int64(ChunkHeaderSize)
	}

	// pending is a single-slot redo stack: a chunk that needs to be
	// re-evaluated against a fresh fragment (either because its fragment
	// just closed, or because it is the unconsumed suffix of a Raw chunk
	// that was split at a block boundary).
	var pending []ScannedChunk
	idx := 0
	pop := func() (ScannedChunk, bool) {
		if n := len(pending); n > 0 {
			sc := pending[n-1]
			pending = pending[:n-1]
			return sc, true
		}
		if idx < len(chunks) {
			sc := chunks[idx]
			idx++
			return sc, true
		}
		return ScannedChunk{}, false
	}

	for {
		sc, ok := pop()
		if !ok {
			break
		}

		leadingCost := int64(0)
		if coveredBlocks > 0 && !leadingAdded {
			leadingCost = int64(ChunkHeaderSize)
		}
		cost := chunkWireCost(sc.Header)

		if curBytes+leadingCost+cost <= maxBytes {
			curBytes += addLeadingIfNeeded()
			curChunks = append(curChunks, FragmentChunk{Header: sc.Header, Offset: sc.Offset})
			curBytes += cost
			newBlocks += uint64(sc.Header.ChunkSize)
			continue
		}

		if sc.Header.ChunkType == ChunkTypeRaw {
			avail := maxBytes - curBytes - leadingCost - int64(ChunkHeaderSize)
			if avail < int64(header.BlockSize) {
				closeFragment()
				pending = append(pending, sc)
				continue
			}

			prefixBlocks := uint64(avail) / uint64(header.BlockSize)
			prefixBytes := prefixBlocks * uint64(header.BlockSize)

			curBytes += addLeadingIfNeeded()
			curChunks = append(curChunks, FragmentChunk{
				Header: ChunkHeader{
					ChunkType: ChunkTypeRaw,
					ChunkSize: uint32(prefixBlocks),
					TotalSize: uint32(int64(ChunkHeaderSize) + int64(prefixBytes)),
				},
				Offset: sc.Offset,
			})
			curBytes += int64(ChunkHeaderSize) + int64(prefixBytes)
			newBlocks += prefixBlocks

			suffixBlocks := uint64(sc.Header.ChunkSize) - prefixBlocks
			suffixBytes := suffixBlocks * uint64(header.BlockSize)
			pending = append(pending, ScannedChunk{
				Header: ChunkHeader{
					ChunkType: ChunkTypeRaw,
					ChunkSize: uint32(suffixBlocks),
					TotalSize: uint32(int64(ChunkHeaderSize) + int64(suffixBytes)),
				},
				Offset: sc.Offset + int64(prefixBytes),
				Size:   int64(suffixBytes),
			})
			continue
		}

		// Fill / DontCare / Crc32: atomic, cannot be split at a boundary.
		if len(curChunks) == 0 {
			alone := int64(FileHeaderSize) + leadingCost + cost
			if alone > maxBytes {
				return nil, &PlanInfeasibleError{Reason: fmt.Sprintf("a %s chunk needing %d bytes cannot fit within max_bytes=%d even in a fragment of its own", sc.Header.ChunkType, cost, maxBytes)}
			}
		}
		closeFragment()
		pending = append(pending, sc)
	}

	if len(curChunks) > 0 || len(fragments) == 0 {
		closeFragment()
	}

	return fragments, nil
}
