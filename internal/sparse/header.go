// Package sparse implements the Android Sparse Image (v1.0) binary
// container: header codecs, a single-pass scanner, an expand engine that
// materializes the decoded image, and a split engine that repartitions a
// scanned chunk sequence into independently-flashable fragments.
package sparse

import (
	"encoding/binary"
	"fmt"
	"io"
)

// readFileHeader reads and decodes a FileHeader from the start of r.
func readFileHeader(r io.Reader) (FileHeader, error) {
	var b [FileHeaderSize]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return FileHeader{}, &StructuralError{Op: "read file header", Err: err}
	}
	return FileHeaderFromBytes(b[:])
}

// readChunkHeader reads and decodes one ChunkHeader from r.
func readChunkHeader(r io.Reader) (ChunkHeader, error) {
	var b [ChunkHeaderSize]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return ChunkHeader{}, &StructuralError{Op: "read chunk header", Err: err}
	}
	return ChunkHeaderFromBytes(b[:])
}

// FileHeaderSize is the fixed on-wire size of a sparse image file header.
const FileHeaderSize = 28

// ChunkHeaderSize is the fixed on-wire size of a sparse image chunk header.
const ChunkHeaderSize = 12

// FileHeaderMagic identifies an Android sparse image.
const FileHeaderMagic = 0xED26FF3A

// SupportedMajorVersion is the only sparse format major version this
// package understands.
const SupportedMajorVersion = 1

// ChunkType identifies the kind of payload a ChunkHeader introduces.
type ChunkType uint16

// Chunk type codes, as they appear on the wire.
const (
	ChunkTypeRaw      ChunkType = 0xCAC1
	ChunkTypeFill     ChunkType = 0xCAC2
	ChunkTypeDontCare ChunkType = 0xCAC3
	ChunkTypeCrc32    ChunkType = 0xCAC4
)

// String renders a ChunkType the way `inspect` prints it.
func (t ChunkType) String() string {
	switch t {
	case ChunkTypeRaw:
		return "Raw"
	case ChunkTypeFill:
		return "Fill"
	case ChunkTypeDontCare:
		return "DontCare"
	case ChunkTypeCrc32:
		return "Crc32"
	default:
		return fmt.Sprintf("Unknown(0x%04x)", uint16(t))
	}
}

// FileHeader is the 28-byte sparse image preamble.
type FileHeader struct {
	MajorVersion  uint16
	MinorVersion  uint16
	FileHdrSize   uint16
	ChunkHdrSize  uint16
	BlockSize     uint32
	Blocks        uint32
	Chunks        uint32
	Checksum      uint32
}

// FileHeaderFromBytes decodes a 28-byte block into a FileHeader, validating
// magic, version, declared header sizes and block-size alignment.
func FileHeaderFromBytes(b []byte) (FileHeader, error) {
	if len(b) != FileHeaderSize {
		return FileHeader{}, &StructuralError{Op: "decode file header", Err: fmt.Errorf("%w: want %d bytes, got %d", ErrTruncated, FileHeaderSize, len(b))}
	}

	magic := binary.LittleEndian.Uint32(b[0:4])
	if magic != FileHeaderMagic {
		return FileHeader{}, &StructuralError{Op: "decode file header", Err: fmt.Errorf("%w: 0x%08x", ErrBadMagic, magic)}
	}

	h := FileHeader{
		MajorVersion: binary.LittleEndian.Uint16(b[4:6]),
		MinorVersion: binary.LittleEndian.Uint16(b[6:8]),
		FileHdrSize:  binary.LittleEndian.Uint16(b[8:10]),
		ChunkHdrSize: binary.LittleEndian.Uint16(b[10:12]),
		BlockSize:    binary.LittleEndian.Uint32(b[12:16]),
		Blocks:       binary.LittleEndian.Uint32(b[16:20]),
		Chunks:       binary.LittleEndian.Uint32(b[20:24]),
		Checksum:     binary.LittleEndian.Uint32(b[24:28]),
	}

	if h.MajorVersion != SupportedMajorVersion {
		return FileHeader{}, &StructuralError{Op: "decode file header", Err: fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.MajorVersion)}
	}
	if h.FileHdrSize != FileHeaderSize {
		return FileHeader{}, &StructuralError{Op: "decode file header", Err: fmt.Errorf("%w: file_hdr_size=%d", ErrBadHeaderSize, h.FileHdrSize)}
	}
	if h.ChunkHdrSize != ChunkHeaderSize {
		return FileHeader{}, &StructuralError{Op: "decode file header", Err: fmt.Errorf("%w: chunk_hdr_size=%d", ErrBadHeaderSize, h.ChunkHdrSize)}
	}
	if h.BlockSize == 0 || h.BlockSize%4 != 0 {
		return FileHeader{}, &StructuralError{Op: "decode file header", Err: fmt.Errorf("%w: block_size=%d", ErrBadBlockSize, h.BlockSize)}
	}

	return h, nil
}

// Bytes encodes the FileHeader back to its 28-byte wire form.
func (h FileHeader) Bytes() [FileHeaderSize]byte {
	var b [FileHeaderSize]byte
	binary.LittleEndian.PutUint32(b[0:4], FileHeaderMagic)
	binary.LittleEndian.PutUint16(b[4:6], h.MajorVersion)
	binary.LittleEndian.PutUint16(b[6:8], h.MinorVersion)
	binary.LittleEndian.PutUint16(b[8:10], FileHeaderSize)
	binary.LittleEndian.PutUint16(b[10:12], ChunkHeaderSize)
	binary.LittleEndian.PutUint32(b[12:16], h.BlockSize)
	binary.LittleEndian.PutUint32(b[16:20], h.Blocks)
	binary.LittleEndian.PutUint32(b[20:24], h.Chunks)
	binary.LittleEndian.PutUint32(b[24:28], h.Checksum)
	return b
}

// TotalSize is the byte length of the fully decoded image.
func (h FileHeader) TotalSize() uint64 {
	return uint64(h.BlockSize) * uint64(h.Blocks)
}

// New builds a FileHeader with the fixed version/header-size fields already
// populated, as used by the split planner when synthesizing fragment
// headers.
func New(blockSize, blocks, chunks uint32) FileHeader {
	return FileHeader{
		MajorVersion: SupportedMajorVersion,
		MinorVersion: 0,
		FileHdrSize:  FileHeaderSize,
		ChunkHdrSize: ChunkHeaderSize,
		BlockSize:    blockSize,
		Blocks:       blocks,
		Chunks:       chunks,
		Checksum:     0,
	}
}

// ChunkHeader is the 12-byte header preceding every chunk's payload.
type ChunkHeader struct {
	ChunkType ChunkType
	ChunkSize uint32
	TotalSize uint32
}

// ChunkHeaderFromBytes decodes a 12-byte block into a ChunkHeader, validating
// the chunk type code and the minimum total size.
func ChunkHeaderFromBytes(b []byte) (ChunkHeader, error) {
	if len(b) != ChunkHeaderSize {
		return ChunkHeader{}, &StructuralError{Op: "decode chunk header", Err: fmt.Errorf("%w: want %d bytes, got %d", ErrTruncated, ChunkHeaderSize, len(b))}
	}

	typ := ChunkType(binary.LittleEndian.Uint16(b[0:2]))
	switch typ {
	case ChunkTypeRaw, ChunkTypeFill, ChunkTypeDontCare, ChunkTypeCrc32:
	default:
		return ChunkHeader{}, &StructuralError{Op: "decode chunk header", Err: fmt.Errorf("%w: 0x%04x", ErrUnknownChunkType, uint16(typ))}
	}

	total := binary.LittleEndian.Uint32(b[8:12])
	if total < ChunkHeaderSize {
		return ChunkHeader{}, &StructuralError{Op: "decode chunk header", Err: fmt.Errorf("%w: total_size=%d", ErrBadChunkSize, total)}
	}

	h := ChunkHeader{
		ChunkType: typ,
		ChunkSize: binary.LittleEndian.Uint32(b[4:8]),
		TotalSize: total,
	}
	return h, nil
}

// Bytes encodes the ChunkHeader back to its 12-byte wire form.
func (c ChunkHeader) Bytes() [ChunkHeaderSize]byte {
	var b [ChunkHeaderSize]byte
	binary.LittleEndian.PutUint16(b[0:2], uint16(c.ChunkType))
	binary.LittleEndian.PutUint16(b[2:4], 0) // reserved
	binary.LittleEndian.PutUint32(b[4:8], c.ChunkSize)
	binary.LittleEndian.PutUint32(b[8:12], c.TotalSize)
	return b
}

// DataSize is the number of payload bytes on the wire after this header.
func (c ChunkHeader) DataSize() uint32 {
	return c.TotalSize - ChunkHeaderSize
}

// OutSize is the number of expanded output bytes this chunk represents.
func (c ChunkHeader) OutSize(h FileHeader) uint64 {
	return uint64(c.ChunkSize) * uint64(h.BlockSize)
}

// ValidatePayloadSize checks that DataSize() agrees with what ChunkType
// requires, per spec.md §3.
func (c ChunkHeader) ValidatePayloadSize() error {
	data := c.DataSize()
	switch c.ChunkType {
	case ChunkTypeRaw:
		// validated by the caller against block_size * chunk_size, since
		// that requires the FileHeader; see ValidateRawSize.
		return nil
	case ChunkTypeFill:
		if data != 4 {
			return &StructuralError{Op: "validate chunk", Err: fmt.Errorf("%w: fill data_size=%d, want 4", ErrBadPayloadSize, data)}
		}
	case ChunkTypeDontCare:
		if data != 0 {
			return &StructuralError{Op: "validate chunk", Err: fmt.Errorf("%w: dontcare data_size=%d, want 0", ErrBadPayloadSize, data)}
		}
	case ChunkTypeCrc32:
		if data != 4 {
			return &StructuralError{Op: "validate chunk", Err: fmt.Errorf("%w: crc32 data_size=%d, want 4", ErrBadPayloadSize, data)}
		}
	}
	return nil
}

// ValidateRawSize checks that a Raw chunk's DataSize matches
// chunk_size * block_size, per spec.md §3. Kept separate from
// ValidatePayloadSize because it needs the FileHeader's block size.
func (c ChunkHeader) ValidateRawSize(h FileHeader) error {
	if c.ChunkType != ChunkTypeRaw {
		return nil
	}
	want := c.OutSize(h)
	if uint64(c.DataSize()) != want {
		return &StructuralError{Op: "validate chunk", Err: fmt.Errorf("%w: raw data_size=%d, want %d", ErrBadPayloadSize, c.DataSize(), want)}
	}
	return nil
}
