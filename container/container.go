package container

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/klauspost/compress/zlib"

	"github.com/wippyai/loom-runtime/errors"
)

// Executable container constants. A container whose magic or version fields
// differ from these is rejected outright.
const (
	Magic        uint32 = 0x4D4F4F4C // "LOOM" little-endian
	VersionMajor uint32 = 2
	VersionMinor uint32 = 0

	// HeaderSize is four fixed-width u32 fields.
	HeaderSize = 16

	// MaxPayloadSize caps the declared uncompressed size so a corrupt header
	// cannot force a huge allocation.
	MaxPayloadSize = 1 << 30
)

// Header is the fixed-size prefix of an executable container.
type Header struct {
	Magic            uint32
	Major            uint32
	Minor            uint32
	UncompressedSize uint32
}

// ReadHeader parses and validates the container header.
func ReadHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, errors.Format(errors.PhaseDecode, "container too short: %d bytes, header needs %d", len(buf), HeaderSize)
	}

	h := Header{
		Magic:            binary.LittleEndian.Uint32(buf[0:4]),
		Major:            binary.LittleEndian.Uint32(buf[4:8]),
		Minor:            binary.LittleEndian.Uint32(buf[8:12]),
		UncompressedSize: binary.LittleEndian.Uint32(buf[12:16]),
	}

	if h.Magic != Magic {
		return h, errors.Format(errors.PhaseDecode, "binary id mismatch: got %#08x", h.Magic)
	}
	if h.Major != VersionMajor {
		return h, errors.Format(errors.PhaseDecode, "major version mismatch: got %d, want %d", h.Major, VersionMajor)
	}
	if h.Minor != VersionMinor {
		return h, errors.Format(errors.PhaseDecode, "minor version mismatch: got %d, want %d", h.Minor, VersionMinor)
	}
	if h.UncompressedSize > MaxPayloadSize {
		return h, errors.Format(errors.PhaseDecode, "declared size %d exceeds limit %d", h.UncompressedSize, MaxPayloadSize)
	}

	return h, nil
}

// Decode validates the header and decompresses the payload into a buffer
// of exactly the declared size. buf is never modified.
func Decode(buf []byte) ([]byte, error) {
	return DecodeAt(bytes.NewReader(buf), int64(len(buf)))
}

// DecodeAt is Decode over the first size bytes of r. The compressed
// payload is streamed from r, so a memory-mapped file is never copied.
func DecodeAt(r io.ReaderAt, size int64) ([]byte, error) {
	var hdr [HeaderSize]byte
	n := int64(HeaderSize)
	if size < n {
		n = max(size, 0)
	}
	if n > 0 {
		if _, err := r.ReadAt(hdr[:n], 0); err != nil {
			return nil, errors.FormatCause(errors.PhaseDecode, "problem reading container header", err)
		}
	}
	h, err := ReadHeader(hdr[:n])
	if err != nil {
		return nil, err
	}

	zr, err := zlib.NewReader(io.NewSectionReader(r, HeaderSize, size-HeaderSize))
	if err != nil {
		return nil, errors.FormatCause(errors.PhaseDecode, "problem uncompressing executable assembly", err)
	}
	defer zr.Close()

	out := make([]byte, h.UncompressedSize)
	if _, err := io.ReadFull(zr, out); err != nil {
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return nil, errors.Format(errors.PhaseDecode, "read size mismatch: payload shorter than declared %d bytes", h.UncompressedSize)
		}
		return nil, errors.FormatCause(errors.PhaseDecode, "problem uncompressing executable assembly", err)
	}

	// The stream must end exactly at the declared size; reading past it also
	// verifies the zlib checksum.
	var extra [1]byte
	m, err := zr.Read(extra[:])
	if m > 0 {
		return nil, errors.Format(errors.PhaseDecode, "read size mismatch: payload longer than declared %d bytes", h.UncompressedSize)
	}
	if err != nil && err != io.EOF {
		return nil, errors.FormatCause(errors.PhaseDecode, "problem uncompressing executable assembly", err)
	}

	return out, nil
}

// Encode compresses raw and prefixes it with a current-version header.
func Encode(raw []byte) ([]byte, error) {
	if len(raw) > MaxPayloadSize {
		return nil, errors.InvalidInput(errors.PhaseDecode, "payload exceeds container size limit")
	}

	var buf bytes.Buffer
	buf.Grow(HeaderSize + len(raw)/2)

	var hdr [HeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[0:4], Magic)
	binary.LittleEndian.PutUint32(hdr[4:8], VersionMajor)
	binary.LittleEndian.PutUint32(hdr[8:12], VersionMinor)
	binary.LittleEndian.PutUint32(hdr[12:16], uint32(len(raw)))
	buf.Write(hdr[:])

	zw, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(raw); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
