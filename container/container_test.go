package container

import (
	"bytes"
	"encoding/binary"
	"math/rand"
	"testing"

	"github.com/wippyai/loom-runtime/errors"
)

func payload(n int) []byte {
	r := rand.New(rand.NewSource(int64(n)))
	b := make([]byte, n)
	r.Read(b)
	return b
}

func TestRoundTrip(t *testing.T) {
	sizes := []int{0, 1, 15, 128, 4096, 100000}
	for _, n := range sizes {
		raw := payload(n)
		enc, err := Encode(raw)
		if err != nil {
			t.Fatalf("Encode(%d): %v", n, err)
		}
		dec, err := Decode(enc)
		if err != nil {
			t.Fatalf("Decode(%d): %v", n, err)
		}
		if !bytes.Equal(dec, raw) {
			t.Fatalf("round trip mismatch for %d bytes", n)
		}
	}
}

func TestDecode_Scenario(t *testing.T) {
	raw := payload(128)
	enc, err := Encode(raw)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if string(enc[0:4]) != "LOOM" {
		t.Fatalf("magic bytes = %q, want LOOM", enc[0:4])
	}

	dec, err := Decode(enc)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(dec) != 128 {
		t.Fatalf("decoded %d bytes, want 128", len(dec))
	}

	t.Run("major 3", func(t *testing.T) {
		bad := bytes.Clone(enc)
		binary.LittleEndian.PutUint32(bad[4:8], 3)
		if _, err := Decode(bad); !errors.IsFormat(err) {
			t.Fatalf("Decode = %v, want format error", err)
		}
	})

	t.Run("declared 129", func(t *testing.T) {
		bad := bytes.Clone(enc)
		binary.LittleEndian.PutUint32(bad[12:16], 129)
		if _, err := Decode(bad); !errors.IsFormat(err) {
			t.Fatalf("Decode = %v, want format error", err)
		}
	})

	t.Run("declared 127", func(t *testing.T) {
		bad := bytes.Clone(enc)
		binary.LittleEndian.PutUint32(bad[12:16], 127)
		if _, err := Decode(bad); !errors.IsFormat(err) {
			t.Fatalf("Decode = %v, want format error", err)
		}
	})
}

func TestDecode_CorruptHeader(t *testing.T) {
	enc, err := Encode(payload(64))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	tests := []struct {
		name   string
		offset int
		value  uint32
	}{
		{"magic", 0, 0x47414D49},
		{"major", 4, VersionMajor + 1},
		{"minor", 8, VersionMinor + 1},
		{"size oversized", 12, MaxPayloadSize + 1},
		{"size zero", 12, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bad := bytes.Clone(enc)
			binary.LittleEndian.PutUint32(bad[tt.offset:tt.offset+4], tt.value)
			out, err := Decode(bad)
			if !errors.IsFormat(err) {
				t.Fatalf("Decode = %v, want format error", err)
			}
			if out != nil {
				t.Fatal("expected no output on failure")
			}
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	enc, _ := Encode(payload(256))

	tests := []struct {
		name string
		buf  []byte
	}{
		{"empty", nil},
		{"short header", enc[:10]},
		{"header only", enc[:HeaderSize]},
		{"truncated payload", enc[:len(enc)-8]},
		{"garbage payload", append(bytes.Clone(enc[:HeaderSize]), 0xde, 0xad, 0xbe, 0xef)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(tt.buf); !errors.IsFormat(err) {
				t.Fatalf("Decode = %v, want format error", err)
			}
		})
	}
}

func TestDecodeAt(t *testing.T) {
	raw := payload(4096)
	enc, err := Encode(raw)
	if err != nil {
		t.Fatal(err)
	}

	// Trailing bytes past size are not part of the container.
	padded := append(bytes.Clone(enc), 0xff, 0xff)
	dec, err := DecodeAt(bytes.NewReader(padded), int64(len(enc)))
	if err != nil {
		t.Fatalf("DecodeAt: %v", err)
	}
	if !bytes.Equal(dec, raw) {
		t.Fatal("DecodeAt mismatch")
	}

	for _, size := range []int64{0, 10, HeaderSize} {
		if _, err := DecodeAt(bytes.NewReader(enc), size); !errors.IsFormat(err) {
			t.Errorf("DecodeAt(size=%d) = %v, want format error", size, err)
		}
	}
}

func TestDecode_DoesNotMutateInput(t *testing.T) {
	enc, _ := Encode(payload(32))
	binary.LittleEndian.PutUint32(enc[4:8], 9)
	before := bytes.Clone(enc)

	_, _ = Decode(enc)

	if !bytes.Equal(before, enc) {
		t.Fatal("Decode mutated its input")
	}
}

func TestReadHeader(t *testing.T) {
	enc, _ := Encode(payload(77))
	h, err := ReadHeader(enc)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if h.Magic != Magic || h.Major != VersionMajor || h.Minor != VersionMinor || h.UncompressedSize != 77 {
		t.Fatalf("unexpected header %+v", h)
	}
}
