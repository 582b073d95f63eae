package embed

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/hsearch/hsearch/internal/hashutil"
)

// encodeFP16 is the test-side inverse of decodeFP16, producing a
// little-endian IEEE-754 binary16 pair for a small finite float.
func encodeFP16(v float32) []byte {
	bits := math.Float32bits(v)
	sign := (bits >> 16) & 0x8000
	exp := int32((bits>>23)&0xFF) - 127 + 15
	frac := (bits >> 13) & 0x3FF
	if exp <= 0 {
		exp = 0
		frac = 0
	} else if exp >= 0x1F {
		exp = 0x1E
		frac = 0x3FF
	}
	out := uint16(sign) | uint16(exp<<10) | uint16(frac)
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, out)
	return b
}

// packSubScales is the test-side inverse of unpackSubScales: packs 8
// (scale, min) pairs, each already in [0,1], into the 12-byte 6-bit
// bitstream the production decoder expects.
func packSubScales(scales, mins [8]float64) []byte {
	out := make([]byte, 12)
	var bitPos uint
	write6 := func(v uint8) {
		for b := 5; b >= 0; b-- {
			bit := (v >> uint(b)) & 1
			byteIdx := bitPos / 8
			bitIdx := 7 - (bitPos % 8)
			out[byteIdx] |= bit << bitIdx
			bitPos++
		}
	}
	for sub := 0; sub < 8; sub++ {
		write6(uint8(scales[sub] * 63))
		write6(uint8(mins[sub] * 63))
	}
	return out
}

// buildSuperblock constructs one valid 144-byte quantized block
// encoding the given weights (length <= 256) at a uniform scale.
func buildSuperblock(weights []float32) []byte {
	block := make([]byte, superblockBytes)
	copy(block[0:2], encodeFP16(1.0))  // d
	copy(block[2:4], encodeFP16(0.0))  // dmin
	var scales, mins [8]float64
	for i := range scales {
		scales[i] = 1.0
		mins[i] = 0
	}
	copy(block[4:16], packSubScales(scales, mins))

	quant := block[16:144]
	for i, w := range weights {
		// value = d*scale*q/15 - dmin*min => q = value*15 (since d=scale=1, dmin=0)
		q := int(w*15 + 0.5)
		if q < 0 {
			q = 0
		}
		if q > 15 {
			q = 15
		}
		if i%2 == 0 {
			quant[i/2] |= byte(q)
		} else {
			quant[i/2] |= byte(q) << 4
		}
	}
	return block
}

// buildTestModel writes a minimal but structurally valid model file at
// dir/model.hsqm with vocab entries mapping token->vector via the
// streaming path only (no lookup table), and returns its path.
func buildTestModel(t *testing.T, dir string, dim int, vocab map[string][]float32) string {
	t.Helper()

	type row struct {
		hash uint64
		vec  []float32
	}
	var rows []row
	for tok, vec := range vocab {
		rows = append(rows, row{hash: testTokenHash(tok), vec: vec})
	}

	numSuperblocks := dim / 256
	if dim%256 != 0 {
		numSuperblocks++
	}
	rowStride := numSuperblocks * superblockBytes

	vocabSize := len(rows)
	metadataSize := headerFixedSize + vocabSize*12
	tensorDataOffset := metadataSize

	path := filepath.Join(dir, "model.hsqm")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	hdr := make([]byte, headerFixedSize)
	copy(hdr[0:4], magic[:])
	binary.LittleEndian.PutUint32(hdr[4:8], formatVersion)
	binary.LittleEndian.PutUint32(hdr[8:12], uint32(dim))
	binary.LittleEndian.PutUint32(hdr[12:16], uint32(vocabSize))
	binary.LittleEndian.PutUint64(hdr[16:24], uint64(tensorDataOffset))
	binary.LittleEndian.PutUint64(hdr[24:32], uint64(metadataSize))
	binary.LittleEndian.PutUint32(hdr[32:36], 0) // no lookup table
	if _, err := f.Write(hdr); err != nil {
		t.Fatal(err)
	}

	for i, r := range rows {
		entry := make([]byte, 12)
		binary.LittleEndian.PutUint64(entry[0:8], r.hash)
		binary.LittleEndian.PutUint32(entry[8:12], uint32(i))
		if _, err := f.Write(entry); err != nil {
			t.Fatal(err)
		}
	}

	for _, r := range rows {
		rowBytes := make([]byte, rowStride)
		remaining := dim
		for sb := 0; remaining > 0; sb++ {
			n := remaining
			if n > 256 {
				n = 256
			}
			weights := make([]float32, n)
			copy(weights, r.vec[sb*256:sb*256+n])
			copy(rowBytes[sb*superblockBytes:(sb+1)*superblockBytes], buildSuperblock(weights))
			remaining -= n
		}
		if _, err := f.Write(rowBytes); err != nil {
			t.Fatal(err)
		}
	}

	return path
}

// testTokenHash uses the same hash the embedder computes per token, so
// tests can construct vocab tables addressable by it.
func testTokenHash(tok string) uint64 {
	return hashutil.ContentHash([]byte(tok))
}
