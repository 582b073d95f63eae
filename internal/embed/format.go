package embed

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"sort"

	"github.com/blevesearch/mmap-go"
	"github.com/hsearch/hsearch/internal/hserr"
)

// On-disk model format: a fixed header, a metadata section, a
// tensor-info table, and a tensor data blob. Only the header and
// metadata are memory-mapped; tensor data is read by seek on demand.
// This layout is this package's own design, validated structurally
// rather than against a reference decoder.
var magic = [4]byte{'H', 'S', 'Q', 'M'}

const (
	formatVersion = 1

	// superblockWeights is the number of weights covered by one
	// quantized block: typically 144 bytes per 256 weights.
	superblockWeights = 256
	superblockBytes   = 144

	headerFixedSize = 4 /*magic*/ + 4 /*version*/ + 4 /*dim*/ + 4 /*vocabSize*/ +
		8 /*tensorDataOffset*/ + 8 /*metadataSize*/ + 4 /*lookupCount*/
)

// header is the fixed-size prefix of the model file.
type header struct {
	Dim              uint32
	VocabSize        uint32
	TensorDataOffset uint64
	MetadataSize     uint64 // bytes of header+metadata mapped via mmap
	LookupCount      uint32
}

// vocabEntry maps a token hash to its row in the tensor data blob,
// sorted by Hash for binary search.
type vocabEntry struct {
	Hash uint64
	Row  uint32
}

// modelFile holds the mmap'd header/metadata and the seekable handle
// used for streaming tensor reads. It never loads tensor data whole.
type modelFile struct {
	f    *os.File
	mm   mmap.MMap
	hdr  header
	vocab []vocabEntry // sorted by Hash
	side  *sideTable   // lookup-first path, nil if LookupCount == 0
}

// openModelFile memory-maps path's header/metadata and indexes the
// vocabulary table. Any structural problem — short file, bad magic,
// unsupported version, a size that doesn't account for its own tables
// — is a ModelFormat error, which is always fatal.
func openModelFile(path string) (*modelFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, hserr.Wrap(hserr.Io, "embed: open model file", err).WithPath(path)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, hserr.Wrap(hserr.Io, "embed: stat model file", err)
	}
	if info.Size() < headerFixedSize {
		f.Close()
		return nil, hserr.New(hserr.ModelFormat, "embed: file too small for header").WithPath(path)
	}

	hdrBuf := make([]byte, headerFixedSize)
	if _, err := f.ReadAt(hdrBuf, 0); err != nil {
		f.Close()
		return nil, hserr.Wrap(hserr.Io, "embed: read header", err)
	}

	if !bytes.Equal(hdrBuf[0:4], magic[:]) {
		f.Close()
		return nil, hserr.New(hserr.ModelFormat, "embed: bad magic").WithPath(path)
	}
	version := binary.LittleEndian.Uint32(hdrBuf[4:8])
	if version != formatVersion {
		f.Close()
		return nil, hserr.New(hserr.ModelFormat, fmt.Sprintf("embed: unsupported format version %d", version)).WithPath(path)
	}
	h := header{
		Dim:              binary.LittleEndian.Uint32(hdrBuf[8:12]),
		VocabSize:        binary.LittleEndian.Uint32(hdrBuf[12:16]),
		TensorDataOffset: binary.LittleEndian.Uint64(hdrBuf[16:24]),
		MetadataSize:     binary.LittleEndian.Uint64(hdrBuf[24:32]),
		LookupCount:      binary.LittleEndian.Uint32(hdrBuf[32:36]),
	}
	if h.Dim == 0 || h.Dim > 1<<20 {
		f.Close()
		return nil, hserr.New(hserr.ModelFormat, "embed: implausible dimension").WithPath(path)
	}
	if h.MetadataSize < headerFixedSize || h.MetadataSize > uint64(info.Size()) {
		f.Close()
		return nil, hserr.New(hserr.ModelFormat, "embed: metadata size inconsistent with file size").WithPath(path)
	}
	if h.TensorDataOffset < h.MetadataSize || h.TensorDataOffset > uint64(info.Size()) {
		f.Close()
		return nil, hserr.New(hserr.ModelFormat, "embed: tensor data offset inconsistent").WithPath(path)
	}

	mm, err := mmap.MapRegion(f, int(h.MetadataSize), mmap.RDONLY, 0, 0)
	if err != nil {
		f.Close()
		return nil, hserr.Wrap(hserr.Io, "embed: mmap header/metadata", err)
	}

	vocab, err := parseVocab(mm, h)
	if err != nil {
		mm.Unmap()
		f.Close()
		return nil, err
	}

	mf := &modelFile{f: f, mm: mm, hdr: h, vocab: vocab}

	if h.LookupCount > 0 {
		side, err := newSideTable(mm, h)
		if err != nil {
			mm.Unmap()
			f.Close()
			return nil, err
		}
		mf.side = side
	}

	return mf, nil
}

// parseVocab reads the (hash uint64, row uint32) pairs immediately
// following the fixed header, sorted ascending by hash so lookups can
// binary search.
func parseVocab(mm mmap.MMap, h header) ([]vocabEntry, error) {
	const entrySize = 8 + 4
	need := headerFixedSize + int(h.VocabSize)*entrySize
	if need > len(mm) {
		return nil, hserr.New(hserr.ModelFormat, "embed: vocab table exceeds metadata region")
	}
	out := make([]vocabEntry, h.VocabSize)
	off := headerFixedSize
	for i := range out {
		out[i] = vocabEntry{
			Hash: binary.LittleEndian.Uint64(mm[off : off+8]),
			Row:  binary.LittleEndian.Uint32(mm[off+8 : off+12]),
		}
		off += entrySize
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hash < out[j].Hash })
	for i := 1; i < len(out); i++ {
		if out[i].Hash == out[i-1].Hash {
			return nil, hserr.New(hserr.ModelFormat, "embed: duplicate vocab hash")
		}
	}
	return out, nil
}

func (mf *modelFile) rowForHash(hash uint64) (uint32, bool) {
	i := sort.Search(len(mf.vocab), func(i int) bool { return mf.vocab[i].Hash >= hash })
	if i < len(mf.vocab) && mf.vocab[i].Hash == hash {
		return mf.vocab[i].Row, true
	}
	return 0, false
}

// superblocksPerRow is the number of quantized superblocks needed to
// cover dim weights.
func superblocksPerRow(dim uint32) int {
	n := int(dim) / superblockWeights
	if int(dim)%superblockWeights != 0 {
		n++
	}
	return n
}

func (mf *modelFile) rowByteOffset(row uint32) int64 {
	rowStride := int64(superblocksPerRow(mf.hdr.Dim)) * superblockBytes
	return int64(mf.hdr.TensorDataOffset) + int64(row)*rowStride
}

func (mf *modelFile) rowByteLength() int {
	return superblocksPerRow(mf.hdr.Dim) * superblockBytes
}

func (mf *modelFile) close() error {
	if mf.mm != nil {
		_ = mf.mm.Unmap()
	}
	if mf.f != nil {
		return mf.f.Close()
	}
	return nil
}
