// Package artifact implements the compiled rubric file (zeka.dat) of
// spec.md §4.7/§6: a header binding the field prime, PRNG seed, AEAD
// AAD, and the byte offsets of the three Lagrange coefficient vectors
// and four side-tables, followed by that data itself.
//
// Per spec.md §6: "Little-endian for header length fields; big-endian
// for field elements." The four side-tables (variable-list nodes,
// expression records, ciphertext blobs, automaton patterns) are
// RLP-encoded, the same
// compact binary record format the compiler's go-ethereum dependency
// already provides for exactly this shape of data: pointer-bearing,
// variable-length records.
package artifact

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/zekaeng/zeka/internal/zerr"
)

// Magic is the fixed 8-byte file signature (spec.md §6).
var Magic = [8]byte{'Z', 'E', 'K', 'A', 0, 0, 0, 1}

// Category is one of the fixed, ordered rubric categories of spec.md §6.
type Category uint8

const (
	CategoryFQ Category = iota
	CategoryUserAuditing
	CategoryAccountPolicy
	CategoryLocalPolicy
	CategoryDefensiveCountermeasure
	CategoryUncategorized
	CategoryServiceAuditing
	CategoryOSUpdate
	CategoryAppUpdate
	CategoryProhibitedFile
	CategoryUnwantedSoftware
	CategoryMalware
	CategoryAppsec
	categoryCount
)

// CategoryNames lists categories in their declared report order
// (spec.md §6: "Categories render on the score report in the order
// listed above").
var CategoryNames = [categoryCount]string{
	"fq", "user_auditing", "account_policy", "local_policy",
	"defensive_countermeasure", "uncategorized", "service_auditing",
	"os_update", "app_update", "prohibited_file", "unwanted_software",
	"malware", "appsec",
}

// ParseCategory resolves a YAML category string; ok is false for any
// value outside the fixed list.
func ParseCategory(s string) (Category, bool) {
	for i, name := range CategoryNames {
		if name == s {
			return Category(i), true
		}
	}
	return 0, false
}

func (c Category) String() string {
	if int(c) >= len(CategoryNames) {
		return fmt.Sprintf("category(%d)", uint8(c))
	}
	return CategoryNames[c]
}

// Header is the fixed-shape preamble of a zeka.dat file. Offsets and
// sizes are absolute byte positions into the file, little-endian on
// disk; PrimeBytes is the modulus itself, a big-endian unsigned
// integer of PrimeLen bytes.
type Header struct {
	AEADVersion uint8
	PrimeBytes  []byte
	Seed        int64
	AAD         []byte
	Title       []byte
	Categories  uint16 // bitmask over Category, bit i == Categories[i] used

	L1Count, L2Count, L3Count          uint32
	L1Offset, L2Offset, L3Offset       uint64
	VarTableOffset, VarTableSize       uint64
	ExprTableOffset, ExprTableSize     uint64
	CipherTableOffset, CipherTableSize uint64
	AutomatonTableOffset, AutomatonTableSize uint64
}

// Prime reconstructs the modulus as a big.Int.
func (h *Header) Prime() *big.Int {
	return new(big.Int).SetBytes(h.PrimeBytes)
}

func putUint32(w *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.Write(b[:])
}

func putUint64(w *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.Write(b[:])
}

func putInt64(w *bytes.Buffer, v int64) { putUint64(w, uint64(v)) }

// Encode serializes the header. It does not include the trailing
// coefficient vectors or side-tables.
func (h *Header) Encode() []byte {
	var buf bytes.Buffer
	buf.Write(Magic[:])
	buf.WriteByte(h.AEADVersion)
	putUint32(&buf, uint32(len(h.PrimeBytes)))
	buf.Write(h.PrimeBytes)
	putInt64(&buf, h.Seed)
	putUint32(&buf, uint32(len(h.AAD)))
	buf.Write(h.AAD)
	putUint32(&buf, uint32(len(h.Title)))
	buf.Write(h.Title)
	var catBuf [2]byte
	binary.LittleEndian.PutUint16(catBuf[:], h.Categories)
	buf.Write(catBuf[:])
	putUint32(&buf, h.L1Count)
	putUint32(&buf, h.L2Count)
	putUint32(&buf, h.L3Count)
	putUint64(&buf, h.L1Offset)
	putUint64(&buf, h.L2Offset)
	putUint64(&buf, h.L3Offset)
	putUint64(&buf, h.VarTableOffset)
	putUint64(&buf, h.VarTableSize)
	putUint64(&buf, h.ExprTableOffset)
	putUint64(&buf, h.ExprTableSize)
	putUint64(&buf, h.CipherTableOffset)
	putUint64(&buf, h.CipherTableSize)
	putUint64(&buf, h.AutomatonTableOffset)
	putUint64(&buf, h.AutomatonTableSize)
	return buf.Bytes()
}

// DecodeHeader reads a header from the front of raw, returning the
// header and the number of bytes consumed. It validates the magic and
// every length field against raw's total size (artifact-corrupt per
// spec.md §7).
func DecodeHeader(raw []byte) (*Header, int, error) {
	if len(raw) < len(Magic)+1+4 {
		return nil, 0, fmt.Errorf("%w: truncated header", zerr.ErrArtifactCorrupt)
	}
	if !bytes.Equal(raw[:len(Magic)], Magic[:]) {
		return nil, 0, fmt.Errorf("%w: bad magic", zerr.ErrArtifactCorrupt)
	}
	pos := len(Magic)
	h := &Header{}
	h.AEADVersion = raw[pos]
	pos++

	readUint32 := func() (uint32, error) {
		if pos+4 > len(raw) {
			return 0, fmt.Errorf("%w: truncated length field", zerr.ErrArtifactCorrupt)
		}
		v := binary.LittleEndian.Uint32(raw[pos : pos+4])
		pos += 4
		return v, nil
	}
	readUint64 := func() (uint64, error) {
		if pos+8 > len(raw) {
			return 0, fmt.Errorf("%w: truncated length field", zerr.ErrArtifactCorrupt)
		}
		v := binary.LittleEndian.Uint64(raw[pos : pos+8])
		pos += 8
		return v, nil
	}
	readBytes := func(n uint32) ([]byte, error) {
		if pos+int(n) > len(raw) {
			return nil, fmt.Errorf("%w: field extends past end of file", zerr.ErrArtifactCorrupt)
		}
		b := raw[pos : pos+int(n)]
		pos += int(n)
		return b, nil
	}

	primeLen, err := readUint32()
	if err != nil {
		return nil, 0, err
	}
	h.PrimeBytes, err = readBytes(primeLen)
	if err != nil {
		return nil, 0, err
	}
	if len(h.PrimeBytes) == 0 {
		return nil, 0, fmt.Errorf("%w: zero-length prime", zerr.ErrArtifactCorrupt)
	}

	seed, err := readUint64()
	if err != nil {
		return nil, 0, err
	}
	h.Seed = int64(seed)

	aadLen, err := readUint32()
	if err != nil {
		return nil, 0, err
	}
	h.AAD, err = readBytes(aadLen)
	if err != nil {
		return nil, 0, err
	}

	titleLen, err := readUint32()
	if err != nil {
		return nil, 0, err
	}
	h.Title, err = readBytes(titleLen)
	if err != nil {
		return nil, 0, err
	}

	catBytes, err := readBytes(2)
	if err != nil {
		return nil, 0, err
	}
	h.Categories = binary.LittleEndian.Uint16(catBytes)

	if h.L1Count, err = readUint32(); err != nil {
		return nil, 0, err
	}
	if h.L2Count, err = readUint32(); err != nil {
		return nil, 0, err
	}
	if h.L3Count, err = readUint32(); err != nil {
		return nil, 0, err
	}
	if h.L1Offset, err = readUint64(); err != nil {
		return nil, 0, err
	}
	if h.L2Offset, err = readUint64(); err != nil {
		return nil, 0, err
	}
	if h.L3Offset, err = readUint64(); err != nil {
		return nil, 0, err
	}
	if h.VarTableOffset, err = readUint64(); err != nil {
		return nil, 0, err
	}
	if h.VarTableSize, err = readUint64(); err != nil {
		return nil, 0, err
	}
	if h.ExprTableOffset, err = readUint64(); err != nil {
		return nil, 0, err
	}
	if h.ExprTableSize, err = readUint64(); err != nil {
		return nil, 0, err
	}
	if h.CipherTableOffset, err = readUint64(); err != nil {
		return nil, 0, err
	}
	if h.CipherTableSize, err = readUint64(); err != nil {
		return nil, 0, err
	}
	if h.AutomatonTableOffset, err = readUint64(); err != nil {
		return nil, 0, err
	}
	if h.AutomatonTableSize, err = readUint64(); err != nil {
		return nil, 0, err
	}

	for _, region := range []struct {
		off, size uint64
	}{
		{h.VarTableOffset, h.VarTableSize},
		{h.ExprTableOffset, h.ExprTableSize},
		{h.CipherTableOffset, h.CipherTableSize},
		{h.AutomatonTableOffset, h.AutomatonTableSize},
	} {
		if region.off+region.size > uint64(len(raw)) {
			return nil, 0, fmt.Errorf("%w: side-table region out of bounds", zerr.ErrArtifactCorrupt)
		}
	}

	return h, pos, nil
}
