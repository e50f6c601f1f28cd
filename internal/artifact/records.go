package artifact

import (
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/zekaeng/zeka/internal/descriptor"
)

// PointerRecord is the RLP-encodable form of descriptor.Pointer: a
// side-table index plus its has-next continuation flag (spec.md §4.7).
type PointerRecord struct {
	Index   uint32
	HasNext bool
}

func toRecord(p descriptor.Pointer) PointerRecord {
	return PointerRecord{Index: p.Index, HasNext: p.HasNext}
}

func (p PointerRecord) toPointer() descriptor.Pointer {
	return descriptor.Pointer{Index: p.Index, HasNext: p.HasNext}
}

// VarListNode is one link of the variable-reference list an expression
// record walks to enumerate the identifiers it references (spec.md
// §4.5's "link to next referenced variable identifier for iteration").
type VarListNode struct {
	VarID uint16
	Next  PointerRecord
}

// ExpressionRecord is the expression side-table entry a CheckBooleanExpr
// descriptor's ExprPtr resolves to (spec.md §4.5).
type ExpressionRecord struct {
	Source      string
	StartState  uint32
	VulnPtr     PointerRecord
	AEADTag     [16]byte
	FirstVarRef PointerRecord
}

// CipherRecord is the ciphertext side-table entry a VulnerabilityPayload's
// CiphertextPtr resolves to: the AEAD-wrapped blob that, once
// authenticated and decrypted, yields a VulnerabilityText (spec.md §4.6).
type CipherRecord struct {
	Ciphertext []byte
}

// VulnerabilityText is the plaintext sealed inside a CipherRecord: the
// display title and point value revealed on unlock (spec.md §4.6).
// PointsCenti stores the point value as an integer number of
// hundredths, since rubric point values may be fractional (spec.md §6:
// "point value (integer or float)") and RLP has no native float
// encoding. RLP has no signed integers either, so on the wire
// PointsCenti travels as its two's-complement uint64 bit pattern
// (vulnerabilityTextWire).
type VulnerabilityText struct {
	Title       string
	PointsCenti int64
	Category    uint8
}

type vulnerabilityTextWire struct {
	Title       string
	PointsCenti uint64
	Category    uint8
}

// EncodeVulnerabilityText RLP-encodes v for sealing.
func EncodeVulnerabilityText(v VulnerabilityText) ([]byte, error) {
	return rlp.EncodeToBytes(vulnerabilityTextWire{Title: v.Title, PointsCenti: uint64(v.PointsCenti), Category: v.Category})
}

// DecodeVulnerabilityText decodes a VulnerabilityText from unwrapped
// plaintext.
func DecodeVulnerabilityText(b []byte) (VulnerabilityText, error) {
	var w vulnerabilityTextWire
	err := rlp.DecodeBytes(b, &w)
	return VulnerabilityText{Title: w.Title, PointsCenti: int64(w.PointsCenti), Category: w.Category}, err
}

// AutomatonRecord is the L3 side-table entry an AutomatonID resolves
// to: the compiled-at-compile-time pattern for a regex or case-sensitive
// content check (spec.md §4.4). L3 itself maps the small AutomatonID
// integer to a field element that the engine reads as an index into
// this table; storing the pattern text directly alongside (rather than
// trying to fold it into field arithmetic) is safe because by the time
// an engine has resolved a live AutomatonID it has already proven the
// corresponding commitment matched, so the pattern text reveals nothing
// an adversary couldn't already infer from having triggered the check.
type AutomatonRecord struct {
	Kind    uint8 // 0 = regex, 1 = case-sensitive literal
	Pattern string
}

const (
	AutomatonKindRegex uint8 = 0
	AutomatonKindMatch uint8 = 1
)

// DecodeAutomatonTable decodes the L3 automaton-pattern side-table.
func DecodeAutomatonTable(b []byte) ([]AutomatonRecord, error) {
	var out []AutomatonRecord
	if len(b) == 0 {
		return out, nil
	}
	err := rlp.DecodeBytes(b, &out)
	return out, err
}

// EncodeSideTable RLP-encodes a slice of records as a single list.
func EncodeSideTable[T any](records []T) ([]byte, error) {
	return rlp.EncodeToBytes(records)
}

// DecodeVarTable decodes a variable-list-node side-table.
func DecodeVarTable(b []byte) ([]VarListNode, error) {
	var out []VarListNode
	if len(b) == 0 {
		return out, nil
	}
	err := rlp.DecodeBytes(b, &out)
	return out, err
}

// DecodeExprTable decodes an expression-record side-table.
func DecodeExprTable(b []byte) ([]ExpressionRecord, error) {
	var out []ExpressionRecord
	if len(b) == 0 {
		return out, nil
	}
	err := rlp.DecodeBytes(b, &out)
	return out, err
}

// DecodeCipherTable decodes a ciphertext-blob side-table.
func DecodeCipherTable(b []byte) ([]CipherRecord, error) {
	var out []CipherRecord
	if len(b) == 0 {
		return out, nil
	}
	err := rlp.DecodeBytes(b, &out)
	return out, err
}
