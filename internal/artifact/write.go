package artifact

import (
	"bytes"
	"fmt"

	"github.com/zekaeng/zeka/internal/field"
	"github.com/zekaeng/zeka/internal/lagrange"
)

// Builder assembles a zeka.dat image. The rubric compiler is the only
// caller; the engine only ever reads artifacts back with Load/Parse.
type Builder struct {
	Field       *field.Field
	AEADVersion uint8
	Seed        int64
	AAD         []byte
	Title       []byte
	Categories  uint16

	L1, L2, L3 *lagrange.Polynomial

	VarTable     []VarListNode
	ExprTable    []ExpressionRecord
	CiphTable    []CipherRecord
	AutomatonTbl []AutomatonRecord
}

// Build serializes the builder's state into a complete zeka.dat image.
func (b *Builder) Build() ([]byte, error) {
	varBytes, err := EncodeSideTable(b.VarTable)
	if err != nil {
		return nil, fmt.Errorf("artifact: encoding variable table: %w", err)
	}
	exprBytes, err := EncodeSideTable(b.ExprTable)
	if err != nil {
		return nil, fmt.Errorf("artifact: encoding expression table: %w", err)
	}
	ciphBytes, err := EncodeSideTable(b.CiphTable)
	if err != nil {
		return nil, fmt.Errorf("artifact: encoding ciphertext table: %w", err)
	}
	automatonBytes, err := EncodeSideTable(b.AutomatonTbl)
	if err != nil {
		return nil, fmt.Errorf("artifact: encoding automaton table: %w", err)
	}

	width := b.Field.ByteLen()
	l1Coeff := encodeCoeffs(b.Field, b.L1)
	l2Coeff := encodeCoeffs(b.Field, b.L2)
	l3Coeff := encodeCoeffs(b.Field, b.L3)

	h := &Header{
		AEADVersion: b.AEADVersion,
		PrimeBytes:  b.Field.Prime().Bytes(),
		Seed:        b.Seed,
		AAD:         b.AAD,
		Title:       b.Title,
		Categories:  b.Categories,
		L1Count:     uint32(len(l1Coeff) / width),
		L2Count:     uint32(len(l2Coeff) / width),
		L3Count:     uint32(len(l3Coeff) / width),
	}

	headerLen := uint64(len(h.Encode()))
	h.L1Offset = headerLen
	h.L2Offset = h.L1Offset + uint64(len(l1Coeff))
	h.L3Offset = h.L2Offset + uint64(len(l2Coeff))
	h.VarTableOffset = h.L3Offset + uint64(len(l3Coeff))
	h.VarTableSize = uint64(len(varBytes))
	h.ExprTableOffset = h.VarTableOffset + h.VarTableSize
	h.ExprTableSize = uint64(len(exprBytes))
	h.CipherTableOffset = h.ExprTableOffset + h.ExprTableSize
	h.CipherTableSize = uint64(len(ciphBytes))
	h.AutomatonTableOffset = h.CipherTableOffset + h.CipherTableSize
	h.AutomatonTableSize = uint64(len(automatonBytes))

	var out bytes.Buffer
	out.Write(h.Encode())
	out.Write(l1Coeff)
	out.Write(l2Coeff)
	out.Write(l3Coeff)
	out.Write(varBytes)
	out.Write(exprBytes)
	out.Write(ciphBytes)
	out.Write(automatonBytes)
	return out.Bytes(), nil
}

func encodeCoeffs(f *field.Field, p *lagrange.Polynomial) []byte {
	if p == nil {
		return nil
	}
	coeffs := p.Coefficients()
	out := make([]byte, 0, len(coeffs)*f.ByteLen())
	for _, c := range coeffs {
		out = append(out, f.Bytes(c)...)
	}
	return out
}
