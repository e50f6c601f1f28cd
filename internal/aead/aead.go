// Package aead implements the vulnerability-text unwrap of spec.md
// §4.6: AES-128-GCM keyed by the low 128 bits of SHA-256 of an
// expression's DFA terminal state, with an engine-wide additional
// authenticated data string.
//
// spec.md §9 flags two open questions here — AES mode (CTR vs GCM) and
// the key-derivation hash (SHA-512 vs SHA-256) disagree between the
// two README drafts it was distilled from — and requires a locked,
// versioned choice. This package locks AES-128-GCM plus SHA-256 as
// AEADVersion 1; a future version would get its own constant and a
// switch in Open, never a silent behavior change under the same
// version number.
package aead

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/binary"
)

// AEADVersion1 identifies the locked AES mode + KDF hash combination.
// Stored in the artifact header (internal/artifact) so a future format
// revision can change the scheme without breaking old artifacts.
const AEADVersion1 = 1

// KeySize is the AES-128 key length in bytes.
const KeySize = 16

// TagSize is the GCM authentication tag length in bytes, matching the
// 16-byte tag spec.md §4.6 specifies.
const TagSize = 16

// DirectTerminalState computes the terminal state a direct (e==0,
// single-leaf) vulnerability's AEAD key derives from. Every direct
// check in an artifact seals its ciphertext-table entry under a
// distinct key: using a single shared constant here (terminal state 0
// for every direct check) would mean every direct vulnerability in the
// same artifact is AES-GCM-sealed under the identical (key, nonce)
// pair, a catastrophic break given Seal's fixed all-zero nonce and the
// "exactly one plaintext per (key, aad)" assumption that relies on.
// ciphertextIndex (the check's own position in the ciphertext table,
// stable and unique within one artifact) is offset by one so no direct
// check ever reuses the reserved all-zero terminal state.
func DirectTerminalState(ciphertextIndex uint32) uint32 {
	return ciphertextIndex + 1
}

// DeriveKey computes the AES-128 key from an expression's DFA terminal
// state: SHA-256(state), low 16 bytes.
func DeriveKey(terminalState uint32) [KeySize]byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], terminalState)
	sum := sha256.Sum256(buf[:])
	var key [KeySize]byte
	copy(key[:], sum[len(sum)-KeySize:])
	return key
}

// Payload is a self-contained AEAD-wrapped blob: a nonce followed by
// GCM ciphertext-with-appended-tag, as produced by Seal.
type Payload []byte

// Seal encrypts plaintext under key with aad as additional
// authenticated data, using a fixed (all-zero) nonce.
//
// A fixed nonce is safe here because every (key, aad) pair is used to
// seal exactly one plaintext: the key is derived from an expression's
// terminal state, which is specific to a single vulnerability record,
// and the artifact is produced once, offline, by the compiler. Nonce
// reuse only becomes a confidentiality problem across multiple
// messages under the same key, which never happens in this scheme.
func Seal(key [KeySize]byte, aadStr, plaintext []byte) (Payload, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	return gcm.Seal(nonce, nonce, plaintext, aadStr), nil
}

// ExtractTag returns the trailing GCM tag of a Payload produced by
// Seal, so a side-table record that carries its own copy of the tag
// (artifact.ExpressionRecord.AEADTag, descriptor.VulnerabilityPayload.Tag)
// can be checked against the ciphertext it points at before attempting
// a full Open.
func ExtractTag(payload Payload) ([TagSize]byte, bool) {
	var tag [TagSize]byte
	if len(payload) < TagSize {
		return tag, false
	}
	copy(tag[:], payload[len(payload)-TagSize:])
	return tag, true
}

// Open decrypts a Payload produced by Seal. Per spec.md §4.6/§7, tag
// mismatch is "indistinguishable from an absent entry": callers get a
// plain (nil, false) rather than a distinguishable error, so a failed
// unwrap can never be used to learn anything about the plaintext.
func Open(key [KeySize]byte, aadStr []byte, payload Payload) (plaintext []byte, ok bool) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, false
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, false
	}
	if len(payload) < gcm.NonceSize() {
		return nil, false
	}
	nonce, ciphertext := payload[:gcm.NonceSize()], payload[gcm.NonceSize():]
	pt, err := gcm.Open(nil, nonce, ciphertext, aadStr)
	if err != nil {
		return nil, false
	}
	return pt, true
}
