// Package xcrypto implements the secp256k1 and keccak-256 primitives the
// committee and crypto components (spec.md C3, C7) need: compressed
// pubkey decompression, ECDSA recovery over a domain-separated preimage,
// and EVM-style address derivation.
//
// Grounded on workers/handlers/SubmitWBGL.go's prefixHash /
// publicKeyBytesToAddress / validateMsgSignature, generalized from a
// single hardcoded Ethereum personal-sign prefix to an arbitrary domain
// separator and to compressed-pubkey (not raw-address) recovery.
package xcrypto

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

const (
	// CompressedPubkeyLen is the length of a compressed secp256k1 pubkey.
	CompressedPubkeyLen = 33
	// UncompressedPubkeyLen is the length of an uncompressed secp256k1
	// pubkey, including the leading 0x04 tag.
	UncompressedPubkeyLen = 65
	// SignatureLen is the length of a 65-byte RSV ECDSA signature.
	SignatureLen = 65
	// EVMAddressLen is the length of a derived EVM-style address.
	EVMAddressLen = 20
)

// DomainSeparator is prepended to every message before hashing and
// recovering a signer (spec.md §4.3, §6.1).
const DomainSeparator = "STARCOIN_BRIDGE_MESSAGE"

// HashAlgo tags which hash was used to produce the signed digest.
type HashAlgo uint8

// Keccak256 is the only hash algorithm this spec revision accepts.
const Keccak256 HashAlgo = 0

var (
	ErrUnsupportedHashAlgo  = errors.New("xcrypto: unsupported hash algorithm")
	ErrInvalidSignatureLen  = errors.New("xcrypto: signature must be 65 bytes")
	ErrInvalidPubkeyLen     = errors.New("xcrypto: compressed pubkey must be 33 bytes")
)

// PrefixedPreimage returns domain || message, the exact byte sequence fed
// to keccak-256 before ECDSA recovery (spec.md §4.3, §6.1).
func PrefixedPreimage(message []byte) []byte {
	out := make([]byte, 0, len(DomainSeparator)+len(message))
	out = append(out, []byte(DomainSeparator)...)
	out = append(out, message...)
	return out
}

// DecompressPubkey expands a 33-byte compressed secp256k1 pubkey into its
// 65-byte uncompressed form.
func DecompressPubkey(compressed []byte) ([]byte, error) {
	if len(compressed) != CompressedPubkeyLen {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidPubkeyLen, len(compressed))
	}
	pub, err := crypto.DecompressPubkey(compressed)
	if err != nil {
		return nil, fmt.Errorf("xcrypto: decompress pubkey: %w", err)
	}
	return crypto.FromECDSAPub(pub), nil
}

// CompressPubkey is the inverse of DecompressPubkey.
func CompressPubkey(uncompressed []byte) ([]byte, error) {
	pub, err := crypto.UnmarshalPubkey(uncompressed)
	if err != nil {
		return nil, fmt.Errorf("xcrypto: unmarshal pubkey: %w", err)
	}
	return crypto.CompressPubkey(pub), nil
}

// Ecrecover recovers the 33-byte compressed pubkey of the signer of a
// 65-byte RSV signature over message, hashed per hashAlgo.
func Ecrecover(sig []byte, message []byte, hashAlgo HashAlgo) ([]byte, error) {
	if len(sig) != SignatureLen {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSignatureLen, len(sig))
	}
	if hashAlgo != Keccak256 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedHashAlgo, hashAlgo)
	}

	// go-ethereum's Ecrecover wants the recovery id in [0,1]; bridge
	// signatures may arrive with the Ethereum convention (27/28).
	normalized := make([]byte, SignatureLen)
	copy(normalized, sig)
	if normalized[64] == 27 || normalized[64] == 28 {
		normalized[64] -= 27
	}

	digest := crypto.Keccak256(message)
	uncompressed, err := crypto.Ecrecover(digest, normalized)
	if err != nil {
		return nil, fmt.Errorf("xcrypto: ecrecover: %w", err)
	}

	pub, err := crypto.UnmarshalPubkey(uncompressed)
	if err != nil {
		return nil, fmt.Errorf("xcrypto: unmarshal recovered pubkey: %w", err)
	}
	return crypto.CompressPubkey(pub), nil
}

// EVMAddress derives the 20-byte EVM-style address of a compressed
// pubkey: decompress, drop the leading 0x04, keccak-256 the remaining
// 64 bytes, and take the low 20 bytes of the hash (spec.md §4.3).
//
// This is the "correct" of the two incompatible source definitions spec.md
// §9 flags: it hashes the decompressed 64-byte tail, not the compressed
// form.
func EVMAddress(compressed []byte) ([]byte, error) {
	uncompressed, err := DecompressPubkey(compressed)
	if err != nil {
		return nil, err
	}
	if len(uncompressed) != UncompressedPubkeyLen {
		return nil, fmt.Errorf("xcrypto: unexpected uncompressed pubkey length %d", len(uncompressed))
	}
	hash := crypto.Keccak256(uncompressed[1:])
	return hash[len(hash)-EVMAddressLen:], nil
}
