// Copyright 2015 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

// Package crypto wraps the signing primitives the rest of the module treats
// as black boxes: secp256k1 key generation, ECDSA sign/recover, and Keccak
// hashing. Nothing upstream of this package should import btcec or sha3
// directly.
package crypto

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	btcecdsa "github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"golang.org/x/crypto/sha3"
)

const (
	// SignatureLength is the byte length of a recoverable secp256k1 signature: 32 (R) + 32 (S) + 1 (V).
	SignatureLength = 65
)

var secp256k1N = btcec.S256().N

// Keccak256 returns the Keccak-256 digest of the concatenation of the inputs.
func Keccak256(data ...[]byte) []byte {
	d := sha3.NewLegacyKeccak256()
	for _, b := range data {
		d.Write(b)
	}
	return d.Sum(nil)
}

// Keccak256Hash returns the Keccak-256 digest as a fixed-size Hash.
func Keccak256Hash(data ...[]byte) (h [32]byte) {
	copy(h[:], Keccak256(data...))
	return h
}

// GenerateKey creates a new ephemeral secp256k1 private key.
func GenerateKey() (*ecdsa.PrivateKey, error) {
	key, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, err
	}
	return key.ToECDSA(), nil
}

// CompressPubkey encodes a public key as a 33-byte compressed point.
func CompressPubkey(pub *ecdsa.PublicKey) []byte {
	pk, err := btcec.ParsePubKey(elliptic.Marshal(btcec.S256(), pub.X, pub.Y))
	if err != nil {
		// elliptic.Marshal always produces a valid uncompressed point for a
		// valid public key, so ParsePubKey cannot fail here.
		panic(fmt.Sprintf("crypto: invalid public key: %v", err))
	}
	return pk.SerializeCompressed()
}

// Sign computes a 65-byte recoverable ECDSA signature over a 32-byte digest.
func Sign(digest []byte, priv *ecdsa.PrivateKey) ([]byte, error) {
	if len(digest) != 32 {
		return nil, fmt.Errorf("crypto: digest must be 32 bytes, got %d", len(digest))
	}
	key := btcec.PrivKeyFromBytes(priv.D.Bytes())
	sig, err := btcecdsa.SignCompact(key, digest, false)
	if err != nil {
		return nil, err
	}
	// btcec's compact format is [recid+27, R, S]; the wire format used
	// throughout this module is [R, S, recid] to match the fixed 65-byte
	// layout documented in the discovery and handshake wire formats.
	out := make([]byte, SignatureLength)
	copy(out, sig[1:])
	out[64] = sig[0] - 27
	return out, nil
}

// Ecrecover recovers the uncompressed public key (65 bytes, 0x04 prefix)
// that produced sig over digest.
func Ecrecover(digest, sig []byte) ([]byte, error) {
	pub, err := SigToPub(digest, sig)
	if err != nil {
		return nil, err
	}
	return elliptic.Marshal(btcec.S256(), pub.X, pub.Y), nil
}

// SigToPub recovers the public key that produced sig over digest.
func SigToPub(digest, sig []byte) (*ecdsa.PublicKey, error) {
	if len(sig) != SignatureLength {
		return nil, fmt.Errorf("crypto: invalid signature length %d", len(sig))
	}
	compact := make([]byte, SignatureLength)
	compact[0] = sig[64] + 27
	copy(compact[1:], sig[:64])
	pub, _, err := btcecdsa.RecoverCompact(compact, digest)
	if err != nil {
		return nil, err
	}
	return pub.ToECDSA(), nil
}

// VerifySignature checks a 64-byte (R||S, no recovery id) signature against
// an uncompressed or compressed public key.
func VerifySignature(pubkey, digest, signature []byte) bool {
	if len(signature) != 64 {
		return false
	}
	pub, err := btcec.ParsePubKey(pubkey)
	if err != nil {
		return false
	}
	r := new(btcec.ModNScalar)
	s := new(btcec.ModNScalar)
	if overflow := r.SetByteSlice(signature[:32]); overflow {
		return false
	}
	if overflow := s.SetByteSlice(signature[32:]); overflow {
		return false
	}
	sig := btcecdsa.NewSignature(r, s)
	return sig.Verify(digest, pub)
}

// ToECDSA parses a 32-byte big-endian scalar as a secp256k1 private key.
func ToECDSA(d []byte) (*ecdsa.PrivateKey, error) {
	if len(d) != 32 {
		return nil, errors.New("crypto: invalid private key length")
	}
	key := secp256k1PrivKeyFromBytes(d)
	if key == nil {
		return nil, errors.New("crypto: invalid private key")
	}
	return key.ToECDSA(), nil
}

func secp256k1PrivKeyFromBytes(d []byte) *btcec.PrivateKey {
	key := btcec.PrivKeyFromBytes(d)
	if key == nil {
		return nil
	}
	// Reject keys >= N or == 0, matching upstream secp256k1 validation.
	var scalar btcec.ModNScalar
	if overflow := scalar.SetByteSlice(d); overflow || scalar.IsZero() {
		return nil
	}
	return key
}

// FromECDSAPub serializes a public key in uncompressed form, or nil if pub is nil.
func FromECDSAPub(pub *ecdsa.PublicKey) []byte {
	if pub == nil || pub.X == nil || pub.Y == nil {
		return nil
	}
	return elliptic.Marshal(btcec.S256(), pub.X, pub.Y)
}

// PubkeyToAddress-equivalent for this module: the 160-bit NodeID derivation
// lives in package p2p/enode (re-exported by p2p/identity.go) since it is a domain concept, not a
// primitive; this package only supplies the hash and key operations it is
// built from.

// FromECDSA exports a private key as a 32-byte big-endian scalar.
func FromECDSA(priv *ecdsa.PrivateKey) []byte {
	if priv == nil {
		return nil
	}
	return math_PaddedBigBytes(priv.D, 32)
}

func math_PaddedBigBytes(b *big.Int, n int) []byte {
	out := make([]byte, n)
	bb := b.Bytes()
	copy(out[n-len(bb):], bb)
	return out
}

// HexToECDSA parses a hex-encoded private key, accepting an optional "0x"
// prefix, the same convenience the -nodekeyhex CLI flag relies on.
func HexToECDSA(hexkey string) (*ecdsa.PrivateKey, error) {
	hexkey = strings.TrimPrefix(hexkey, "0x")
	b, err := hex.DecodeString(hexkey)
	if err != nil {
		return nil, errors.New("crypto: invalid hex string")
	}
	return ToECDSA(b)
}

// LoadECDSA reads a hex-encoded private key from r, the on-disk format the
// node-key config option expects.
func LoadECDSA(r io.Reader) (*ecdsa.PrivateKey, error) {
	buf := make([]byte, 64)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("crypto: read key: %w", err)
	}
	b, err := hex.DecodeString(strings.TrimSpace(string(buf)))
	if err != nil {
		return nil, fmt.Errorf("crypto: decode key: %w", err)
	}
	return ToECDSA(b)
}

// WriteECDSAKey writes priv to w as a hex string, the inverse of LoadECDSA.
func WriteECDSAKey(w io.Writer, priv *ecdsa.PrivateKey) (int, error) {
	k := hex.EncodeToString(FromECDSA(priv))
	return io.WriteString(w, k)
}
