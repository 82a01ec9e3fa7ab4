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

package crypto

import (
	"bytes"
	"strings"
	"testing"
)

func TestSignAndRecover(t *testing.T) {
	priv, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	digest := Keccak256([]byte("hello xdag"))

	sig, err := Sign(digest, priv)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if len(sig) != SignatureLength {
		t.Fatalf("signature length = %d, want %d", len(sig), SignatureLength)
	}

	pub, err := SigToPub(digest, sig)
	if err != nil {
		t.Fatalf("SigToPub: %v", err)
	}
	if pub.X.Cmp(priv.PublicKey.X) != 0 || pub.Y.Cmp(priv.PublicKey.Y) != 0 {
		t.Fatalf("recovered pubkey does not match signer")
	}

	if !VerifySignature(CompressPubkey(&priv.PublicKey), digest, sig[:64]) {
		t.Fatalf("VerifySignature rejected a valid signature")
	}
}

func TestVerifySignatureRejectsTamperedDigest(t *testing.T) {
	priv, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	digest := Keccak256([]byte("original"))
	sig, err := Sign(digest, priv)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	tampered := Keccak256([]byte("tampered"))
	if VerifySignature(CompressPubkey(&priv.PublicKey), tampered, sig[:64]) {
		t.Fatalf("VerifySignature accepted a signature over the wrong digest")
	}
}

func TestKeccak256Deterministic(t *testing.T) {
	a := Keccak256([]byte("abc"))
	b := Keccak256([]byte("abc"))
	if !bytes.Equal(a, b) {
		t.Fatalf("Keccak256 not deterministic")
	}
	if len(a) != 32 {
		t.Fatalf("Keccak256 length = %d, want 32", len(a))
	}
}

func TestCompressPubkeyRoundTrip(t *testing.T) {
	priv, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	c := CompressPubkey(&priv.PublicKey)
	if len(c) != 33 {
		t.Fatalf("compressed pubkey length = %d, want 33", len(c))
	}
}

func TestLoadWriteECDSARoundTrip(t *testing.T) {
	priv, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	var buf bytes.Buffer
	if _, err := WriteECDSAKey(&buf, priv); err != nil {
		t.Fatalf("WriteECDSAKey: %v", err)
	}

	loaded, err := LoadECDSA(strings.NewReader(buf.String()))
	if err != nil {
		t.Fatalf("LoadECDSA: %v", err)
	}
	if loaded.D.Cmp(priv.D) != 0 {
		t.Fatalf("loaded key does not match original")
	}
}

func TestHexToECDSA(t *testing.T) {
	priv, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	hexKey := "0x" + string(mustHex(FromECDSA(priv)))
	loaded, err := HexToECDSA(hexKey)
	if err != nil {
		t.Fatalf("HexToECDSA: %v", err)
	}
	if loaded.D.Cmp(priv.D) != 0 {
		t.Fatalf("loaded key does not match original")
	}
}

func mustHex(b []byte) []byte {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = hexDigits[c>>4]
		out[i*2+1] = hexDigits[c&0xf]
	}
	return out
}
