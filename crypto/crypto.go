// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.
//
// The klaytn library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The klaytn library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the klaytn library. If not, see <http://www.gnu.org/licenses/>.

// Package crypto provides the deterministic hashing, keypair generation and
// signature primitives shared by every component of the node (C1).
package crypto

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/sha3"
)

// curve is shared by every node; it must never vary across the network.
var curve = elliptic.P256()

// sep is the domain-separation token mixed between hashed fields, so that
// hashing ("ab", "c") never collides with ("a", "bc").
const sep = "\x00harvest\x00"

// Hash deterministically hashes the canonical string form of args. All
// hashing in the node goes through this single entry point so every
// implementation agrees on the wire value.
func Hash(args ...interface{}) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = fmt.Sprintf("%v", a)
	}
	joined := strings.Join(parts, sep)
	sum := sha3.Sum256([]byte(joined))
	return hex.EncodeToString(sum[:])
}

// KeyPair is an ECDSA key pair; PublicKeyHex is the canonical account
// identifier used throughout the data model (from/to fields).
type KeyPair struct {
	Private *ecdsa.PrivateKey
}

// GenerateKeyPair creates a fresh random key pair.
func GenerateKeyPair() (*KeyPair, error) {
	priv, err := ecdsa.GenerateKey(curve, rand.Reader)
	if err != nil {
		return nil, err
	}
	return &KeyPair{Private: priv}, nil
}

// PublicKeyHex returns the hex-encoded, uncompressed public key.
func (kp *KeyPair) PublicKeyHex() string {
	return PublicKeyHex(&kp.Private.PublicKey)
}

// PublicKeyHex hex-encodes an ECDSA public key deterministically.
func PublicKeyHex(pub *ecdsa.PublicKey) string {
	return hex.EncodeToString(elliptic.Marshal(curve, pub.X, pub.Y))
}

// PrivateKeyHex hex-encodes priv's scalar, the form accepted by the
// PRIVATE_KEY configuration option (spec.md §6).
func PrivateKeyHex(priv *ecdsa.PrivateKey) string {
	return hex.EncodeToString(priv.D.Bytes())
}

// PrivateKeyFromHex decodes a hex-encoded scalar back into a full key pair,
// recomputing the public point from the curve's base point.
func PrivateKeyFromHex(s string) (*KeyPair, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	d := new(big.Int).SetBytes(b)
	priv := new(ecdsa.PrivateKey)
	priv.D = d
	priv.PublicKey.Curve = curve
	priv.PublicKey.X, priv.PublicKey.Y = curve.ScalarBaseMult(d.Bytes())
	return &KeyPair{Private: priv}, nil
}

// PublicKeyFromHex decodes a hex-encoded public key back into an ecdsa.PublicKey.
func PublicKeyFromHex(s string) (*ecdsa.PublicKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	x, y := elliptic.Unmarshal(curve, b)
	if x == nil {
		return nil, errors.New("crypto: invalid public key encoding")
	}
	return &ecdsa.PublicKey{Curve: curve, X: x, Y: y}, nil
}

// Signature is the (r, s) pair produced by Sign.
type Signature struct {
	R, S *big.Int
}

// Hex encodes a signature as "r:s" hex.
func (s Signature) Hex() string {
	return hex.EncodeToString(s.R.Bytes()) + ":" + hex.EncodeToString(s.S.Bytes())
}

// SignatureFromHex parses the "r:s" hex form produced by Hex.
func SignatureFromHex(s string) (Signature, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return Signature{}, errors.New("crypto: malformed signature")
	}
	rb, err := hex.DecodeString(parts[0])
	if err != nil {
		return Signature{}, err
	}
	sb, err := hex.DecodeString(parts[1])
	if err != nil {
		return Signature{}, err
	}
	return Signature{R: new(big.Int).SetBytes(rb), S: new(big.Int).SetBytes(sb)}, nil
}

// Sign signs the hex-encoded message hash with priv.
func Sign(priv *ecdsa.PrivateKey, msgHash string) (Signature, error) {
	digest, err := hex.DecodeString(msgHash)
	if err != nil {
		return Signature{}, err
	}
	r, s, err := ecdsa.Sign(rand.Reader, priv, digest)
	if err != nil {
		return Signature{}, err
	}
	return Signature{R: r, S: s}, nil
}

// Verify checks sig against msgHash under pub.
func Verify(pub *ecdsa.PublicKey, msgHash string, sig Signature) bool {
	digest, err := hex.DecodeString(msgHash)
	if err != nil {
		return false
	}
	if sig.R == nil || sig.S == nil {
		return false
	}
	return ecdsa.Verify(pub, digest, sig.R, sig.S)
}

// HexToBinary renders a hex string as its binary-digit representation, used
// to check proof-of-work difficulty prefixes against block.difficulty.
func HexToBinary(h string) (string, error) {
	var sb strings.Builder
	for _, r := range h {
		v, err := hex.DecodeString("0" + string(r))
		if err != nil {
			return "", err
		}
		sb.WriteString(fmt.Sprintf("%04b", v[0]))
	}
	return sb.String(), nil
}
