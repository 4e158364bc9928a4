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

package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndVerifyRoundtrip(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)

	hash := Hash("from", "to", "amount", uint64(5))
	sig, err := Sign(kp.Private, hash)
	require.NoError(t, err)

	assert.True(t, Verify(&kp.Private.PublicKey, hash, sig))
	assert.False(t, Verify(&kp.Private.PublicKey, Hash("different"), sig))
}

func TestSignatureHexRoundtrip(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)
	sig, err := Sign(kp.Private, Hash("x"))
	require.NoError(t, err)

	parsed, err := SignatureFromHex(sig.Hex())
	require.NoError(t, err)
	assert.Equal(t, sig.R, parsed.R)
	assert.Equal(t, sig.S, parsed.S)
}

func TestPublicKeyHexRoundtrip(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)

	parsed, err := PublicKeyFromHex(kp.PublicKeyHex())
	require.NoError(t, err)
	assert.Equal(t, kp.Private.PublicKey.X, parsed.X)
	assert.Equal(t, kp.Private.PublicKey.Y, parsed.Y)
}

func TestPrivateKeyHexRoundtripRecoversPublicKey(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)

	recovered, err := PrivateKeyFromHex(PrivateKeyHex(kp.Private))
	require.NoError(t, err)
	assert.Equal(t, kp.PublicKeyHex(), recovered.PublicKeyHex())
}

func TestHashIsDeterministicAndDomainSeparated(t *testing.T) {
	assert.Equal(t, Hash("a", "bc"), Hash("a", "bc"))
	assert.NotEqual(t, Hash("a", "bc"), Hash("ab", "c"))
}

func TestHexToBinaryCountsLeadingZeroBits(t *testing.T) {
	bin, err := HexToBinary("0f")
	require.NoError(t, err)
	assert.Equal(t, "00001111", bin)
}
