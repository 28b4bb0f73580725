package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeBytes(t *testing.T) {
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 0, 247}, EncodeBytes([]byte{}))
	assert.Equal(t, []byte{1, 2, 3, 0, 0, 0, 0, 0, 250}, EncodeBytes([]byte{1, 2, 3}))
	assert.Equal(t,
		[]byte{1, 2, 3, 4, 5, 6, 7, 8, 255, 0, 0, 0, 0, 0, 0, 0, 0, 247},
		EncodeBytes([]byte{1, 2, 3, 4, 5, 6, 7, 8}))
	assert.Equal(t,
		[]byte{1, 2, 3, 4, 5, 6, 7, 8, 255, 9, 0, 0, 0, 0, 0, 0, 0, 248},
		EncodeBytes([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9}))
}

func TestEncodeBytesOrder(t *testing.T) {
	inputs := [][]byte{
		{},
		{0},
		{0, 0},
		{1},
		{1, 2, 3},
		{1, 2, 3, 0},
		{1, 2, 3, 4, 5, 6, 7},
		{1, 2, 3, 4, 5, 6, 7, 8},
		{1, 2, 3, 4, 5, 6, 7, 8, 0},
		{2},
	}
	for i := 1; i < len(inputs); i++ {
		require.True(t, bytes.Compare(inputs[i-1], inputs[i]) < 0)
		assert.True(t, bytes.Compare(EncodeBytes(inputs[i-1]), EncodeBytes(inputs[i])) < 0,
			"encoding must preserve order of %v and %v", inputs[i-1], inputs[i])
	}
}

func TestDecodeBytes(t *testing.T) {
	for _, input := range [][]byte{
		{},
		{0},
		{1, 2, 3},
		{1, 2, 3, 0},
		{1, 2, 3, 4, 5, 6, 7, 8},
		{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17},
	} {
		encoded := EncodeBytes(input)
		leftover, decoded, err := DecodeBytes(encoded)
		require.NoError(t, err)
		assert.Equal(t, input, decoded)
		assert.Len(t, leftover, 0)
	}

	// A suffix survives decoding untouched.
	encoded := append(EncodeBytes([]byte{1, 2, 3}), 0xca, 0xfe)
	leftover, decoded, err := DecodeBytes(encoded)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, decoded)
	assert.Equal(t, []byte{0xca, 0xfe}, leftover)
}

func TestDecodeBytesMalformed(t *testing.T) {
	_, _, err := DecodeBytes([]byte{1, 2, 3})
	assert.Error(t, err)

	// Marker claims more padding than a group holds.
	_, _, err = DecodeBytes([]byte{0, 0, 0, 0, 0, 0, 0, 0, 0xF0})
	assert.Error(t, err)

	// Non-zero padding byte.
	_, _, err = DecodeBytes([]byte{1, 2, 3, 0, 0, 0, 0, 9, 250})
	assert.Error(t, err)
}

func TestAppendTs(t *testing.T) {
	for _, ts := range []uint64{0, 1, 42, ^uint64(0)} {
		key := AppendTs(EncodeBytes([]byte("k")), ts)
		decoded, err := DecodeTs(key)
		require.NoError(t, err)
		assert.Equal(t, ts, decoded)
	}

	// Newer timestamps sort first for the same user key.
	base := EncodeBytes([]byte("k"))
	newer := AppendTs(append([]byte{}, base...), 10)
	older := AppendTs(append([]byte{}, base...), 5)
	assert.True(t, bytes.Compare(newer, older) < 0)
}

func TestDecodeTsTooShort(t *testing.T) {
	_, err := DecodeTs([]byte{1, 2, 3})
	assert.Error(t, err)
}
