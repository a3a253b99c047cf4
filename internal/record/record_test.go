package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []struct {
		name    string
		seqNo   uint64
		payload []byte
	}{
		{"empty payload", 0, []byte{}},
		{"small payload", 1, []byte("Rust")},
		{"large seq_no", 1<<64 - 1, []byte("Java")},
		{"binary payload", 42, []byte{0x00, 0xff, 0x01, 0xfe}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			encoded, n := Encode(nil, NewBorrowed(tc.seqNo, tc.payload))
			require.Equal(t, HeaderSize+len(tc.payload), n)
			require.Len(t, encoded, n)

			got, rest, ok := Decode(encoded)
			require.True(t, ok)
			assert.Equal(t, tc.seqNo, got.SeqNo)
			assert.Equal(t, tc.payload, got.Payload)
			assert.Empty(t, rest)
		})
	}
}

func TestDecodeLeavesSuffixIntact(t *testing.T) {
	encoded, _ := Encode(nil, NewBorrowed(7, []byte("payload")))
	tail := []byte("trailing-bytes")
	encoded = append(encoded, tail...)

	got, rest, ok := Decode(encoded)
	require.True(t, ok)
	assert.Equal(t, uint64(7), got.SeqNo)
	assert.Equal(t, []byte("payload"), got.Payload)
	assert.Equal(t, tail, rest)
}

func TestDecodeTruncatedInputIsInsufficient(t *testing.T) {
	encoded, n := Encode(nil, NewBorrowed(3, []byte("hello world")))
	for k := 0; k < n; k++ {
		_, _, ok := Decode(encoded[:k])
		assert.Falsef(t, ok, "expected insufficient at truncation length %d", k)
	}
}

func TestEncodeAppendsToExistingSlice(t *testing.T) {
	var buf []byte
	buf, n1 := Encode(buf, NewBorrowed(1, []byte("a")))
	buf, n2 := Encode(buf, NewBorrowed(2, []byte("bb")))
	require.Len(t, buf, n1+n2)

	r1, rest, ok := Decode(buf)
	require.True(t, ok)
	assert.Equal(t, uint64(1), r1.SeqNo)

	r2, rest, ok := Decode(rest)
	require.True(t, ok)
	assert.Equal(t, uint64(2), r2.SeqNo)
	assert.Empty(t, rest)
}

func TestNewOwnedCopiesPayload(t *testing.T) {
	src := []byte("mutate me")
	r := NewOwned(5, src)
	src[0] = 'X'
	assert.Equal(t, "mutate me", string(r.Payload))
}

func TestLess(t *testing.T) {
	a := NewBorrowed(1, nil)
	b := NewBorrowed(2, nil)
	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
	assert.False(t, a.Less(a))
}
