package sharelink

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodecRoundTrip(t *testing.T) {
	codec, err := NewCodec("groundz-test-salt")
	require.NoError(t, err)

	for _, seq := range []int64{1, 42, 99999, 1 << 40} {
		code, err := codec.Encode(seq)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(code), minLength)

		got, err := codec.Decode(code)
		require.NoError(t, err)
		assert.Equal(t, seq, got)
	}
}

func TestCodecRejectsGarbage(t *testing.T) {
	codec, err := NewCodec("groundz-test-salt")
	require.NoError(t, err)

	_, err = codec.Decode("not-a-code!")
	assert.ErrorIs(t, err, ErrBadCode)
}

func TestCodecSaltChangesCodes(t *testing.T) {
	a, err := NewCodec("salt-a")
	require.NoError(t, err)
	b, err := NewCodec("salt-b")
	require.NoError(t, err)

	codeA, err := a.Encode(7)
	require.NoError(t, err)
	codeB, err := b.Encode(7)
	require.NoError(t, err)
	assert.NotEqual(t, codeA, codeB)
}
