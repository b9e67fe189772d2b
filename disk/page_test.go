package disk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageIntAccess(t *testing.T) {
	p := NewPage(64)

	require.NoError(t, p.SetInt(0, 123456))
	require.NoError(t, p.SetInt(60, 7))

	n, err := p.GetInt(0)
	require.NoError(t, err)
	assert.Equal(t, 123456, n)
	n, err = p.GetInt(60)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}

func TestPageBytesAndStrings(t *testing.T) {
	p := NewPage(64)

	require.NoError(t, p.SetBytes(0, []byte{1, 2, 3}))
	b, err := p.GetBytes(0)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, b)

	require.NoError(t, p.SetString(16, "block content"))
	s, err := p.GetString(16)
	require.NoError(t, err)
	assert.Equal(t, "block content", s)

	assert.Equal(t, 4+13, MaxLength(13))
}

func TestPageOutOfBounds(t *testing.T) {
	p := NewPage(16)

	assert.ErrorIs(t, p.SetInt(14, 1), ErrOutOfBounds)
	_, err := p.GetInt(14)
	assert.ErrorIs(t, err, ErrOutOfBounds)
	assert.ErrorIs(t, p.SetBytes(0, make([]byte, 13)), ErrOutOfBounds)
	assert.ErrorIs(t, p.SetString(8, "far too long"), ErrOutOfBounds)
}

func TestBlockIdIdentity(t *testing.T) {
	a := NewBlockId("disk0", 3)
	b := NewBlockId("disk0", 3)
	c := NewBlockId("disk1", 3)

	assert.True(t, a.Equals(b))
	assert.False(t, a.Equals(c))
	assert.Equal(t, a.Hash(), b.Hash())
	assert.NotEqual(t, a.Hash(), c.Hash())
	assert.Equal(t, "[dev disk0, block 3]", a.String())
}
