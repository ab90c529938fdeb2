package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeqIDs_Sequence(t *testing.T) {
	g := NewSeqIDs("s")

	assert.Equal(t, "s1", g.Generate())
	assert.Equal(t, "s2", g.Generate())
	assert.Equal(t, "s3", g.Generate())
}

func TestSeqIDs_EmptyPrefix(t *testing.T) {
	g := NewSeqIDs("")
	assert.Equal(t, "1", g.Generate())
}

func TestSeqIDs_Reset(t *testing.T) {
	g := NewSeqIDs("r")
	g.Generate()
	g.Generate()
	g.Reset()
	assert.Equal(t, "r1", g.Generate())
}
