package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmbeddingText(t *testing.T) {
	p := &Product{Name: "Atun en agua"}
	assert.Equal(t, "Atun en agua", p.EmbeddingText())

	p = &Product{Name: "  ", Brand: "DelMar", Presentation: "lata 140g", Code: "AT-1"}
	assert.Equal(t, "DelMar lata 140g AT-1", p.EmbeddingText())

	p = &Product{}
	assert.Equal(t, "", p.EmbeddingText())
}

func TestVectorLiteral(t *testing.T) {
	assert.Equal(t, "[0.5,-1,0.25]", VectorLiteral([]float32{0.5, -1, 0.25}))
	assert.Equal(t, "[]", VectorLiteral(nil))
}
