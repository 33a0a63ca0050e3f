package models

import (
	"strconv"
	"strings"
	"time"
)

// EmbeddingDim is the dimensionality of product embeddings (OpenAI
// text-embedding-ada-002). The products.embedding column is vector(1536).
const EmbeddingDim = 1536

// Product is one catalog row. Identity is the surrogate ID plus the unique
// business key (SupplierID, SupplierProductID); the latter is the id carried
// in the supplier's daily file.
type Product struct {
	ID                int64
	SupplierID        int64
	SupplierProductID int64

	Name         string
	Code         string
	Brand        string
	Presentation string
	Unit         string
	UnitPrice    float64
	Currency     string
	Categories   []string
	LastUpdated  *time.Time
	Validity     string

	// Embedding is nil when generation failed; such products are reachable
	// through the lexical path only.
	Embedding []float32
}

// EmbeddingText returns the text the product's embedding is computed from:
// the name, or brand/presentation/code joined when the name is empty.
func (p *Product) EmbeddingText() string {
	if s := strings.TrimSpace(p.Name); s != "" {
		return s
	}
	parts := make([]string, 0, 3)
	for _, s := range []string{p.Brand, p.Presentation, p.Code} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// VectorLiteral renders an embedding as a pgvector input literal
// ("[0.1,0.2,...]") for use with a ::vector cast in SQL.
func VectorLiteral(v []float32) string {
	var b strings.Builder
	b.Grow(len(v) * 10)
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
