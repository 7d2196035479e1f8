package textnorm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFold(t *testing.T) {
	assert.Equal(t, "cafe zurich", Fold("Café Zürich"))
	assert.Equal(t, "sao paulo", Fold("São Paulo"))
	assert.Equal(t, "main street", Fold("MAIN Street"))
}

func TestTokens(t *testing.T) {
	assert.Equal(t, []string{"12", "main", "st", "richmond"}, Tokens("12 Main St., Richmond"))
	assert.Equal(t, []string{"o", "hare"}, Tokens("O'Hare"))
	assert.Empty(t, Tokens("  -- "))

	long := strings.Repeat("a", 100)
	assert.Equal(t, []string{strings.Repeat("a", MaxTokenLength)}, Tokens(long))
}

func TestQueryTerms(t *testing.T) {
	t.Run("strips query syntax", func(t *testing.T) {
		assert.Equal(t, []string{"main", "street"}, QueryTerms(`"main" street*`))
		assert.Equal(t, []string{"name", "x", "y"}, QueryTerms("name:(x -y)"))
	})

	t.Run("dedupes preserving order", func(t *testing.T) {
		assert.Equal(t, []string{"main", "street"}, QueryTerms("Main main STREET"))
	})

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, QueryTerms(`"*"`))
	})
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "st mary s hospital", NormalizeName("St. Mary's Hospital"))
	assert.Equal(t, NormalizeName("Café Central"), NormalizeName("cafe  central"))
	assert.Equal(t, "", NormalizeName(""))
}
