package badger

import (
	"math"

	"github.com/poiesic/geosearch/core"
	"github.com/poiesic/geosearch/textnorm"
)

// BM25 parameters.
const (
	bm25K1 = 1.2
	bm25B  = 0.75

	// prefixMatchWeight scales the score of a term matched only by prefix.
	prefixMatchWeight = 0.9
)

type textField struct {
	weight float64
	value  func(p *core.Place) string
}

// indexedFields lists the searchable place fields and their weights.
var indexedFields = []textField{
	{3, func(p *core.Place) string { return p.Name }},
	{1, func(p *core.Place) string { return p.DisplayName }},
	{1.5, func(p *core.Place) string { return p.Address.Street }},
	{1, func(p *core.Place) string { return p.Address.City }},
	{1, func(p *core.Place) string { return p.Address.Postcode }},
}

// fieldTerms returns the weighted frequency of every term in place and the
// weighted document length.
func fieldTerms(p *core.Place) (map[string]float64, float64) {
	freqs := make(map[string]float64)
	var length float64
	for _, f := range indexedFields {
		for _, term := range textnorm.Tokens(f.value(p)) {
			freqs[term] += f.weight
			length += f.weight
		}
	}
	return freqs, length
}

// idf is the BM25 inverse document frequency, always positive.
func idf(docCount, docFreq int) float64 {
	n := float64(docCount)
	df := float64(docFreq)
	return math.Log(1 + (n-df+0.5)/(df+0.5))
}

// bm25 scores one term occurrence.
func bm25(idf, freq, length, avgLength float64) float64 {
	norm := 1.0
	if avgLength > 0 {
		norm = 1 - bm25B + bm25B*length/avgLength
	}
	return idf * freq * (bm25K1 + 1) / (freq + bm25K1*norm)
}
