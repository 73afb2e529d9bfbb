package retrieval

import (
	"math"
	"strings"
	"unicode"
)

// termVector builds a normalized term-frequency vector for text.
func termVector(text string) map[string]float64 {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return map[string]float64{}
	}

	vec := make(map[string]float64, len(tokens))
	for _, tok := range tokens {
		vec[tok]++
	}

	var norm float64
	for _, f := range vec {
		norm += f * f
	}
	norm = math.Sqrt(norm)
	for tok, f := range vec {
		vec[tok] = f / norm
	}
	return vec
}

// lexicalScore is the cosine of two normalized term vectors.
func lexicalScore(query, chunk map[string]float64) float64 {
	if len(query) == 0 || len(chunk) == 0 {
		return 0
	}
	small, large := query, chunk
	if len(chunk) < len(query) {
		small, large = chunk, query
	}
	var dot float64
	for tok, f := range small {
		dot += f * large[tok]
	}
	return dot
}

func cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
