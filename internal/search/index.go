// Package search ranks symbols for a free-text query with BM25 and falls
// back to edit distance on names. It backs "did you mean" suggestions when
// an exact definition lookup finds nothing.
package search

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

var tokenPattern = regexp.MustCompile(`[a-z0-9_]+`)

// Document is one searchable symbol.
type Document struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Signature string `json:"signature,omitempty"`
	File      string `json:"file"`
	Project   string `json:"project,omitempty"`
	Line      int    `json:"line"`
	Doc       string `json:"-"`

	length int
	terms  map[string]int
}

type Index struct {
	documents    []Document
	docFreq      map[string]int
	avgDocLength float64
}

// Result is a ranked document.
type Result struct {
	Document
	Score float64 `json:"score"`
}

func Build(docs []Document) *Index {
	documents := make([]Document, 0, len(docs))
	docFreq := make(map[string]int)
	totalLength := 0

	for _, doc := range docs {
		terms := buildTerms(doc.Name, doc.Signature, doc.File, doc.Doc)
		length := 0
		for _, count := range terms {
			length += count
		}
		if length == 0 {
			continue
		}
		doc.terms = terms
		doc.length = length
		documents = append(documents, doc)
		totalLength += length
		for term := range terms {
			docFreq[term]++
		}
	}

	sort.Slice(documents, func(i, j int) bool {
		return documents[i].ID < documents[j].ID
	})

	avgDocLength := 0.0
	if len(documents) > 0 {
		avgDocLength = float64(totalLength) / float64(len(documents))
	}
	return &Index{
		documents:    documents,
		docFreq:      docFreq,
		avgDocLength: avgDocLength,
	}
}

func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.documents)
}

// Search returns at most limit documents, best first. Ties break by ID.
func (ix *Index) Search(query string, limit int) []Result {
	if ix.Len() == 0 {
		return nil
	}
	if limit <= 0 {
		limit = 10
	}

	queryTerms := tokenize(query)
	if len(queryTerms) == 0 {
		return nil
	}
	seenTerms := make(map[string]bool, len(queryTerms))
	uniqueTerms := make([]string, 0, len(queryTerms))
	for _, term := range queryTerms {
		if seenTerms[term] {
			continue
		}
		seenTerms[term] = true
		uniqueTerms = append(uniqueTerms, term)
	}

	k1 := 1.2
	b := 0.75
	n := float64(len(ix.documents))
	avgLen := ix.avgDocLength
	if avgLen <= 0 {
		avgLen = 1
	}

	results := make([]Result, 0)
	for _, doc := range ix.documents {
		score := 0.0
		docLen := float64(doc.length)
		for _, term := range uniqueTerms {
			tf := float64(doc.terms[term])
			if tf <= 0 {
				continue
			}
			df := float64(ix.docFreq[term])
			if df <= 0 {
				continue
			}
			idf := math.Log(1.0 + ((n - df + 0.5) / (df + 0.5)))
			numerator := tf * (k1 + 1.0)
			denominator := tf + k1*(1.0-b+b*(docLen/avgLen))
			score += idf * (numerator / denominator)
		}
		if score > 0 {
			results = append(results, Result{Document: doc, Score: score})
		}
	}

	if len(results) == 0 {
		return fuzzyNameFallback(ix.documents, query, limit)
	}
	sortResults(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

func sortResults(results []Result) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
}

// buildTerms weights name tokens above signature and path tokens, and
// splits camel case so "UserRepository" also matches "repository".
func buildTerms(name, signature, filePath, doc string) map[string]int {
	terms := make(map[string]int)
	addWeighted(terms, name, 4)
	addWeighted(terms, splitCamel(name), 3)
	addWeighted(terms, signature, 2)
	addWeighted(terms, filePath, 2)
	addWeighted(terms, doc, 1)
	return terms
}

func addWeighted(terms map[string]int, value string, weight int) {
	for _, token := range tokenize(value) {
		terms[token] += weight
	}
}

func tokenize(value string) []string {
	value = strings.ToLower(value)
	if value == "" {
		return nil
	}
	return tokenPattern.FindAllString(value, -1)
}

func splitCamel(s string) string {
	var b strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			prev := s[i-1]
			if prev >= 'a' && prev <= 'z' {
				b.WriteByte(' ')
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}

func fuzzyNameFallback(documents []Document, query string, limit int) []Result {
	needle := normalizeForFuzzy(query)
	if needle == "" {
		return nil
	}

	results := make([]Result, 0)
	for _, doc := range documents {
		candidate := normalizeForFuzzy(doc.Name)
		if candidate == "" {
			continue
		}
		distance := levenshteinDistance(needle, candidate)
		threshold := len(candidate) / 3
		if threshold < 2 {
			threshold = 2
		}
		if distance > threshold {
			continue
		}
		results = append(results, Result{Document: doc, Score: 1.0 / float64(1+distance)})
	}

	sortResults(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

func normalizeForFuzzy(value string) string {
	return strings.Join(tokenize(value), "")
}

func levenshteinDistance(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		current := make([]int, len(b)+1)
		current[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 0
			if a[i-1] != b[j-1] {
				cost = 1
			}
			current[j] = min(current[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev = current
	}
	return prev[len(b)]
}
