// Package searchindex is a small hand-rolled full-text index over the
// registry catalog. No third-party full-text library exists anywhere in
// the retrieved example pack (and none is vendored by the original
// implementation either — it leans on a single-language crate with no Go
// equivalent), so this package reproduces the original's scoring scheme
// directly: BM25 and a simpler zero-to-one coverage scorer, blended with
// fixed weights, over four weighted fields.
package searchindex

import (
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/mcpctl/orchestrator/internal/orcherr"
	"github.com/mcpctl/orchestrator/internal/registryclient"
)

const (
	bm25Weight = 0.7
	ztoWeight  = 0.3

	bm25K1 = 1.2
	bm25B  = 0.75
)

// fieldWeights applies to [name, description, publisher.name, categories]
// in that order.
var fieldWeights = [4]float64{3.0, 2.0, 0.5, 0.5}

const numFields = 4

// Result is one scored hit. Callers sort results descending themselves
// if they re-slice, though Search already returns them in that order.
type Result struct {
	Tool  registryclient.RegistryTool
	Score float64
}

type document struct {
	tool       registryclient.RegistryTool
	fieldTerms [numFields][]string // tokenized terms per field, in order (with repeats)
	fieldLen   [numFields]int
}

// Index is a dense-keyed, four-field search index built from a registry
// snapshot. It is safe for concurrent Search calls interleaved with a
// Rebuild.
type Index struct {
	mu   sync.RWMutex
	docs []document

	// postings[field][term] -> docKey -> term frequency in that field
	postings [numFields]map[string]map[int]int
	avgLen   [numFields]float64
}

// New builds an Index from the given registry snapshot.
func New(tools []registryclient.RegistryTool) *Index {
	idx := &Index{}
	idx.rebuildFrom(tools)
	return idx
}

// Rebuild atomically replaces the index contents with a freshly built one
// from tools, typically the latest registry snapshot.
func (idx *Index) Rebuild(tools []registryclient.RegistryTool) {
	idx.rebuildFrom(tools)
}

func (idx *Index) rebuildFrom(tools []registryclient.RegistryTool) {
	docs := make([]document, len(tools))
	var postings [numFields]map[string]map[int]int
	for f := range postings {
		postings[f] = make(map[string]map[int]int)
	}
	var totalLen [numFields]int

	for key, tool := range tools {
		fields := extractFields(tool)
		doc := document{tool: tool}
		for f, raw := range fields {
			terms := tokenize(raw)
			doc.fieldTerms[f] = terms
			doc.fieldLen[f] = len(terms)
			totalLen[f] += len(terms)

			tf := map[string]int{}
			for _, term := range terms {
				tf[term]++
			}
			for term, count := range tf {
				byDoc, ok := postings[f][term]
				if !ok {
					byDoc = map[int]int{}
					postings[f][term] = byDoc
				}
				byDoc[key] = count
			}
		}
		docs[key] = doc
	}

	var avgLen [numFields]float64
	if len(docs) > 0 {
		for f := range avgLen {
			avgLen[f] = float64(totalLen[f]) / float64(len(docs))
		}
	}

	idx.mu.Lock()
	idx.docs = docs
	idx.postings = postings
	idx.avgLen = avgLen
	idx.mu.Unlock()
}

// extractFields returns [name, description, publisher.name, categories-joined].
func extractFields(t registryclient.RegistryTool) [numFields]string {
	return [numFields]string{
		t.Name,
		t.Description,
		t.Publisher.Name,
		strings.Join(t.Categories, " "),
	}
}

func tokenize(s string) []string {
	return strings.Fields(strings.ToLower(s))
}

// Search runs the combined BM25 x 0.7 + zero-to-one x 0.3 scorer over
// query and returns every matching document sorted descending by score.
// An empty (or whitespace-only) query is a QueryError. Callers truncate
// to their own top-N (default 10).
func (idx *Index) Search(query string) ([]Result, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return nil, orcherr.New(orcherr.QueryError, "search query cannot be empty")
	}
	terms := tokenize(trimmed)

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	n := len(idx.docs)
	if n == 0 {
		return nil, nil
	}

	combined := map[int]float64{}
	for f := 0; f < numFields; f++ {
		weight := fieldWeights[f]
		for _, term := range terms {
			byDoc, ok := idx.postings[f][term]
			if !ok {
				continue
			}
			df := len(byDoc)
			idf := bm25IDF(n, df)
			avgLen := idx.avgLen[f]

			for key, tf := range byDoc {
				docLen := float64(idx.docs[key].fieldLen[f])
				bm25Score := idf * bm25TermScore(tf, docLen, avgLen)
				ztoScore := zeroToOneTermScore(tf)
				combined[key] += weight * (bm25Weight*bm25Score + ztoWeight*ztoScore)
			}
		}
	}

	results := make([]Result, 0, len(combined))
	for key, score := range combined {
		results = append(results, Result{Tool: idx.docs[key].tool, Score: score})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Tool.ID < results[j].Tool.ID // stable tie-break
	})
	return results, nil
}

func bm25IDF(n, df int) float64 {
	if df == 0 {
		return 0
	}
	v := math.Log(float64(n-df)+0.5) - math.Log(float64(df)+0.5) + 1
	if v < 0 {
		return 0
	}
	return v
}

func bm25TermScore(tf int, docLen, avgLen float64) float64 {
	if avgLen == 0 {
		avgLen = 1
	}
	num := float64(tf) * (bm25K1 + 1)
	den := float64(tf) + bm25K1*(1-bm25B+bm25B*(docLen/avgLen))
	if den == 0 {
		return 0
	}
	return num / den
}

// zeroToOneTermScore normalizes raw term frequency into [0,1) — a simpler
// coverage signal than BM25's length-normalized IDF weighting.
func zeroToOneTermScore(tf int) float64 {
	return float64(tf) / float64(tf+1)
}
