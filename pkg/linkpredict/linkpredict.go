// Package linkpredict suggests missing facts from graph topology.
//
// The heuristics here score candidate neighbors of a node using only
// the link structure of a knowledge base, complementing the
// model-based probabilities behind embed.Scorer.
//
// Algorithms Implemented:
//   - Common Neighbors: |N(u) ∩ N(v)|
//   - Jaccard Coefficient: |N(u) ∩ N(v)| / |N(u) ∪ N(v)|
//   - Adamic-Adar: sum of 1/log|N(z)| over common neighbors z
//   - Resource Allocation: sum of 1/|N(z)| over common neighbors z
//   - Preferential Attachment: |N(u)| * |N(v)|
//
// Usage Example:
//
//	preds := linkpredict.AdamicAdar(kb, "tom", 10)
//	for _, p := range preds {
//		fmt.Printf("suggest edge to %s (score %.3f)\n", p.Target, p.Score)
//	}
package linkpredict

import (
	"math"
	"sort"

	"github.com/orneryd/munindb/pkg/embed"
	"github.com/orneryd/munindb/pkg/munindb"
)

// Prediction is one suggested link with its confidence score. Scores
// are algorithm-specific and not comparable across algorithms.
type Prediction struct {
	Target    string
	Score     float64
	Algorithm string
}

// adjacency is the undirected neighborhood of every entity: forward
// and reverse links folded together, which is what the classic
// heuristics assume.
type adjacency map[string]map[string]struct{}

func buildAdjacency(kb *munindb.KB) adjacency {
	adj := make(adjacency)
	link := func(a, b string) {
		if adj[a] == nil {
			adj[a] = make(map[string]struct{})
		}
		adj[a][b] = struct{}{}
	}
	for _, e := range kb.Edges() {
		link(e.Subject(), e.Object())
		link(e.Object(), e.Subject())
	}
	return adj
}

// candidates are nodes exactly two hops out: sharing a neighbor with
// source but not yet linked to it.
func (adj adjacency) candidates(source string) map[string]struct{} {
	out := make(map[string]struct{})
	for z := range adj[source] {
		for v := range adj[z] {
			if v == source {
				continue
			}
			if _, linked := adj[source][v]; linked {
				continue
			}
			out[v] = struct{}{}
		}
	}
	return out
}

func (adj adjacency) common(u, v string) []string {
	var out []string
	for z := range adj[u] {
		if _, ok := adj[v][z]; ok {
			out = append(out, z)
		}
	}
	return out
}

// rank scores every two-hop candidate of source and returns the top K
// in descending score order, ties broken by name for determinism.
func rank(kb *munindb.KB, source, algorithm string, topK int, score func(adj adjacency, u, v string) float64) []Prediction {
	adj := buildAdjacency(kb)
	var out []Prediction
	for v := range adj.candidates(source) {
		s := score(adj, source, v)
		if s <= 0 {
			continue
		}
		out = append(out, Prediction{Target: v, Score: s, Algorithm: algorithm})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Target < out[j].Target
	})
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out
}

// CommonNeighbors scores candidates by the number of shared
// neighbors.
func CommonNeighbors(kb *munindb.KB, source string, topK int) []Prediction {
	return rank(kb, source, "common_neighbors", topK, func(adj adjacency, u, v string) float64 {
		return float64(len(adj.common(u, v)))
	})
}

// Jaccard scores candidates by neighborhood overlap ratio.
func Jaccard(kb *munindb.KB, source string, topK int) []Prediction {
	return rank(kb, source, "jaccard", topK, func(adj adjacency, u, v string) float64 {
		common := len(adj.common(u, v))
		union := len(adj[u]) + len(adj[v]) - common
		if union == 0 {
			return 0
		}
		return float64(common) / float64(union)
	})
}

// AdamicAdar weights each shared neighbor by the inverse log of its
// degree; rare connections count for more.
func AdamicAdar(kb *munindb.KB, source string, topK int) []Prediction {
	return rank(kb, source, "adamic_adar", topK, func(adj adjacency, u, v string) float64 {
		var sum float64
		for _, z := range adj.common(u, v) {
			if d := len(adj[z]); d > 1 {
				sum += 1 / math.Log(float64(d))
			}
		}
		return sum
	})
}

// ResourceAllocation weights each shared neighbor by the inverse of
// its degree.
func ResourceAllocation(kb *munindb.KB, source string, topK int) []Prediction {
	return rank(kb, source, "resource_allocation", topK, func(adj adjacency, u, v string) float64 {
		var sum float64
		for _, z := range adj.common(u, v) {
			if d := len(adj[z]); d > 0 {
				sum += 1 / float64(d)
			}
		}
		return sum
	})
}

// PreferentialAttachment scores candidates by the product of degrees.
func PreferentialAttachment(kb *munindb.KB, source string, topK int) []Prediction {
	return rank(kb, source, "preferential_attachment", topK, func(adj adjacency, u, v string) float64 {
		return float64(len(adj[u]) * len(adj[v]))
	})
}

// RankByScorer orders candidate objects for (sub, pred, ?) by the
// probability an embedding model assigns each completed triple. A
// scorer error for one candidate skips that candidate.
func RankByScorer(kb *munindb.KB, scorer embed.Scorer, sub, pred string, candidates []string, topK int) ([]Prediction, error) {
	if scorer == nil {
		return nil, embed.ErrModelNotReady
	}
	var out []Prediction
	for _, ob := range candidates {
		p, err := scorer.EstimateTripleProb(sub, pred, ob)
		if err != nil {
			continue
		}
		out = append(out, Prediction{Target: ob, Score: p, Algorithm: "scorer"})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Target < out[j].Target
	})
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}
