package embed

import (
	"container/list"
	"sync"
)

// CachedScorer wraps a Scorer with an LRU cache keyed by triple.
// Probability lookups against a remote model dominate link-prediction
// sweeps; repeated triples answer from memory instead.
//
// Errors are never cached. Thread-safe.
type CachedScorer struct {
	base Scorer

	mu      sync.Mutex
	cache   map[tripleKey]*list.Element
	lru     *list.List
	maxSize int

	hits   uint64
	misses uint64
}

type tripleKey struct {
	sub, pred, ob string
}

type cacheEntry struct {
	key  tripleKey
	prob float64
}

// NewCachedScorer wraps base with a cache of at most maxSize entries.
// A non-positive maxSize gets a default of 4096.
func NewCachedScorer(base Scorer, maxSize int) *CachedScorer {
	if maxSize <= 0 {
		maxSize = 4096
	}
	return &CachedScorer{
		base:    base,
		cache:   make(map[tripleKey]*list.Element),
		lru:     list.New(),
		maxSize: maxSize,
	}
}

// EstimateTripleProb answers from the cache when possible, falling
// through to the wrapped scorer on a miss.
func (s *CachedScorer) EstimateTripleProb(sub, pred, ob string) (float64, error) {
	key := tripleKey{sub: sub, pred: pred, ob: ob}

	s.mu.Lock()
	if el, ok := s.cache[key]; ok {
		s.lru.MoveToFront(el)
		s.hits++
		prob := el.Value.(*cacheEntry).prob
		s.mu.Unlock()
		return prob, nil
	}
	s.misses++
	s.mu.Unlock()

	prob, err := s.base.EstimateTripleProb(sub, pred, ob)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cache[key]; !ok {
		s.cache[key] = s.lru.PushFront(&cacheEntry{key: key, prob: prob})
		if s.lru.Len() > s.maxSize {
			oldest := s.lru.Back()
			s.lru.Remove(oldest)
			delete(s.cache, oldest.Value.(*cacheEntry).key)
		}
	}
	return prob, nil
}

// Stats returns cache hit and miss counts.
func (s *CachedScorer) Stats() (hits, misses uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits, s.misses
}

// Len returns the number of cached triples.
func (s *CachedScorer) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Len()
}
