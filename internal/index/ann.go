package index

import (
	"github.com/coder/hnsw"
)

// annBackend wraps a coder/hnsw graph for approximate candidate
// retrieval. String identities map to monotonically increasing keys;
// deletion is lazy (the mapping is dropped, the node stays) because
// removing the last graph node corrupts the graph.
type annBackend struct {
	graph   *hnsw.Graph[uint64]
	idToKey map[string]uint64
	keyToID map[uint64]string
	nextKey uint64
	dims    int
}

func newANNBackend(dims int) *annBackend {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 20
	graph.Ml = 0.25
	return &annBackend{
		graph:   graph,
		idToKey: make(map[string]uint64),
		keyToID: make(map[uint64]string),
		dims:    dims,
	}
}

// upsert adds a vector under a fresh key, orphaning any previous key
// for the same identity. Callers hold the index lock.
func (a *annBackend) upsert(id string, vector []float32) {
	if oldKey, ok := a.idToKey[id]; ok {
		delete(a.keyToID, oldKey)
	}
	key := a.nextKey
	a.nextKey++

	a.graph.Add(hnsw.MakeNode(key, vector))
	a.idToKey[id] = key
	a.keyToID[key] = id
}

func (a *annBackend) delete(id string) {
	if key, ok := a.idToKey[id]; ok {
		delete(a.keyToID, key)
		delete(a.idToKey, id)
	}
}

// search returns up to k identities nearest the query. Orphaned graph
// nodes are skipped, so it over-fetches to compensate.
func (a *annBackend) search(query []float32, k int) []string {
	if a.graph.Len() == 0 {
		return nil
	}
	orphans := a.graph.Len() - len(a.keyToID)
	nodes := a.graph.Search(query, k+orphans)

	ids := make([]string, 0, k)
	for _, node := range nodes {
		id, ok := a.keyToID[node.Key]
		if !ok {
			continue
		}
		ids = append(ids, id)
		if len(ids) == k {
			break
		}
	}
	return ids
}
