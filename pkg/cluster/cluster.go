package cluster

import (
	"sort"

	"github.com/AteetVatan/masx-geosignal/internal/config"
	"github.com/AteetVatan/masx-geosignal/pkg/shared/mathutil"
)

// Vector is one entry's position in the clustering graph. Only non-duplicate
// EntryVectors for a single flashpoint are ever passed in together.
type Vector struct {
	EntryID string
	Values  []float64
}

// Cluster is one dense-ranked connected component.
type Cluster struct {
	ClusterID int
	EntryIDs  []string
}

// Cluster partitions vectors (already scoped to one flashpoint) into
// connected components over a kNN cosine-similarity graph, per the
// algorithm: kNN edges at >= threshold, union-find, then components ranked
// by size DESC then smallest entry_id ASC.
func Cluster(vectors []Vector, cfg config.ClusterConfig) []Cluster {
	if len(vectors) == 0 {
		return nil
	}

	uf := newUnionFind(len(vectors))
	for i := range vectors {
		neighbors := kNearest(vectors, i, cfg.KNNK, cfg.CosineThreshold)
		for _, j := range neighbors {
			uf.union(i, j)
		}
	}

	groups := make(map[int][]string)
	for i, v := range vectors {
		root := uf.find(i)
		groups[root] = append(groups[root], v.EntryID)
	}

	components := make([]Cluster, 0, len(groups))
	for _, members := range groups {
		sort.Strings(members)
		components = append(components, Cluster{EntryIDs: members})
	}

	sort.Slice(components, func(i, j int) bool {
		if len(components[i].EntryIDs) != len(components[j].EntryIDs) {
			return len(components[i].EntryIDs) > len(components[j].EntryIDs)
		}
		return components[i].EntryIDs[0] < components[j].EntryIDs[0]
	})

	for rank := range components {
		components[rank].ClusterID = rank + 1
	}
	return components
}

// kNearest returns the indices of up to k vectors nearest to vectors[idx] by
// cosine similarity, excluding idx itself, restricted to similarity >=
// threshold.
func kNearest(vectors []Vector, idx, k int, threshold float64) []int {
	type scored struct {
		index int
		score float64
	}
	var candidates []scored
	for j := range vectors {
		if j == idx {
			continue
		}
		sim := mathutil.CosineSimilarity(vectors[idx].Values, vectors[j].Values)
		if sim >= threshold {
			candidates = append(candidates, scored{index: j, score: sim})
		}
	}
	sort.Slice(candidates, func(a, b int) bool {
		if candidates[a].score != candidates[b].score {
			return candidates[a].score > candidates[b].score
		}
		return vectors[candidates[a].index].EntryID < vectors[candidates[b].index].EntryID
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	out := make([]int, len(candidates))
	for i, c := range candidates {
		out[i] = c.index
	}
	return out
}
