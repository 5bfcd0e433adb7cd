package routing

import "sort"

// Components groups the backbone nodes into clusters connected by a link in
// either direction. Each cluster is sorted, and clusters are ordered by their
// smallest member.
func Components(m Matrix) [][]int {
	parent := make([]int, m.N)
	for i := range parent {
		parent[i] = i
	}
	find := func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}

	for i := 0; i < m.N; i++ {
		for j := 0; j < m.N; j++ {
			if i != j && m.At(i, j) == 1 {
				union(i, j)
			}
		}
	}

	groups := make(map[int][]int)
	for i := 0; i < m.N; i++ {
		root := find(i)
		groups[root] = append(groups[root], i)
	}

	clusters := make([][]int, 0, len(groups))
	for _, members := range groups {
		clusters = append(clusters, members) // members are already ascending
	}
	sort.Slice(clusters, func(a, b int) bool { return clusters[a][0] < clusters[b][0] })
	return clusters
}

// Connected reports whether every backbone node can reach every other one,
// ignoring link direction.
func Connected(m Matrix) bool {
	return len(Components(m)) <= 1
}
