// Phi-aware coalescing (spec §4.5): after interference construction,
// visit each block's phi prefix and register a cluster {a1, a2, r}
// whenever none of the three pairwise interferences hold.
package ir

// Cluster is a set of values constrained to share one color (spec §3
// "Interference graph ... Augmented with clusters").
type Cluster struct {
	Members []ValueIdx
}

// Coalesce walks every block's phi prefix and returns the clusters
// registered for two-operand phis whose operands and result are
// mutually non-interfering. Clusters sharing a member transitively
// overlap (membership is many-to-many, spec §4.5); cluster_neighbors
// is computed lazily by ClusterNeighbors.
func Coalesce(prog *Program, fn *Function, g *InterferenceGraph) []*Cluster {
	var clusters []*Cluster
	for _, b := range fn.ReversePostOrder() {
		bb := fn.Block(b)
		for _, idx := range bb.Instructions {
			phi := fn.Instruction(idx)
			if !phi.IsPhi() {
				break
			}
			if !phi.Active || len(phi.Operands) != 2 {
				continue
			}
			a1, a2 := phi.Operands[0], phi.Operands[1]
			r := phi.Result
			if g.Interferes(a1, r) || g.Interferes(a2, r) || g.Interferes(a1, a2) {
				continue
			}
			clusters = append(clusters, &Cluster{Members: []ValueIdx{a1, a2, r}})
		}
	}
	return clusters
}

// ClusterNeighbors is cluster_neighbors[c]: the union of the
// interference-graph neighborhoods of every member of c.
func ClusterNeighbors(g *InterferenceGraph, c *Cluster) map[ValueIdx]bool {
	out := map[ValueIdx]bool{}
	members := map[ValueIdx]bool{}
	for _, m := range c.Members {
		members[m] = true
	}
	for _, m := range c.Members {
		for _, n := range g.Neighbors(m) {
			if !members[n] {
				out[n] = true
			}
		}
	}
	return out
}
