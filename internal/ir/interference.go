// Liveness and interference-graph construction (spec §4.4), grounded
// on original_source/src/Analysis/IGBuilder.cpp: reverse post-order
// block visitation, reverse-instruction-order per-block liveness, phi
// operand-source injection across block boundaries, and the
// never-interferes exclusion set.
package ir

// InterferenceGraph is the undirected graph over ValueIdx built fresh
// per allocation run (spec §3 "rebuilt from scratch per allocation
// run").
type InterferenceGraph struct {
	neighbors map[ValueIdx]map[ValueIdx]bool
	liveIn    map[BasicBlockIdx]map[ValueIdx]bool
}

func newInterferenceGraph() *InterferenceGraph {
	return &InterferenceGraph{
		neighbors: map[ValueIdx]map[ValueIdx]bool{},
		liveIn:    map[BasicBlockIdx]map[ValueIdx]bool{},
	}
}

func (g *InterferenceGraph) addNode(v ValueIdx) {
	if g.neighbors[v] == nil {
		g.neighbors[v] = map[ValueIdx]bool{}
	}
}

func (g *InterferenceGraph) addEdge(x, y ValueIdx) {
	if x == y {
		return
	}
	g.addNode(x)
	g.addNode(y)
	g.neighbors[x][y] = true
	g.neighbors[y][x] = true
}

// Interferes reports whether x and y share an edge.
func (g *InterferenceGraph) Interferes(x, y ValueIdx) bool {
	return g.neighbors[x] != nil && g.neighbors[x][y]
}

// Neighbors returns v's interference neighborhood.
func (g *InterferenceGraph) Neighbors(v ValueIdx) []ValueIdx {
	out := make([]ValueIdx, 0, len(g.neighbors[v]))
	for n := range g.neighbors[v] {
		out = append(out, n)
	}
	return out
}

// Nodes returns every value that needs a register.
func (g *InterferenceGraph) Nodes() []ValueIdx {
	out := make([]ValueIdx, 0, len(g.neighbors))
	for n := range g.neighbors {
		out = append(out, n)
	}
	return out
}

// BuildInterference runs the interference-graph builder over fn (spec
// §4.4). prog supplies per-value kind/loop-depth bookkeeping.
func BuildInterference(prog *Program, fn *Function) *InterferenceGraph {
	g := newInterferenceGraph()
	visited := map[BasicBlockIdx]bool{}

	rpo := fn.ReversePostOrder()
	for _, b := range rpo {
		walkLiveness(prog, fn, g, b, visited, 0)
	}
	return g
}

// walkLiveness computes live_in[b] by combining successors' live_in
// sets (recursing first, skipping back-edges so loop headers converge
// in one pass, spec §4.4) and then scanning b's own instructions in
// reverse.
func walkLiveness(prog *Program, fn *Function, g *InterferenceGraph, b BasicBlockIdx, visited map[BasicBlockIdx]bool, depth int) map[ValueIdx]bool {
	if live, ok := g.liveIn[b]; ok {
		return live
	}
	if visited[b] {
		return map[ValueIdx]bool{}
	}
	visited[b] = true

	bb := fn.Block(b)
	curDepth := depth
	if bb.Kind == BlockLoopHead {
		curDepth++
	}

	live := map[ValueIdx]bool{}
	for _, s := range bb.Succs {
		if fn.IsBackEdge(b, s) {
			continue
		}
		sLive := walkLiveness(prog, fn, g, s, visited, curDepth)
		for v := range sLive {
			live[v] = true
		}
	}

	// Step 2: phi operand-source injection from successors whose phi
	// prefix names b as a predecessor.
	for _, s := range bb.Succs {
		sb := fn.Block(s)
		for _, idx := range sb.Instructions {
			inst := fn.Instruction(idx)
			if !inst.IsPhi() {
				break
			}
			if !inst.Active {
				continue
			}
			if v, ok := inst.OpSource[b]; ok {
				if val := prog.Value(v); val != nil && !val.Kind.NeverInterferes() {
					live[v] = true
				}
			}
		}
	}

	// Step 3: reverse-instruction-order scan.
	for i := len(bb.Instructions) - 1; i >= 0; i-- {
		inst := fn.Instruction(bb.Instructions[i])
		if !inst.Active {
			continue
		}
		if inst.Result != InvalidValue {
			r := prog.Value(inst.Result)
			r.LoopDepth = curDepth
			delete(live, inst.Result)
		}
		if !inst.IsPhi() {
			for _, op := range inst.Operands {
				val := prog.Value(op)
				if val == nil || val.Kind.NeverInterferes() {
					continue
				}
				live[op] = true
			}
		}
		for x := range live {
			for y := range live {
				if x != y {
					g.addEdge(x, y)
				}
			}
		}
	}

	g.liveIn[b] = live
	return live
}
