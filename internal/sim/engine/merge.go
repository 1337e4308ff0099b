package engine

import (
	"gravsim.dev/internal/sim/body"
)

// combine reduces members into one body that takes over the survivor's slot and tag.
func combine(bodies []body.Body, members []int, survivor int) body.Body {
	var (
		mass   float64
		px, py float64
		qx, qy float64
		fixed  bool
	)
	for _, k := range members {
		b := bodies[k]
		mass += b.Mass
		px += b.Mass * b.Pos.X
		py += b.Mass * b.Pos.Y
		qx += b.Mass * b.Prev.X
		qy += b.Mass * b.Prev.Y
		fixed = fixed || b.Fixed
	}
	out := body.Body{
		Mass: mass,
		Tag:  bodies[survivor].Tag,
	}
	out.Pos.X, out.Pos.Y = px/mass, py/mass
	if fixed {
		out.Fixed = true
		out.Tag = body.StarTag
		out.Hold()
		return out
	}
	out.Prev.X, out.Prev.Y = qx/mass, qy/mass
	return out
}

// heaviest picks the member with the largest mass; the lowest index wins ties.
func heaviest(bodies []body.Body, members []int) int {
	best := members[0]
	for _, k := range members[1:] {
		if bodies[k].Mass > bodies[best].Mass || (bodies[k].Mass == bodies[best].Mass && k < best) {
			best = k
		}
	}
	return best
}

func mergeGrouped(bodies []body.Body, pairs []pair) []Merge {
	uf := newUnionFind(len(bodies))
	for _, p := range pairs {
		uf.union(p.i, p.j)
	}

	// Group members in ascending index order; groups ordered by their lowest member.
	var roots []int
	groups := map[int][]int{}
	for i := range bodies {
		r := uf.find(i)
		if _, ok := groups[r]; !ok {
			roots = append(roots, r)
		}
		groups[r] = append(groups[r], i)
	}

	var out []Merge
	for _, r := range roots {
		members := groups[r]
		if len(members) < 2 {
			continue
		}
		s := heaviest(bodies, members)
		absorbed := make([]int, 0, len(members)-1)
		for _, k := range members {
			if k != s {
				absorbed = append(absorbed, k)
			}
		}
		bodies[s] = combine(bodies, members, s)
		out = append(out, Merge{Survivor: s, Absorbed: absorbed, Result: bodies[s]})
	}
	return out
}

func mergePairwise(bodies []body.Body, pairs []pair) []Merge {
	gone := make([]bool, len(bodies))
	var out []Merge
	for _, p := range pairs {
		if gone[p.i] || gone[p.j] {
			continue
		}
		members := []int{p.i, p.j}
		s := heaviest(bodies, members)
		a := p.j
		if s == p.j {
			a = p.i
		}
		bodies[s] = combine(bodies, members, s)
		gone[a] = true
		out = append(out, Merge{Survivor: s, Absorbed: []int{a}, Result: bodies[s]})
	}
	return out
}

// compact returns a fresh slice without absorbed bodies, preserving order.
func compact(bodies []body.Body, merges []Merge) []body.Body {
	gone := make([]bool, len(bodies))
	removed := 0
	for _, m := range merges {
		for _, k := range m.Absorbed {
			if !gone[k] {
				gone[k] = true
				removed++
			}
		}
	}
	out := make([]body.Body, 0, len(bodies)-removed)
	for i, b := range bodies {
		if !gone[i] {
			out = append(out, b)
		}
	}
	return out
}

type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	return &unionFind{parent: p}
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	// Keep the lower index as root so group identity is stable.
	if rb < ra {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
}
