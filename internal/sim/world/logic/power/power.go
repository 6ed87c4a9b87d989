package power

import (
	"sort"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/zyedidia/generic/mapset"

	"spancraft.ai/internal/sim/catalogs"
	"spancraft.ai/internal/sim/world/logic/mathx"
	"spancraft.ai/internal/sim/world/terrain/store"
)

// NodeKey identifies a conductor attachment point. Every identity comparison
// between attachment points goes through KeyOf.
type NodeKey struct {
	X, Y, Z int
}

func KeyOf(v mgl64.Vec3) NodeKey {
	return NodeKey{X: mathx.Round(v.X()), Y: mathx.Round(v.Y()), Z: mathx.Round(v.Z())}
}

func KeyOfPos(p store.Pos) NodeKey {
	return NodeKey{X: p.X, Y: p.Y, Z: p.Z}
}

func (k NodeKey) Pos() store.Pos {
	return store.Pos{X: k.X, Y: k.Y, Z: k.Z}
}

func (k NodeKey) Vec() mgl64.Vec3 {
	return mgl64.Vec3{float64(k.X), float64(k.Y), float64(k.Z)}
}

type Edge struct {
	From, To NodeKey
}

type Env interface {
	BlockAt(p store.Pos) catalogs.BlockType
	Find(b catalogs.BlockType) []store.Pos
}

// CollectSources returns every pole in a contiguous vertical run standing on a
// battery, plus any extra terminals.
func CollectSources(env Env, extra ...NodeKey) mapset.Set[NodeKey] {
	out := mapset.New[NodeKey]()
	for _, k := range extra {
		out.Put(k)
	}
	for _, b := range env.Find(catalogs.Battery) {
		start := b.Add(0, 1, 0)
		if !env.BlockAt(start).IsPole() {
			continue
		}
		for p := start; env.BlockAt(p).IsPole(); p = p.Add(0, 1, 0) {
			out.Put(KeyOfPos(p))
		}
		for p := start.Add(0, -1, 0); env.BlockAt(p).IsPole(); p = p.Add(0, -1, 0) {
			out.Put(KeyOfPos(p))
		}
	}
	return out
}

type Result struct {
	Nodes mapset.Set[NodeKey]
	// Edges holds indexes into the edge slice passed to Propagate.
	Edges mapset.Set[int]
}

func (r Result) IsPowered(k NodeKey) bool { return r.Nodes.Has(k) }

func (r Result) EdgePowered(i int) bool { return r.Edges.Has(i) }

// Propagate floods power from sources across edges. The result does not depend
// on edge order.
func Propagate(sources mapset.Set[NodeKey], edges []Edge) Result {
	res := Result{Nodes: mapset.New[NodeKey](), Edges: mapset.New[int]()}

	adj := make(map[NodeKey][]int, len(edges)*2)
	for i, e := range edges {
		adj[e.From] = append(adj[e.From], i)
		if e.To != e.From {
			adj[e.To] = append(adj[e.To], i)
		}
	}

	queue := SortedKeys(sources)
	for _, k := range queue {
		res.Nodes.Put(k)
	}
	for len(queue) > 0 {
		k := queue[0]
		queue = queue[1:]
		for _, i := range adj[k] {
			res.Edges.Put(i)
			other := edges[i].To
			if other == k {
				other = edges[i].From
			}
			if res.Nodes.Has(other) {
				continue
			}
			res.Nodes.Put(other)
			queue = append(queue, other)
		}
	}
	return res
}

func SortedKeys(s mapset.Set[NodeKey]) []NodeKey {
	out := make([]NodeKey, 0, s.Size())
	s.Each(func(k NodeKey) { out = append(out, k) })
	sort.Slice(out, func(i, j int) bool {
		return out[i].Pos().Less(out[j].Pos())
	})
	return out
}
