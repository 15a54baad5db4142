package urdf

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// index builds the parent/child tables, checks the link graph is a forest and
// picks the designated root.
func (r *Robot) index() error {
	n := len(r.Links)
	r.parentJoint = make([]int, n)
	r.children = make([][]int, n)
	for i := range r.parentJoint {
		r.parentJoint[i] = -1
	}

	g := simple.NewDirectedGraph()
	for i := range r.Links {
		g.AddNode(simple.Node(int64(i)))
	}
	for ji, j := range r.Joints {
		if r.parentJoint[j.Child] >= 0 {
			return fmt.Errorf("%w: %q", ErrMultipleParent, r.Links[j.Child].Name)
		}
		r.parentJoint[j.Child] = ji
		r.children[j.Parent] = append(r.children[j.Parent], ji)
		g.SetEdge(g.NewEdge(simple.Node(int64(j.Parent)), simple.Node(int64(j.Child))))
	}

	if _, err := topo.Sort(g); err != nil {
		return fmt.Errorf("%w: %v", ErrCycle, err)
	}

	r.order = make([]int, 0, n)
	var visit func(id int64)
	visit = func(id int64) {
		r.order = append(r.order, int(id))
		kids := graph.NodesOf(g.From(id))
		sort.Slice(kids, func(a, b int) bool { return kids[a].ID() < kids[b].ID() })
		for _, k := range kids {
			visit(k.ID())
		}
	}
	for i := range r.Links {
		if g.To(int64(i)).Len() == 0 {
			visit(int64(i))
		}
	}

	r.Root = -1
	for _, i := range r.order {
		if r.IsWorld(i) {
			continue
		}
		p := r.parentJoint[i]
		if p < 0 || r.IsWorld(r.Joints[p].Parent) {
			r.Root = i
			break
		}
	}
	if r.Root < 0 {
		return ErrNoRoot
	}
	return nil
}
