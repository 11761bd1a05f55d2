package chord

import (
	"fmt"
	"net/http"

	"go.miragespace.co/filering/spec/protocol"

	"github.com/dominikbraun/graph"
	"github.com/dominikbraun/graph/draw"
)

func formatMember(m protocol.Member) string {
	return fmt.Sprintf("%s/%d", m.Address, m.ID)
}

var vOptions = []func(*graph.VertexProperties){
	graph.VertexAttribute("shape", "box"),
}

var selfVOptions = append(vOptions,
	graph.VertexAttribute("style", "filled"),
	graph.VertexAttribute("color", "yellow"),
)

var fingerEOptions = []func(*graph.EdgeProperties){
	graph.EdgeAttribute("style", "dashed"),
	graph.EdgeAttribute("color", "grey"),
}

// ringGraph draws the ring from the node's view as successor edges, with
// the node's own finger entries as dashed edges.
func ringGraph(view *View, t *FingerTable) (graph.Graph[string, protocol.Member], error) {
	ring := graph.New(formatMember, graph.Directed())

	members := view.Members()
	if len(members) == 0 {
		return ring, nil
	}
	byID := make(map[int]protocol.Member, len(members))
	for _, m := range members {
		byID[m.ID] = m
		if m.ID == t.Owner() {
			ring.AddVertex(m, selfVOptions...)
		} else {
			ring.AddVertex(m, vOptions...)
		}
	}

	for i := range members {
		next := members[(i+1)%len(members)]
		if err := ring.AddEdge(formatMember(members[i]), formatMember(next)); err != nil {
			return nil, err
		}
	}

	self := byID[t.Owner()]
	for _, f := range t.Entries() {
		succ, ok := byID[f.Successor]
		if !ok || succ.ID == self.ID {
			continue
		}
		opts := append(fingerEOptions, graph.EdgeAttribute("label", fmt.Sprintf("+%d", f.Ideal)))
		// the successor edge may already be there
		ring.AddEdge(formatMember(self), formatMember(succ), opts...)
	}

	return ring, nil
}

func ringGraphHandler(node *LocalNode) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, view := node.snapshot()
		if t == nil {
			http.Error(w, "node is not part of the ring", http.StatusServiceUnavailable)
			return
		}
		ring, err := ringGraph(view, t)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("content-type", "text/plain")
		draw.DOT(ring, w)
	}
}
