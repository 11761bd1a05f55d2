package chord

import (
	"fmt"
	"io"
	"net/http"

	"go.miragespace.co/filering/spec/chord"

	"github.com/jedib0t/go-pretty/v6/table"
)

// predecessorOf is the largest live id before id, wrapping around.
func predecessorOf(view *View, id int) int {
	ids := view.IDs()
	pre := id
	for _, other := range ids {
		if other == id {
			continue
		}
		if pre == id || chord.Distance(other, id) < chord.Distance(pre, id) {
			pre = other
		}
	}
	return pre
}

// custodyCheck reports whether every held file belongs to (predecessor, id].
func custodyCheck(files []string, view *View, id int) bool {
	pre := predecessorOf(view, id)
	for _, name := range files {
		if !chord.Between(pre, id, chord.FileKey(name)) {
			return false
		}
	}
	return true
}

func (n *LocalNode) printSummary(w io.Writer) {
	tbl, view := n.snapshot()

	fmt.Fprintf(w, "Current state: %s\n", n.state.Get().String())
	fmt.Fprintf(w, "State history: %v\n", n.StateHistory())
	fmt.Fprintf(w, "---\n")

	if tbl == nil {
		fmt.Fprintf(w, "Node %d is not part of the ring\n", n.ID())
		return
	}

	membersTable := table.NewWriter()
	membersTable.SetOutputMirror(w)
	membersTable.AppendHeader(table.Row{"ID", "Address", "Where"})
	for _, m := range view.Members() {
		where := ""
		switch m.ID {
		case n.ID():
			where = "Local"
		case tbl.Successor():
			where = "Successor"
		}
		membersTable.AppendRow(table.Row{m.ID, m.Address, where})
	}
	membersTable.SetCaption("(view: %016x)", view.Hash())
	membersTable.SetStyle(table.StyleDefault)
	membersTable.Render()

	fmt.Fprintf(w, "---\n")

	FingerTableWriter(w, tbl).Render()

	fmt.Fprintf(w, "---\n")

	files := n.Files()
	FilesTableWriter(w, files).Render()
	fmt.Fprintf(w, "(custody check: %v)\n", custodyCheck(files, view, n.ID()))
}

// FingerTableWriter prepares a rendering of t, used by both the stats
// handler and the operator menu.
func FingerTableWriter(w io.Writer, t *FingerTable) table.Writer {
	fingerTable := table.NewWriter()
	fingerTable.SetOutputMirror(w)
	fingerTable.AppendHeader(table.Row{"Entry", "Ideal", "Successor"})
	for i, f := range t.Entries() {
		fingerTable.AppendRow(table.Row{i, f.Ideal, f.Successor})
	}
	fingerTable.SetCaption("(anchor: %d, successor: %d)", t.Anchor(), t.Successor())
	fingerTable.SetStyle(table.StyleDefault)
	fingerTable.Style().Options.SeparateRows = true
	return fingerTable
}

func FilesTableWriter(w io.Writer, files []string) table.Writer {
	filesTable := table.NewWriter()
	filesTable.SetOutputMirror(w)
	filesTable.AppendHeader(table.Row{"hash(file)", "File"})
	for _, name := range files {
		filesTable.AppendRow(table.Row{chord.FileKey(name), name})
	}
	filesTable.SetCaption("(files: %d)", len(files))
	filesTable.SetStyle(table.StyleDefault)
	return filesTable
}

func statsHandler(node *LocalNode) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "text/plain")
		node.printSummary(w)
	}
}
