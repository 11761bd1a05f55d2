package chord

import (
	"sort"

	"go.miragespace.co/filering/spec/chord"
)

type Finger struct {
	// (owner + 2^i) mod RingSize
	Ideal int
	// smallest live id at or after Ideal, wrapping to the ring minimum
	Successor int
}

// FingerTable is built in full from one membership snapshot and never patched.
type FingerTable struct {
	owner   int
	entries [chord.FingerEntries]Finger
}

func BuildFingerTable(owner int, view *View) (*FingerTable, error) {
	if !chord.ValidID(owner) {
		return nil, chord.ErrorWithID(chord.ErrInvalidID, owner)
	}
	if view.Len() == 0 {
		return nil, chord.ErrEmptyMembership
	}
	ids := view.IDs()
	t := &FingerTable{
		owner: owner,
	}
	for i := 0; i < chord.FingerEntries; i++ {
		ideal := chord.ModuloSum(owner, 1<<i)
		t.entries[i] = Finger{
			Ideal:     ideal,
			Successor: successorOf(ids, ideal),
		}
	}
	return t, nil
}

// ids must be sorted ascending and non-empty
func successorOf(ids []int, key int) int {
	i := sort.SearchInts(ids, key)
	if i == len(ids) {
		return ids[0]
	}
	return ids[i]
}

func (t *FingerTable) Owner() int {
	return t.owner
}

func (t *FingerTable) Entries() []Finger {
	e := make([]Finger, len(t.entries))
	copy(e, t.entries[:])
	return e
}

func (t *FingerTable) Lookup(ideal int) (int, bool) {
	for _, f := range t.entries {
		if f.Ideal == ideal {
			return f.Successor, true
		}
	}
	return 0, false
}

// Anchor is the ideal position of the first entry, owner + 1.
func (t *FingerTable) Anchor() int {
	return t.entries[0].Ideal
}

// Successor is the live node recorded for the anchor. Leave and join
// handoffs go there.
func (t *FingerTable) Successor() int {
	return t.entries[0].Successor
}

func (t *FingerTable) Equal(o *FingerTable) bool {
	if t == nil || o == nil {
		return t == o
	}
	return t.owner == o.owner && t.entries == o.entries
}

// Hop is a single routing decision. Next is where the request goes and Owner
// is the final owner tagged on the forwarded request. Local means the owner
// of the table is the final owner.
type Hop struct {
	Local bool
	Next  int
	Owner int
}

// NextHop picks where a request for target goes from this node. Every
// forwarded hop strictly reduces the ring distance to target, so routing
// over a static snapshot terminates.
func (t *FingerTable) NextHop(target int) Hop {
	if target == t.owner {
		return Hop{Local: true, Next: t.owner, Owner: t.owner}
	}

	var hop Hop
	if succ, ok := t.Lookup(target); ok {
		hop = Hop{Next: succ, Owner: succ}
	} else {
		// first minimum wins
		closest := t.entries[0]
		min := chord.Distance(closest.Ideal, target)
		for _, f := range t.entries[1:] {
			if d := chord.Distance(f.Ideal, target); d < min {
				closest, min = f, d
			}
		}
		hop = Hop{Next: closest.Successor, Owner: target}
		// (ideal, successor] is empty past the ideal itself when the ideal is live
		if closest.Successor != closest.Ideal && chord.Between(closest.Ideal, closest.Successor, target) {
			hop.Owner = closest.Successor
		}
	}

	if hop.Next == t.owner {
		hop.Local = true
		hop.Owner = t.owner
	}
	return hop
}
