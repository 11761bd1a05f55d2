package chord

import (
	"encoding/binary"
	"sort"

	"go.miragespace.co/filering/spec/protocol"

	"github.com/zeebo/xxh3"
)

// View is an immutable snapshot of the live nodes, ordered by id ascending.
// It is replaced wholesale on every membership update.
type View struct {
	ids     []int
	address map[int]string
	hash    uint64
}

func NewView(members []protocol.Member) *View {
	v := &View{
		ids:     make([]int, 0, len(members)),
		address: make(map[int]string, len(members)),
	}
	for _, m := range members {
		if _, ok := v.address[m.ID]; ok {
			continue
		}
		v.ids = append(v.ids, m.ID)
		v.address[m.ID] = m.Address
	}
	sort.Ints(v.ids)

	h := xxh3.New()
	buf := make([]byte, 8)
	for _, id := range v.ids {
		binary.BigEndian.PutUint64(buf, uint64(id))
		h.Write(buf)
		h.WriteString(v.address[id])
	}
	v.hash = h.Sum64()

	return v
}

func (v *View) IDs() []int {
	if v == nil {
		return nil
	}
	ids := make([]int, len(v.ids))
	copy(ids, v.ids)
	return ids
}

func (v *View) Len() int {
	if v == nil {
		return 0
	}
	return len(v.ids)
}

func (v *View) Contains(id int) bool {
	if v == nil {
		return false
	}
	_, ok := v.address[id]
	return ok
}

func (v *View) Address(id int) (string, bool) {
	if v == nil {
		return "", false
	}
	addr, ok := v.address[id]
	return addr, ok
}

func (v *View) Members() []protocol.Member {
	if v == nil {
		return nil
	}
	members := make([]protocol.Member, 0, len(v.ids))
	for _, id := range v.ids {
		members = append(members, protocol.Member{ID: id, Address: v.address[id]})
	}
	return members
}

func (v *View) Hash() uint64 {
	if v == nil {
		return 0
	}
	return v.hash
}
