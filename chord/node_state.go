package chord

import (
	"runtime"
	"sync/atomic"

	"go.miragespace.co/filering/spec/chord"

	"github.com/zhangyunhao116/skipmap"
)

// nodeState packs a transition counter above the 4 state bits, so every
// transition is recorded once in history.
type nodeState struct {
	state   atomic.Uint64
	history *skipmap.Uint64Map[chord.State]
}

func newNodeState(initial chord.State) *nodeState {
	s := &nodeState{
		history: skipmap.NewUint64[chord.State](),
	}
	s.state.Store(uint64(initial))
	s.history.Store(0, initial)
	return s
}

func (s *nodeState) Transition(exp chord.State, nxt chord.State) (chord.State, bool) {
	curr := s.state.Load()
	if chord.State(curr&0b1111) != exp {
		return chord.State(curr & 0b1111), false
	}
	nextIndex := (curr >> 4) + 1
	if s.state.CompareAndSwap(curr, (nextIndex<<4)|uint64(nxt)) {
		s.history.Store(nextIndex, nxt)
		return nxt, true
	}
	return s.Get(), false
}

func (s *nodeState) Set(val chord.State) {
	for {
		if _, ok := s.Transition(s.Get(), val); ok {
			break
		}
		runtime.Gosched()
	}
}

func (s *nodeState) Get() chord.State {
	return chord.State(s.state.Load() & 0b1111)
}

func (s *nodeState) History() []chord.State {
	h := make([]chord.State, 0)
	s.history.Range(func(_ uint64, state chord.State) bool {
		h = append(h, state)
		return true
	})
	return h
}
