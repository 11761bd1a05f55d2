package chord

import (
	"context"
	"os"
	"sync"

	"go.miragespace.co/filering/spec/chord"

	"go.uber.org/zap"
)

// TerminationGuard performs a best effort leave when the process is told
// to terminate. It runs at most once, does not retry and does not wait for
// acknowledgements. A hard kill skips it entirely, so files held by a node
// that dies that way stay stranded.
type TerminationGuard struct {
	node   *LocalNode
	logger *zap.Logger
	once   sync.Once
	err    error
	ran    bool
}

func NewTerminationGuard(node *LocalNode) *TerminationGuard {
	return &TerminationGuard{
		node:   node,
		logger: node.logger.With(zap.String("component", "termination_guard")),
	}
}

// Watch blocks until a signal arrives on sig or ctx is done. A signal
// triggers the handoff. The received signal is returned, nil if none.
func (g *TerminationGuard) Watch(ctx context.Context, sig <-chan os.Signal) os.Signal {
	select {
	case <-ctx.Done():
		return nil
	case s := <-sig:
		g.logger.Info("Received termination signal", zap.String("signal", s.String()))
		g.Handoff()
		return s
	}
}

// Recover is meant to be deferred. It hands off on a panic, then re-panics.
func (g *TerminationGuard) Recover() {
	if r := recover(); r != nil {
		g.logger.Error("Panic, attempting handoff before exit", zap.Any("panic", r))
		g.Handoff()
		panic(r)
	}
}

// Handoff runs the leave steps if the node is online or joining. A joining
// node holds no files yet, so only the rendezvous is told. Only the first
// call does anything. It returns whether the leave was attempted, and its error.
func (g *TerminationGuard) Handoff() (bool, error) {
	g.once.Do(func() {
		_, online := g.node.state.Transition(chord.Online, chord.Leaving)
		if !online {
			if _, joining := g.node.state.Transition(chord.Joining, chord.Leaving); !joining {
				g.logger.Debug("Node is not part of the ring, nothing to hand off", zap.String("state", g.node.State().String()))
				return
			}
		}
		g.ran = true

		ctx, cancel := context.WithTimeout(context.Background(), g.node.HandoffTimeout)
		defer cancel()

		if err := g.node.leave(ctx); err != nil {
			g.err = err
			g.logger.Error("Best effort handoff failed", zap.Error(err))
			return
		}
		g.logger.Info("Best effort handoff completed")
	})
	return g.ran, g.err
}
