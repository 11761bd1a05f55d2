package chord

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestModuloSum(t *testing.T) {
	as := require.New(t)

	as.Equal(0, ModuloSum(15, 1))
	as.Equal(7, ModuloSum(9, 14))
	as.Equal(15, ModuloSum(0, -1))
}

func TestBetween(t *testing.T) {
	tables := []struct {
		start    int
		end      int
		target   int
		expected bool
	}{
		{start: 1, end: 5, target: 3, expected: true},
		{start: 1, end: 5, target: 5, expected: true},
		{start: 1, end: 5, target: 1, expected: false},
		{start: 1, end: 5, target: 6, expected: false},
		// wraps around
		{start: 12, end: 2, target: 15, expected: true},
		{start: 12, end: 2, target: 0, expected: true},
		{start: 12, end: 2, target: 2, expected: true},
		{start: 12, end: 2, target: 7, expected: false},
		// the whole ring
		{start: 4, end: 4, target: 4, expected: true},
		{start: 4, end: 4, target: 9, expected: true},
	}

	for _, table := range tables {
		t.Run(fmt.Sprintf("%d in (%d, %d]", table.target, table.start, table.end), func(t *testing.T) {
			as := require.New(t)
			as.Equal(table.expected, Between(table.start, table.end, table.target))
		})
	}
}

func TestBetweenTerminates(t *testing.T) {
	as := require.New(t)

	for start := 0; start < RingSize; start++ {
		for end := 0; end < RingSize; end++ {
			count := 0
			for target := 0; target < RingSize; target++ {
				if Between(start, end, target) {
					count++
				}
			}
			as.Equal(Distance(start, end), count)
		}
	}
}

func TestDistance(t *testing.T) {
	as := require.New(t)

	for n := 0; n < RingSize; n++ {
		as.Equal(RingSize, Distance(n, n))
		for d := 1; d < RingSize; d++ {
			as.Equal(d, Distance(n, ModuloSum(n, d)))
		}
	}
}

func TestKeysInRing(t *testing.T) {
	as := require.New(t)

	for i := 0; i < 1000; i++ {
		name := fmt.Sprintf("file-%d", i)
		as.True(ValidID(FileKey(name)))
		as.Equal(FileKey(name), FileKey(name))
		as.True(ValidID(IdentityID(name)))
	}
	as.False(ValidID(-1))
	as.False(ValidID(RingSize))
}

func TestErrorRetryable(t *testing.T) {
	as := require.New(t)

	as.True(ErrorIsRetryable(fmt.Errorf("dialing: %w", ErrConnectionRefused)))
	as.False(ErrorIsRetryable(ErrorWithID(ErrJoinRejected, 3)))
	as.ErrorIs(ErrorWithID(ErrJoinRejected, 3), ErrJoinRejected)
	as.Contains(ErrorWithID(ErrJoinRejected, 3).Error(), "id: 3")
}

func TestStateString(t *testing.T) {
	as := require.New(t)

	as.Equal("Offline", Offline.String())
	as.Equal("Leaving", Leaving.String())
	as.Equal("Unknown", State(42).String())
}
