package memory

import (
	"fmt"
	"testing"

	"go.miragespace.co/filering/spec/chord"

	"github.com/stretchr/testify/require"
)

// identity hash, names are plain ring keys
func keyHash(name string) int {
	var k int
	fmt.Sscanf(name, "%d", &k)
	return k % chord.RingSize
}

func TestAddContains(t *testing.T) {
	as := require.New(t)

	fs := WithHashFn(chord.FileKey)

	as.True(fs.Add("a.txt"))
	as.False(fs.Add("a.txt"))
	as.True(fs.Contains("a.txt"))
	as.False(fs.Contains("b.txt"))
	as.Equal(1, fs.Len())
}

func TestMergeCountsNewNames(t *testing.T) {
	as := require.New(t)

	fs := WithHashFn(chord.FileKey)
	fs.Add("a")

	as.Equal(2, fs.Merge([]string{"a", "b", "c"}))
	as.Equal(3, fs.Len())
	as.ElementsMatch([]string{"a", "b", "c"}, fs.List())
}

func TestListKeyOrder(t *testing.T) {
	as := require.New(t)

	fs := WithHashFn(keyHash)
	fs.Merge([]string{"9", "3", "15", "0"})

	as.Equal([]string{"0", "3", "9", "15"}, fs.List())
}

func TestPartition(t *testing.T) {
	tables := []struct {
		low      int
		high     int
		expected []string
	}{
		{
			low:      4,
			high:     9,
			expected: []string{"5", "9"},
		},
		{
			// wraps around
			low:      12,
			high:     2,
			expected: []string{"0", "2", "13"},
		},
		{
			// whole ring
			low:      7,
			high:     7,
			expected: []string{"0", "2", "4", "5", "9", "13"},
		},
	}

	for _, table := range tables {
		t.Run(fmt.Sprintf("(%d, %d]", table.low, table.high), func(t *testing.T) {
			as := require.New(t)

			fs := WithHashFn(keyHash)
			all := []string{"0", "2", "4", "5", "9", "13"}
			fs.Merge(all)

			extracted := fs.Partition(table.low, table.high)
			as.ElementsMatch(table.expected, extracted)
			as.Equal(len(all)-len(table.expected), fs.Len())
			for _, name := range extracted {
				as.False(fs.Contains(name))
			}
		})
	}
}

func TestRangeNamesDoesNotRemove(t *testing.T) {
	as := require.New(t)

	fs := WithHashFn(keyHash)
	fs.Merge([]string{"1", "6", "11"})

	as.ElementsMatch([]string{"6"}, fs.RangeNames(1, 6))
	as.Equal(3, fs.Len())
}

func TestDrain(t *testing.T) {
	as := require.New(t)

	fs := WithHashFn(chord.FileKey)
	fs.Merge([]string{"a", "b"})

	as.ElementsMatch([]string{"a", "b"}, fs.Drain())
	as.Equal(0, fs.Len())
	as.Empty(fs.List())

	as.True(fs.Add("a"))
}
