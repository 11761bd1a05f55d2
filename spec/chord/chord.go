package chord

import (
	"github.com/spaolacci/murmur3"
	"github.com/zeebo/xxh3"
)

const (
	// Number of identifiers on the ring
	RingSize = 16
	// Also known as m in the Chord paper, covers offsets 2^0..2^3
	FingerEntries = 4
)

func ValidID(id int) bool {
	return id >= 0 && id < RingSize
}

func normalize(x int) int {
	x %= RingSize
	if x < 0 {
		x += RingSize
	}
	return x
}

func ModuloSum(x, y int) int {
	return normalize(normalize(x) + normalize(y))
}

// Between walks forward from start (exclusive) to end (inclusive) and reports
// whether target is visited. start == end covers the whole ring.
func Between(start, end, target int) bool {
	start, end, target = normalize(start), normalize(end), normalize(target)
	i := start
	for {
		i = ModuloSum(i, 1)
		if i == target {
			return true
		}
		if i == end {
			return false
		}
	}
}

// Distance is the number of forward steps from source to dest, in [1, RingSize].
func Distance(source, dest int) int {
	d := normalize(normalize(dest) - normalize(source))
	if d == 0 {
		return RingSize
	}
	return d
}

// FileKey maps a file name onto the ring. The owner of the file is the
// smallest live identifier at or after the key.
func FileKey(name string) int {
	return int(xxh3.HashString(name) % RingSize)
}

// IdentityID derives a node identifier from its network identity.
func IdentityID(address string) int {
	return int(murmur3.Sum32([]byte(address)) % RingSize)
}
