package chord

type State uint64

const (
	// Not part of the ring, default state
	Offline State = iota
	// Join request sent, waiting for the first membership update
	Joining
	// Finger table is built and requests are routed
	Online
	// Handing off files to the successor
	Leaving
)

func (s State) String() string {
	switch s {
	case Offline:
		return "Offline"
	case Joining:
		return "Joining"
	case Online:
		return "Online"
	case Leaving:
		return "Leaving"
	default:
		return "Unknown"
	}
}
