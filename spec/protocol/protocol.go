package protocol

import "fmt"

// Kind tags every message. Each connection carries exactly one tagged
// message, optionally followed by a single reply on the same connection.
type Kind uint8

const (
	KindUnknown Kind = iota
	// peer -> rendezvous, "Joining"
	KindJoin
	// rendezvous -> peer, reply to KindJoin
	KindJoinReply
	// peer -> rendezvous, "Going offline"
	KindLeave
	// rendezvous -> peer, full LiveNodes snapshot
	KindMembershipUpdate
	KindInsert
	KindSearch
	KindSearchResult
	// leave and fault handoff, merged unconditionally by the receiver
	KindBatchTransfer
	// join handoff, answered with KindPullResponse on the same connection
	KindPullRequest
	KindPullResponse

	kindSentinel
)

var kindNames = [...]string{
	KindUnknown:          "unknown",
	KindJoin:             "join",
	KindJoinReply:        "join-reply",
	KindLeave:            "leave",
	KindMembershipUpdate: "membership-update",
	KindInsert:           "insert",
	KindSearch:           "search",
	KindSearchResult:     "search-result",
	KindBatchTransfer:    "batch-transfer",
	KindPullRequest:      "pull-request",
	KindPullResponse:     "pull-response",
}

func (k Kind) String() string {
	if k >= kindSentinel {
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
	return kindNames[k]
}

func (k Kind) Valid() bool {
	return k > KindUnknown && k < kindSentinel
}

type Member struct {
	ID      int    `codec:"id"`
	Address string `codec:"address"`
}

type Message struct {
	Kind      Kind     `codec:"kind"`
	RequestID string   `codec:"rid,omitempty"`
	NodeID    int      `codec:"node"`
	Address   string   `codec:"addr,omitempty"`
	Target    int      `codec:"target"`
	FileName  string   `codec:"file,omitempty"`
	Files     []string `codec:"files,omitempty"`
	Members   []Member `codec:"members,omitempty"`
	Accepted  bool     `codec:"accepted,omitempty"`
	Found     bool     `codec:"found,omitempty"`
	Text      string   `codec:"text,omitempty"`
}

func NewJoin(id int, address string) *Message {
	return &Message{Kind: KindJoin, NodeID: id, Address: address}
}

func NewJoinReply(id int, accepted bool) *Message {
	m := &Message{Kind: KindJoinReply, NodeID: id, Accepted: accepted}
	if accepted {
		m.Text = fmt.Sprintf("Welcome %d", id)
	} else {
		m.Text = fmt.Sprintf("%d is already in use!", id)
	}
	return m
}

func NewLeave(id int) *Message {
	return &Message{Kind: KindLeave, NodeID: id}
}

func NewMembershipUpdate(members []Member) *Message {
	return &Message{Kind: KindMembershipUpdate, Members: members}
}

func NewInsert(target int, name string) *Message {
	return &Message{Kind: KindInsert, Target: target, FileName: name}
}

func NewSearch(requestID string, requester string, name string, target int) *Message {
	return &Message{Kind: KindSearch, RequestID: requestID, Address: requester, FileName: name, Target: target}
}

func NewSearchResult(requestID string, name string, holder int, found bool) *Message {
	m := &Message{Kind: KindSearchResult, RequestID: requestID, FileName: name, NodeID: holder, Found: found}
	if found {
		m.Text = fmt.Sprintf("File %s found at %d", name, holder)
	} else {
		m.Text = fmt.Sprintf("File %s not found in the network", name)
	}
	return m
}

func NewBatchTransfer(from int, files []string) *Message {
	return &Message{Kind: KindBatchTransfer, NodeID: from, Files: files}
}

func NewPullRequest(requester int) *Message {
	return &Message{Kind: KindPullRequest, NodeID: requester}
}

func NewPullResponse(from int, files []string) *Message {
	return &Message{Kind: KindPullResponse, NodeID: from, Files: files}
}
