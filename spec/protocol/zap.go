package protocol

import "go.uber.org/zap/zapcore"

var (
	_ zapcore.ObjectMarshaler = (*Message)(nil)
	_ zapcore.ObjectMarshaler = Member{}
	_ zapcore.ArrayMarshaler  = Members(nil)
)

func (m *Message) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("kind", m.Kind.String())
	if m.RequestID != "" {
		enc.AddString("request", m.RequestID)
	}
	switch m.Kind {
	case KindJoin, KindJoinReply, KindLeave, KindPullRequest:
		enc.AddInt("node", m.NodeID)
	case KindInsert, KindSearch:
		enc.AddInt("target", m.Target)
		enc.AddString("file", m.FileName)
	case KindBatchTransfer, KindPullResponse:
		enc.AddInt("node", m.NodeID)
		enc.AddInt("files", len(m.Files))
	case KindMembershipUpdate:
		return enc.AddArray("members", Members(m.Members))
	}
	if m.Address != "" {
		enc.AddString("address", m.Address)
	}
	return nil
}

func (m Member) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddInt("id", m.ID)
	if m.Address != "" {
		enc.AddString("address", m.Address)
	}
	return nil
}

type Members []Member

func (ms Members) MarshalLogArray(enc zapcore.ArrayEncoder) error {
	for _, m := range ms {
		if err := enc.AppendObject(m); err != nil {
			return err
		}
	}
	return nil
}
