package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestKind(t *testing.T) {
	as := require.New(t)

	as.Equal("membership-update", KindMembershipUpdate.String())
	as.True(KindPullResponse.Valid())
	as.False(KindUnknown.Valid())
	as.False(kindSentinel.Valid())
	as.Equal("kind(200)", Kind(200).String())
}

func TestJoinReplyText(t *testing.T) {
	as := require.New(t)

	as.Equal("Welcome 3", NewJoinReply(3, true).Text)
	as.Equal("3 is already in use!", NewJoinReply(3, false).Text)
}

func TestMessageLogObject(t *testing.T) {
	as := require.New(t)

	enc := zapcore.NewMapObjectEncoder()
	as.NoError(NewSearch("rid", "127.0.0.1:1", "a", 4).MarshalLogObject(enc))
	as.Equal("search", enc.Fields["kind"])
	as.Equal("rid", enc.Fields["request"])
	as.Equal(4, enc.Fields["target"])

	enc = zapcore.NewMapObjectEncoder()
	as.NoError(NewMembershipUpdate([]Member{{ID: 1}, {ID: 2}}).MarshalLogObject(enc))
	as.Len(enc.Fields["members"], 2)
}
