package core

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Callbox/internal/domain"
)

func TestEncodeInlinesType(t *testing.T) {
	frame, err := Encode(IncomingCall{
		Caller:    Caller{UserID: "u1", DisplayName: "Alice"},
		SessionID: "s-1",
		Signal:    json.RawMessage(`{"sdp":"P1"}`),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"incoming-call","from":"u1","name":"Alice","sessionId":"s-1","signal":{"sdp":"P1"}}`, string(frame))
}

func TestEncodeEmptyEvent(t *testing.T) {
	frame, err := Encode(Pong{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"pong"}`, string(frame))
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{domain.MismatchedIdentity("a", "b"), CodeIdentityMismatch},
		{domain.AlreadyJoined("a"), CodeInvalidJoin},
		{fmt.Errorf("wrap: %w", domain.ErrTargetBusy), CodeTargetBusy},
		{domain.ErrTargetUnreachable, CodeTargetUnreachable},
		{domain.ErrCallerBusy, CodeCallerBusy},
		{domain.ErrSelfCall, CodeSelfCall},
		{domain.ErrNotJoined, CodeNotJoined},
		{ErrBackpressure, CodeInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorCode(tt.err), tt.err.Error())
	}
}
