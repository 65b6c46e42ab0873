package models

import (
	"encoding/json"
	"testing"

	"github.com/homeboy445/fileSharerApp/internal/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendFileIsFlat(t *testing.T) {
	msg, err := NewMessage(MsgSendFile, SendFile{
		Chunk:  transfer.Chunk{FileID: "f1", SequenceNumber: 2, IsFinal: true, TotalChunks: 2, PercentComplete: 100},
		RoomID: "r1",
	})
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(msg.Payload, &fields))
	assert.Equal(t, "r1", fields["roomId"])
	assert.Equal(t, "f1", fields["fileId"])
	assert.EqualValues(t, 2, fields["sequenceNumber"])
	assert.NotContains(t, fields, "name")
}

func TestDecodePayload(t *testing.T) {
	raw := []byte(`{"type":"roomFull:u1"}`)
	var msg Message
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, RoomFullEvent("u1"), msg.Type)

	var m Membership
	assert.Error(t, msg.DecodePayload(&m))

	msg.Payload = json.RawMessage(`{"userCount":1,"userId":"u2","userLeft":true}`)
	require.NoError(t, msg.DecodePayload(&m))
	assert.Equal(t, Membership{UserCount: 1, UserID: "u2", UserLeft: true}, m)
}

func TestEventNames(t *testing.T) {
	assert.Equal(t, "abc:users", UsersEvent("abc"))
	assert.Equal(t, "roomFull:u", RoomFullEvent("u"))
}
