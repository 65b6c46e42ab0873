package models

import (
	"encoding/json"

	"github.com/homeboy445/fileSharerApp/internal/transfer"
)

const (
	MsgCreateRoom       = "create-room"
	MsgJoinRoom         = "join-room"
	MsgSendSignal       = "send-signal"
	MsgReceiveSignal    = "receive-signal"
	MsgSendFile         = "sendFile"
	MsgReceiveFile      = "receiveFile"
	MsgAcknowledge      = "acknowledge"
	MsgAcknowledged     = "packet-acknowledged"
	MsgFileInfoChannel  = "file-transfer-info-channel"
	MsgFileReceived     = "file-received"
	MsgDeleteRoom       = "deleteRoom"
	MsgRoomInvalidated  = "roomInvalidated"
	membershipSuffix    = ":users"
	roomFullEventPrefix = "roomFull:"
)

// UsersEvent is the membership event name of a room.
func UsersEvent(roomID string) string {
	return roomID + membershipSuffix
}

// RoomFullEvent is sent to a user that tried to join a full room.
func RoomFullEvent(userID string) string {
	return roomFullEventPrefix + userID
}

type CreateRoom struct {
	RoomID    string                    `json:"roomId"`
	FilesInfo []transfer.FileDescriptor `json:"filesInfo"`
}

type JoinRoom struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

// Membership is pushed to the room owner whenever a participant joins or leaves.
type Membership struct {
	UserCount int    `json:"userCount"`
	UserID    string `json:"userId"`
	UserLeft  bool   `json:"userLeft,omitempty"`
}

type SendSignal struct {
	Signal []json.RawMessage `json:"signal"`
	RoomID string            `json:"roomId"`
}

type ReceiveSignal struct {
	SignalData []json.RawMessage `json:"signalData"`
}

// SendFile carries one relay chunk. The receiving side gets the same shape
// as receiveFile.
type SendFile struct {
	transfer.Chunk
	RoomID string `json:"roomId"`
}

type Acknowledge struct {
	RoomID          string `json:"roomId"`
	FileID          string `json:"fileId"`
	SequenceNumber  int    `json:"sequenceNumber"`
	PercentComplete int    `json:"percentComplete"`
	UserID          string `json:"userId"`
}

type FileTransferInfo struct {
	transfer.FileDescriptor
	RoomID string `json:"roomId"`
}

type FileReceived struct {
	FileID string `json:"fileId"`
	RoomID string `json:"roomId"`
}

type DeleteInfo struct {
	FileTransferComplete bool `json:"fileTransferComplete"`
}

type DeleteRoom struct {
	RoomID string      `json:"roomId"`
	Info   *DeleteInfo `json:"info,omitempty"`
}

type RoomInvalidated struct {
	RoomID string      `json:"roomId"`
	Info   *DeleteInfo `json:"info,omitempty"`
}

type ValidateRoomRequest struct {
	RoomID string `json:"roomId"`
}

type RoomStatus struct {
	Status    bool                      `json:"status"`
	FilesInfo []transfer.FileDescriptor `json:"filesInfo"`
}
