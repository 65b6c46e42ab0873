package coordinator

import (
	"errors"
	"fmt"

	"github.com/homeboy445/fileSharerApp/internal/models"
	"github.com/homeboy445/fileSharerApp/pkg/logger"
)

// RegisterDefaultHandlers wires room lifecycle and relaying.
func (h *Hub) RegisterDefaultHandlers() {
	h.RegisterHandler(models.MsgCreateRoom, h.handleCreateRoom)
	h.RegisterHandler(models.MsgJoinRoom, h.handleJoinRoom)
	h.RegisterHandler(models.MsgDeleteRoom, h.handleDeleteRoom)
	h.RegisterHandler(models.MsgSendSignal, h.handleSendSignal)
	h.RegisterHandler(models.MsgSendFile, h.forwardAs(models.MsgReceiveFile))
	h.RegisterHandler(models.MsgAcknowledge, h.forwardAs(models.MsgAcknowledged))
	h.RegisterHandler(models.MsgFileInfoChannel, h.forwardAs(models.MsgFileInfoChannel))
	h.RegisterHandler(models.MsgFileReceived, h.forwardAs(models.MsgFileReceived))
}

func (h *Hub) handleCreateRoom(msg *models.Message, c *Connection) error {
	var req models.CreateRoom
	if err := msg.DecodePayload(&req); err != nil {
		return err
	}
	if req.RoomID == "" {
		return errors.New("room id required")
	}
	h.leaveRoom(c)

	h.Mutex.Lock()
	defer h.Mutex.Unlock()
	if _, exists := h.Rooms[req.RoomID]; exists {
		return fmt.Errorf("room %s already exists", req.RoomID)
	}
	h.Rooms[req.RoomID] = &Room{
		ID:           req.RoomID,
		Owner:        c.ID,
		Participants: map[string]struct{}{c.ID: {}},
		FilesInfo:    req.FilesInfo,
	}
	c.RoomID = req.RoomID
	logger.Log.Info("Room created", "room_id", req.RoomID, "owner", c.ID, "files", len(req.FilesInfo))
	return nil
}

func (h *Hub) handleJoinRoom(msg *models.Message, c *Connection) error {
	var req models.JoinRoom
	if err := msg.DecodePayload(&req); err != nil {
		return err
	}

	h.Mutex.Lock()
	room, ok := h.Rooms[req.RoomID]
	if !ok {
		h.Mutex.Unlock()
		h.sendPayload(c.ID, models.MsgRoomInvalidated, models.RoomInvalidated{RoomID: req.RoomID})
		return nil
	}
	if _, member := room.Participants[c.ID]; !member && len(room.Participants) >= maxParticipants {
		h.Mutex.Unlock()
		logger.Log.Warn("Room full", "room_id", req.RoomID, "user_id", c.ID)
		h.sendPayload(c.ID, models.RoomFullEvent(c.ID), models.JoinRoom{RoomID: req.RoomID, UserID: c.ID})
		return nil
	}
	room.Participants[c.ID] = struct{}{}
	c.RoomID = req.RoomID
	owner := room.Owner
	count := len(room.Participants) - 1
	h.Mutex.Unlock()

	logger.Log.Info("Peer joined room", "room_id", req.RoomID, "user_id", c.ID)
	h.sendPayload(owner, models.UsersEvent(req.RoomID), models.Membership{UserCount: count, UserID: c.ID})
	return nil
}

func (h *Hub) handleDeleteRoom(msg *models.Message, c *Connection) error {
	var req models.DeleteRoom
	if err := msg.DecodePayload(&req); err != nil {
		return err
	}
	h.Mutex.Lock()
	room, ok := h.Rooms[req.RoomID]
	if !ok {
		h.Mutex.Unlock()
		return nil
	}
	if room.Owner != c.ID {
		h.Mutex.Unlock()
		return fmt.Errorf("peer %s does not own room %s", c.ID, req.RoomID)
	}
	others := h.closeRoomLocked(room)
	h.Mutex.Unlock()

	logger.Log.Info("Room deleted", "room_id", req.RoomID, "complete", req.Info != nil && req.Info.FileTransferComplete)
	for _, id := range others {
		h.sendPayload(id, models.MsgRoomInvalidated, models.RoomInvalidated{RoomID: req.RoomID, Info: req.Info})
	}
	return nil
}

func (h *Hub) handleSendSignal(msg *models.Message, c *Connection) error {
	var req models.SendSignal
	if err := msg.DecodePayload(&req); err != nil {
		return err
	}
	for _, id := range h.peersOf(c) {
		h.sendPayload(id, models.MsgReceiveSignal, models.ReceiveSignal{SignalData: req.Signal})
	}
	return nil
}

// forwardAs relays the payload unchanged to the other room participant.
func (h *Hub) forwardAs(msgType string) HandlerFunc {
	return func(msg *models.Message, c *Connection) error {
		peers := h.peersOf(c)
		if len(peers) == 0 {
			return fmt.Errorf("%s from %s: no peer in room", msg.Type, c.ID)
		}
		for _, id := range peers {
			if err := h.Send(id, &models.Message{Type: msgType, Payload: msg.Payload}); err != nil {
				return err
			}
		}
		return nil
	}
}

func (h *Hub) peersOf(c *Connection) []string {
	h.Mutex.RLock()
	defer h.Mutex.RUnlock()
	room, ok := h.Rooms[c.RoomID]
	if !ok {
		return nil
	}
	peers := make([]string, 0, 1)
	for id := range room.Participants {
		if id != c.ID {
			peers = append(peers, id)
		}
	}
	return peers
}

// leaveRoom drops c from its room. An owner leaving closes the room; a
// participant leaving is reported to the owner.
func (h *Hub) leaveRoom(c *Connection) {
	h.Mutex.Lock()
	room, ok := h.Rooms[c.RoomID]
	c.RoomID = ""
	if !ok {
		h.Mutex.Unlock()
		return
	}
	if room.Owner == c.ID {
		others := h.closeRoomLocked(room)
		h.Mutex.Unlock()
		logger.Log.Info("Room owner left, room closed", "room_id", room.ID)
		for _, id := range others {
			h.sendPayload(id, models.MsgRoomInvalidated, models.RoomInvalidated{RoomID: room.ID})
		}
		return
	}
	delete(room.Participants, c.ID)
	count := len(room.Participants) - 1
	owner := room.Owner
	h.Mutex.Unlock()
	h.sendPayload(owner, models.UsersEvent(room.ID), models.Membership{UserCount: count, UserID: c.ID, UserLeft: true})
}

// closeRoomLocked removes room and returns the participants other than the
// owner. Mutex must be held.
func (h *Hub) closeRoomLocked(room *Room) []string {
	delete(h.Rooms, room.ID)
	var others []string
	for id := range room.Participants {
		if conn, ok := h.Connections[id]; ok && conn.RoomID == room.ID {
			conn.RoomID = ""
		}
		if id != room.Owner {
			others = append(others, id)
		}
	}
	return others
}
