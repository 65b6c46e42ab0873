package routers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/homeboy445/fileSharerApp/internal/coordinator"
	"github.com/homeboy445/fileSharerApp/internal/models"
	"github.com/homeboy445/fileSharerApp/internal/transfer"
	"github.com/homeboy445/fileSharerApp/pkg/system"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	system.InitStartTime()
}

func TestHealth(t *testing.T) {
	router := New(coordinator.NewHub())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	var msg models.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msg))
	var health models.HealthCheck
	require.NoError(t, msg.DecodePayload(&health))
	assert.Equal(t, "Healthy", health.Status)
}

func TestPreflight(t *testing.T) {
	router := New(coordinator.NewHub())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/isValidRoom", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestIsValidRoom(t *testing.T) {
	hub := coordinator.NewHub()
	owner := coordinator.NewConnection("owner", nil)
	hub.Register(owner)
	msg, err := models.NewMessage(models.MsgCreateRoom, models.CreateRoom{
		RoomID:    "room-1",
		FilesInfo: []transfer.FileDescriptor{{Name: "a", ByteSize: 1, FileID: "f"}},
	})
	require.NoError(t, err)
	hub.Dispatch(owner, msg)
	router := New(hub)

	cases := []struct {
		body   string
		code   int
		status bool
	}{
		{`{"roomId":"room-1"}`, http.StatusOK, true},
		{`{"roomId":"nope"}`, http.StatusOK, false},
		{`not json`, http.StatusBadRequest, false},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/isValidRoom", strings.NewReader(tc.body))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)
		require.Equal(t, tc.code, w.Code, tc.body)
		if tc.code != http.StatusOK {
			continue
		}
		var status models.RoomStatus
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
		assert.Equal(t, tc.status, status.Status, tc.body)
		if tc.status {
			assert.Len(t, status.FilesInfo, 1)
		} else {
			assert.NotNil(t, status.FilesInfo)
			assert.Empty(t, status.FilesInfo)
		}
	}
}

func TestWebSocketRequiresUUID(t *testing.T) {
	srv := httptest.NewServer(New(coordinator.NewHub()))
	defer srv.Close()
	resp, err := http.Get(srv.URL + "/ws")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWebSocketRoomFlow(t *testing.T) {
	srv := httptest.NewServer(New(coordinator.NewHub()))
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?uuid="

	owner, _, err := websocket.DefaultDialer.Dial(wsURL+"owner", nil)
	require.NoError(t, err)
	defer owner.Close()
	joiner, _, err := websocket.DefaultDialer.Dial(wsURL+"joiner", nil)
	require.NoError(t, err)
	defer joiner.Close()

	send := func(conn *websocket.Conn, msgType string, payload any) {
		msg, err := models.NewMessage(msgType, payload)
		require.NoError(t, err)
		require.NoError(t, conn.WriteJSON(msg))
	}
	read := func(conn *websocket.Conn) models.Message {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg models.Message
		require.NoError(t, conn.ReadJSON(&msg))
		return msg
	}

	send(owner, models.MsgCreateRoom, models.CreateRoom{RoomID: "r", FilesInfo: []transfer.FileDescriptor{{FileID: "f", ByteSize: 1}}})
	require.Eventually(t, func() bool {
		body := bytes.NewBufferString(`{"roomId":"r"}`)
		resp, err := http.Post(srv.URL+"/isValidRoom", "application/json", body)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var status models.RoomStatus
		return json.NewDecoder(resp.Body).Decode(&status) == nil && status.Status
	}, 2*time.Second, 20*time.Millisecond)

	send(joiner, models.MsgJoinRoom, models.JoinRoom{RoomID: "r", UserID: "joiner"})
	assert.Equal(t, models.UsersEvent("r"), read(owner).Type)

	send(owner, models.MsgSendFile, models.SendFile{Chunk: transfer.Chunk{FileID: "f", SequenceNumber: 1, Payload: bytes.Repeat([]byte{7}, 200*1024)}, RoomID: "r"})
	msg := read(joiner)
	require.Equal(t, models.MsgReceiveFile, msg.Type)
	var sf models.SendFile
	require.NoError(t, msg.DecodePayload(&sf))
	assert.Len(t, sf.Payload, 200*1024)
}
