package transfer

import (
	"errors"

	"github.com/homeboy445/fileSharerApp/internal/codec"
)

var (
	ErrCorruptChunk             = codec.ErrCorruptChunk
	ErrSizeLimitExceeded        = errors.New("size limit exceeded")
	ErrChannelUnavailable       = errors.New("direct channel unavailable")
	ErrChannelClosedPrematurely = errors.New("direct channel closed prematurely")
	ErrAcknowledgementTimeout   = errors.New("acknowledgement timeout")
	ErrRoomInvalid              = errors.New("room invalid")
	ErrRoomFull                 = errors.New("room full")
	ErrNotReady                 = errors.New("file not ready")
	ErrPeerLeft                 = errors.New("all peers left")
	ErrSessionAborted           = errors.New("session aborted")
	ErrInsufficientSpace        = errors.New("insufficient disk space")
)

var reasonCodes = []struct {
	err  error
	code string
}{
	{ErrCorruptChunk, "corrupt_chunk"},
	{ErrSizeLimitExceeded, "size_limit_exceeded"},
	{ErrChannelUnavailable, "channel_unavailable"},
	{ErrChannelClosedPrematurely, "channel_closed_prematurely"},
	{ErrAcknowledgementTimeout, "acknowledgement_timeout"},
	{ErrRoomInvalid, "room_invalid"},
	{ErrRoomFull, "room_full"},
	{ErrNotReady, "not_ready"},
	{ErrPeerLeft, "peer_left"},
	{ErrSessionAborted, "session_aborted"},
	{ErrInsufficientSpace, "insufficient_space"},
}

// ReasonCode maps a terminal session error to a stable reason code.
func ReasonCode(err error) string {
	if err == nil {
		return "ok"
	}
	for _, rc := range reasonCodes {
		if errors.Is(err, rc.err) {
			return rc.code
		}
	}
	return "internal"
}
