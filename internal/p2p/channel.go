package p2p

import "encoding/json"

type State int

const (
	StateIdle State = iota
	StateSignaling
	StateConnected
	StateStreaming
	StateClosed
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSignaling:
		return "signaling"
	case StateConnected:
		return "connected"
	case StateStreaming:
		return "streaming"
	case StateClosed:
		return "closed"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Signal is an opaque negotiation envelope relayed by the coordinator.
type Signal = json.RawMessage

// DataChannel is the byte pipe between the two peers.
type DataChannel interface {
	Send(data []byte) error
	BufferedAmount() uint64
	BufferedAmountLowThreshold() uint64
	SetBufferedAmountLowThreshold(th uint64)
	OnBufferedAmountLow(f func())
	OnMessage(f func(data []byte))
	OnClose(f func())
	Close() error
}

// Negotiator establishes a DataChannel from exchanged signals.
type Negotiator interface {
	OnSignal(f func(Signal))
	OnOpen(f func(DataChannel))
	OnFailure(f func(error))
	Start(initiator bool) error
	Apply(sig Signal) error
	Close() error
}
