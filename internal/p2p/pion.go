package p2p

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/homeboy445/fileSharerApp/pkg/logger"
	"github.com/pion/webrtc/v4"
)

const channelLabel = "file-transfer"

type signal struct {
	Type      string                   `json:"type"`
	SDP       string                   `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit `json:"candidate,omitempty"`
}

// PionNegotiator negotiates a WebRTC data channel.
type PionNegotiator struct {
	pc *webrtc.PeerConnection

	mu        sync.Mutex
	remoteSet bool
	pending   []webrtc.ICECandidateInit
	onSignal  func(Signal)
	onOpen    func(DataChannel)
	onFailure func(error)
}

// NewPionNegotiator creates a peer connection using the given ICE server
// urls. api may be nil to use the default pion API.
func NewPionNegotiator(iceServers []string, api *webrtc.API) (*PionNegotiator, error) {
	cfg := webrtc.Configuration{}
	if len(iceServers) > 0 {
		cfg.ICEServers = []webrtc.ICEServer{{URLs: iceServers}}
	}
	var (
		pc  *webrtc.PeerConnection
		err error
	)
	if api != nil {
		pc, err = api.NewPeerConnection(cfg)
	} else {
		pc, err = webrtc.NewPeerConnection(cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}
	n := &PionNegotiator{pc: pc}
	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		init := c.ToJSON()
		n.emit(signal{Type: "candidate", Candidate: &init})
	})
	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		logger.Log.Debug("Peer connection state changed", "state", s.String())
		if s == webrtc.PeerConnectionStateFailed {
			n.fail(fmt.Errorf("peer connection %s", s))
		}
	})
	return n, nil
}

func (n *PionNegotiator) OnSignal(f func(Signal)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onSignal = f
}

func (n *PionNegotiator) OnOpen(f func(DataChannel)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onOpen = f
}

func (n *PionNegotiator) OnFailure(f func(error)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onFailure = f
}

// Start creates the data channel and offer on the initiator; the other
// side waits for the channel announced by the offer.
func (n *PionNegotiator) Start(initiator bool) error {
	if !initiator {
		n.pc.OnDataChannel(n.wire)
		return nil
	}
	dc, err := n.pc.CreateDataChannel(channelLabel, nil)
	if err != nil {
		return fmt.Errorf("failed to create data channel: %w", err)
	}
	n.wire(dc)
	offer, err := n.pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("failed to create offer: %w", err)
	}
	if err := n.pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("failed to set local description: %w", err)
	}
	n.emit(signal{Type: offer.Type.String(), SDP: offer.SDP})
	return nil
}

func (n *PionNegotiator) Apply(raw Signal) error {
	var sig signal
	if err := json.Unmarshal(raw, &sig); err != nil {
		return fmt.Errorf("invalid signal: %w", err)
	}
	switch sig.Type {
	case "offer":
		if err := n.setRemote(webrtc.SDPTypeOffer, sig.SDP); err != nil {
			return err
		}
		answer, err := n.pc.CreateAnswer(nil)
		if err != nil {
			return fmt.Errorf("failed to create answer: %w", err)
		}
		if err := n.pc.SetLocalDescription(answer); err != nil {
			return fmt.Errorf("failed to set local description: %w", err)
		}
		n.emit(signal{Type: answer.Type.String(), SDP: answer.SDP})
		return nil
	case "answer":
		return n.setRemote(webrtc.SDPTypeAnswer, sig.SDP)
	case "candidate":
		if sig.Candidate == nil {
			return nil
		}
		n.mu.Lock()
		if !n.remoteSet {
			n.pending = append(n.pending, *sig.Candidate)
			n.mu.Unlock()
			return nil
		}
		n.mu.Unlock()
		if err := n.pc.AddICECandidate(*sig.Candidate); err != nil {
			return fmt.Errorf("failed to add ICE candidate: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown signal type %q", sig.Type)
	}
}

// setRemote applies the remote description and any candidates that arrived
// before it.
func (n *PionNegotiator) setRemote(t webrtc.SDPType, sdp string) error {
	if err := n.pc.SetRemoteDescription(webrtc.SessionDescription{Type: t, SDP: sdp}); err != nil {
		return fmt.Errorf("failed to set remote description: %w", err)
	}
	n.mu.Lock()
	n.remoteSet = true
	pending := n.pending
	n.pending = nil
	n.mu.Unlock()
	for _, c := range pending {
		if err := n.pc.AddICECandidate(c); err != nil {
			return fmt.Errorf("failed to add ICE candidate: %w", err)
		}
	}
	return nil
}

func (n *PionNegotiator) Close() error {
	return n.pc.Close()
}

func (n *PionNegotiator) wire(dc *webrtc.DataChannel) {
	dc.OnOpen(func() {
		n.mu.Lock()
		f := n.onOpen
		n.mu.Unlock()
		if f != nil {
			f(&pionChannel{dc: dc})
		}
	})
}

func (n *PionNegotiator) emit(sig signal) {
	raw, err := json.Marshal(sig)
	if err != nil {
		logger.Log.Error("Failed to encode signal", "err", err)
		return
	}
	n.mu.Lock()
	f := n.onSignal
	n.mu.Unlock()
	if f != nil {
		f(raw)
	}
}

func (n *PionNegotiator) fail(err error) {
	n.mu.Lock()
	f := n.onFailure
	n.mu.Unlock()
	if f != nil {
		f(err)
	}
}

type pionChannel struct {
	dc *webrtc.DataChannel
}

func (c *pionChannel) Send(data []byte) error {
	return c.dc.Send(data)
}

func (c *pionChannel) BufferedAmount() uint64 {
	return c.dc.BufferedAmount()
}

func (c *pionChannel) BufferedAmountLowThreshold() uint64 {
	return c.dc.BufferedAmountLowThreshold()
}

func (c *pionChannel) SetBufferedAmountLowThreshold(th uint64) {
	c.dc.SetBufferedAmountLowThreshold(th)
}

func (c *pionChannel) OnBufferedAmountLow(f func()) {
	c.dc.OnBufferedAmountLow(f)
}

func (c *pionChannel) OnMessage(f func(data []byte)) {
	c.dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		f(msg.Data)
	})
}

func (c *pionChannel) OnClose(f func()) {
	c.dc.OnClose(f)
}

func (c *pionChannel) Close() error {
	return c.dc.Close()
}
