package p2p

import (
	"sync"
)

// fakeChannel is an in-memory DataChannel. With grow set, every Send adds
// to the buffered amount until drain is called.
type fakeChannel struct {
	mu         sync.Mutex
	buffered   uint64
	threshold  uint64
	advertised uint64
	grow       bool
	sent       [][]byte
	violations int
	closed     bool
	peer       *fakeChannel
	onLow      func()
	onMessage  func([]byte)
	onClose    func()
}

func (c *fakeChannel) Send(data []byte) error {
	c.mu.Lock()
	if c.buffered > c.threshold {
		c.violations++
	}
	b := append([]byte(nil), data...)
	c.sent = append(c.sent, b)
	if c.grow {
		c.buffered += uint64(len(b))
	}
	peer := c.peer
	c.mu.Unlock()
	if peer != nil {
		peer.deliver(b)
	}
	return nil
}

func (c *fakeChannel) deliver(b []byte) {
	c.mu.Lock()
	f := c.onMessage
	c.mu.Unlock()
	if f != nil {
		f(b)
	}
}

func (c *fakeChannel) BufferedAmount() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffered
}

func (c *fakeChannel) BufferedAmountLowThreshold() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.threshold == 0 {
		return c.advertised
	}
	return c.threshold
}

func (c *fakeChannel) SetBufferedAmountLowThreshold(th uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.threshold = th
}

func (c *fakeChannel) OnBufferedAmountLow(f func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onLow = f
}

func (c *fakeChannel) OnMessage(f func([]byte)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onMessage = f
}

func (c *fakeChannel) OnClose(f func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onClose = f
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	peer := c.peer
	c.mu.Unlock()
	if peer != nil {
		peer.remoteClosed()
	}
	return nil
}

func (c *fakeChannel) remoteClosed() {
	c.mu.Lock()
	c.closed = true
	f := c.onClose
	c.mu.Unlock()
	if f != nil {
		f()
	}
}

func (c *fakeChannel) setBuffered(n uint64) {
	c.mu.Lock()
	c.buffered = n
	c.mu.Unlock()
}

// drain empties the buffer and fires the low watermark event.
func (c *fakeChannel) drain() {
	c.mu.Lock()
	c.buffered = 0
	f := c.onLow
	c.mu.Unlock()
	if f != nil {
		f()
	}
}

func (c *fakeChannel) sends() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

// fakeNegotiator emits scripted signals and opens its channel on demand.
type fakeNegotiator struct {
	mu        sync.Mutex
	ch        *fakeChannel
	onSignal  func(Signal)
	onOpen    func(DataChannel)
	onFailure func(error)
	applied   []string
	started   bool
	initiator bool
}

func (n *fakeNegotiator) OnSignal(f func(Signal))    { n.onSignal = f }
func (n *fakeNegotiator) OnOpen(f func(DataChannel)) { n.onOpen = f }
func (n *fakeNegotiator) OnFailure(f func(error))    { n.onFailure = f }
func (n *fakeNegotiator) Close() error               { return nil }

func (n *fakeNegotiator) Start(initiator bool) error {
	n.mu.Lock()
	n.started = true
	n.initiator = initiator
	n.mu.Unlock()
	return nil
}

func (n *fakeNegotiator) Apply(sig Signal) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.applied = append(n.applied, string(sig))
	return nil
}

func (n *fakeNegotiator) produce(sig string) {
	n.onSignal(Signal(sig))
}

func (n *fakeNegotiator) open() {
	n.onOpen(n.ch)
}

// channelPair returns two channels wired to each other.
func channelPair() (*fakeChannel, *fakeChannel) {
	a, b := &fakeChannel{}, &fakeChannel{}
	a.peer, b.peer = b, a
	return a, b
}
