package p2p

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/homeboy445/fileSharerApp/internal/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flushRecorder struct {
	mu      sync.Mutex
	batches [][]string
}

func (f *flushRecorder) flush(signals []Signal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	batch := make([]string, 0, len(signals))
	for _, s := range signals {
		batch = append(batch, string(s))
	}
	f.batches = append(f.batches, batch)
	return nil
}

func (f *flushRecorder) all() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.batches...)
}

func TestInitiatorBatchesSignalsUntilPeerJoins(t *testing.T) {
	rec := &flushRecorder{}
	neg := &fakeNegotiator{}
	m := NewManager(neg, Options{Flush: rec.flush})
	require.NoError(t, m.Start(true))
	assert.Equal(t, StateSignaling, m.State())

	neg.produce(`"offer"`)
	neg.produce(`"cand-1"`)
	assert.Empty(t, rec.all())

	m.PeerJoined()
	neg.produce(`"cand-2"`)
	assert.Equal(t, [][]string{{`"offer"`, `"cand-1"`}, {`"cand-2"`}}, rec.all())
}

func TestJoinerFlushesImmediately(t *testing.T) {
	rec := &flushRecorder{}
	neg := &fakeNegotiator{}
	m := NewManager(neg, Options{Flush: rec.flush})
	require.NoError(t, m.Start(false))
	neg.produce(`"answer"`)
	assert.Equal(t, [][]string{{`"answer"`}}, rec.all())
	assert.False(t, neg.initiator)
}

func TestApplySignalsInArrivalOrder(t *testing.T) {
	neg := &fakeNegotiator{}
	m := NewManager(neg, Options{})
	require.NoError(t, m.Start(false))
	require.NoError(t, m.ApplySignals([]Signal{Signal(`1`), Signal(`2`), Signal(`3`)}))
	assert.Equal(t, []string{"1", "2", "3"}, neg.applied)
}

func TestStartTwiceFails(t *testing.T) {
	m := NewManager(&fakeNegotiator{}, Options{})
	require.NoError(t, m.Start(true))
	assert.Error(t, m.Start(true))
}

func TestWaitConnectedTimeout(t *testing.T) {
	m := NewManager(&fakeNegotiator{}, Options{ConnectTimeout: 50 * time.Millisecond})
	require.NoError(t, m.Start(true))
	err := m.WaitConnected(context.Background())
	require.ErrorIs(t, err, transfer.ErrChannelUnavailable)
}

func TestWaitConnectedNegotiationFailure(t *testing.T) {
	neg := &fakeNegotiator{}
	m := NewManager(neg, Options{ConnectTimeout: time.Minute})
	require.NoError(t, m.Start(true))
	go neg.onFailure(errors.New("ice failed"))
	err := m.WaitConnected(context.Background())
	require.ErrorIs(t, err, transfer.ErrChannelUnavailable)
}

func TestWaitConnectedOpens(t *testing.T) {
	neg := &fakeNegotiator{ch: &fakeChannel{}}
	m := NewManager(neg, Options{ConnectTimeout: time.Second})
	require.NoError(t, m.Start(true))
	go neg.open()
	require.NoError(t, m.WaitConnected(context.Background()))
	assert.Equal(t, StateConnected, m.State())
	select {
	case <-m.Connected():
	default:
		t.Fatal("connected event not fired")
	}
}

func TestThresholdRefinedFromChannel(t *testing.T) {
	ch := &fakeChannel{advertised: 8}
	neg := &fakeNegotiator{ch: ch}
	m := NewManager(neg, Options{Threshold: 64})
	require.NoError(t, m.Start(true))
	neg.open()

	desc := transfer.FileDescriptor{FileID: "f", Name: "f", ByteSize: 20}
	go func() {
		assert.Eventually(t, func() bool { return ch.sends() == 3 }, time.Second, 5*time.Millisecond)
		m.ConfirmReceived("f")
	}()
	require.NoError(t, m.StreamFile(context.Background(), desc, bytes.NewReader(make([]byte, 20))))
	assert.Len(t, ch.sent[0], 8)
	assert.Len(t, ch.sent[2], 4)
}

func TestStreamFileBackpressure(t *testing.T) {
	ch := &fakeChannel{grow: true}
	neg := &fakeNegotiator{ch: ch}
	var announced []transfer.FileDescriptor
	m := NewManager(neg, Options{
		Threshold: 16,
		Announce: func(d transfer.FileDescriptor) error {
			announced = append(announced, d)
			return nil
		},
	})
	require.NoError(t, m.Start(true))
	neg.open()

	data := bytes.Repeat([]byte("x"), 100)
	desc := transfer.FileDescriptor{FileID: "f1", Name: "f1", ByteSize: 100}
	done := make(chan error, 1)
	go func() {
		done <- m.StreamFile(context.Background(), desc, bytes.NewReader(data))
	}()

	require.Eventually(t, func() bool { return ch.sends() == 2 }, time.Second, 5*time.Millisecond)
	require.Never(t, func() bool { return ch.sends() > 2 }, 100*time.Millisecond, 10*time.Millisecond,
		"writer must stay suspended while over threshold")
	assert.Equal(t, StateStreaming, m.State())

	require.Eventually(t, func() bool {
		ch.drain()
		return ch.sends() == 7
	}, 2*time.Second, 5*time.Millisecond)
	assert.Zero(t, ch.violations)
	require.Len(t, announced, 1)

	select {
	case <-done:
		t.Fatal("stream must wait for the receiver's confirmation")
	case <-time.After(50 * time.Millisecond):
	}
	m.ConfirmReceived("f1")
	require.NoError(t, <-done)
	assert.Equal(t, StateConnected, m.State())

	var got []byte
	for _, s := range ch.sent {
		got = append(got, s...)
	}
	assert.Equal(t, data, got)
}

func TestStreamFileReleasedOnClose(t *testing.T) {
	ch := &fakeChannel{}
	neg := &fakeNegotiator{ch: ch}
	m := NewManager(neg, Options{Threshold: 16})
	require.NoError(t, m.Start(true))
	neg.open()
	ch.setBuffered(1024)

	done := make(chan error, 1)
	go func() {
		done <- m.StreamFile(context.Background(), transfer.FileDescriptor{FileID: "f", ByteSize: 64}, bytes.NewReader(make([]byte, 64)))
	}()
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, m.Close())

	select {
	case err := <-done:
		require.ErrorIs(t, err, transfer.ErrChannelClosedPrematurely)
	case <-time.After(time.Second):
		t.Fatal("backpressure wait was not released")
	}
}

func TestStreamFileWithoutChannel(t *testing.T) {
	m := NewManager(&fakeNegotiator{}, Options{})
	err := m.StreamFile(context.Background(), transfer.FileDescriptor{FileID: "f"}, bytes.NewReader(nil))
	require.ErrorIs(t, err, transfer.ErrChannelUnavailable)
}

func receiverManager(t *testing.T, ch *fakeChannel, files chan<- *transfer.Object, errs chan<- error) *Manager {
	t.Helper()
	neg := &fakeNegotiator{ch: ch}
	m := NewManager(neg, Options{
		OnFile:  func(obj *transfer.Object) { files <- obj },
		OnError: func(err error) { errs <- err },
	})
	require.NoError(t, m.Start(false))
	neg.open()
	return m
}

func TestReceiveFile(t *testing.T) {
	local, remote := channelPair()
	files := make(chan *transfer.Object, 1)
	var percents []int
	neg := &fakeNegotiator{ch: local}
	m := NewManager(neg, Options{
		OnFile:     func(obj *transfer.Object) { files <- obj },
		OnProgress: func(p transfer.Progress) { percents = append(percents, p.Percent) },
	})
	require.NoError(t, m.Start(false))
	neg.open()

	data := bytes.Repeat([]byte("abcd"), 25)
	require.NoError(t, m.HandleMetadata(transfer.FileDescriptor{FileID: "f", Name: "f.txt", ByteSize: 100}))
	assert.Equal(t, StateStreaming, m.State())
	for i := 0; i < 100; i += 30 {
		end := min(i+30, 100)
		require.NoError(t, remote.Send(data[i:end]))
	}

	obj := <-files
	assert.Equal(t, data, obj.Data)
	assert.Equal(t, "f.txt", obj.Descriptor.Name)
	assert.Equal(t, []int{30, 60, 90, 100}, percents)
	assert.Equal(t, StateConnected, m.State())
}

func TestReceiveBytesBeforeMetadata(t *testing.T) {
	local, remote := channelPair()
	files := make(chan *transfer.Object, 2)
	m := receiverManager(t, local, files, make(chan error, 1))

	require.NoError(t, remote.Send([]byte("hello")))
	require.NoError(t, m.HandleMetadata(transfer.FileDescriptor{FileID: "a", ByteSize: 8}))
	require.NoError(t, remote.Send([]byte("abc")))
	assert.Equal(t, []byte("helloabc"), (<-files).Data)

	require.NoError(t, m.HandleMetadata(transfer.FileDescriptor{FileID: "empty", ByteSize: 0}))
	obj := <-files
	assert.Equal(t, "empty", obj.Descriptor.FileID)
	assert.Empty(t, obj.Data)
}

func TestPrematureCloseAtFortyPercent(t *testing.T) {
	local, remote := channelPair()
	files := make(chan *transfer.Object, 1)
	errs := make(chan error, 1)
	m := receiverManager(t, local, files, errs)

	require.NoError(t, m.HandleMetadata(transfer.FileDescriptor{FileID: "f", Name: "f", ByteSize: 100}))
	require.NoError(t, remote.Send(make([]byte, 40)))
	require.NoError(t, remote.Close())

	err := <-errs
	require.ErrorIs(t, err, transfer.ErrChannelClosedPrematurely)
	assert.ErrorIs(t, m.Err(), transfer.ErrChannelClosedPrematurely)
	assert.Equal(t, StateErrored, m.State())
	assert.Empty(t, files)
}

func TestCloseAfterCompletionIsClean(t *testing.T) {
	local, remote := channelPair()
	files := make(chan *transfer.Object, 1)
	errs := make(chan error, 1)
	m := receiverManager(t, local, files, errs)

	require.NoError(t, m.HandleMetadata(transfer.FileDescriptor{FileID: "f", ByteSize: 3}))
	require.NoError(t, remote.Send([]byte("abc")))
	<-files
	require.NoError(t, remote.Close())

	<-m.Closed()
	assert.NoError(t, m.Err())
	assert.Equal(t, StateClosed, m.State())
	assert.Empty(t, errs)
}

func TestEndToEndTwoFiles(t *testing.T) {
	sendCh, recvCh := channelPair()
	var sender *Manager
	received := make(chan *transfer.Object, 2)

	recvNeg := &fakeNegotiator{ch: recvCh}
	receiver := NewManager(recvNeg, Options{
		OnFile: func(obj *transfer.Object) {
			received <- obj
			sender.ConfirmReceived(obj.Descriptor.FileID)
		},
	})
	sendNeg := &fakeNegotiator{ch: sendCh}
	sender = NewManager(sendNeg, Options{
		Threshold: 32,
		Announce: func(d transfer.FileDescriptor) error {
			return receiver.HandleMetadata(d)
		},
	})
	require.NoError(t, receiver.Start(false))
	require.NoError(t, sender.Start(true))
	recvNeg.open()
	sendNeg.open()

	small := bytes.Repeat([]byte("s"), 10)
	large := bytes.Repeat([]byte("L"), 1000)
	ctx := context.Background()
	require.NoError(t, sender.StreamFile(ctx, transfer.FileDescriptor{FileID: "1", ByteSize: 10}, bytes.NewReader(small)))
	require.NoError(t, sender.StreamFile(ctx, transfer.FileDescriptor{FileID: "2", ByteSize: 1000}, bytes.NewReader(large)))

	first, second := <-received, <-received
	assert.Equal(t, small, first.Data)
	assert.Equal(t, large, second.Data)
}

func TestRejectsNegativeAnnouncedSize(t *testing.T) {
	local, remote := channelPair()
	files := make(chan *transfer.Object, 1)
	m := receiverManager(t, local, files, make(chan error, 1))

	err := m.HandleMetadata(transfer.FileDescriptor{FileID: "bad", ByteSize: -1})
	require.ErrorIs(t, err, ErrInvalidMetadata)

	// the channel keeps working for a valid announcement
	require.NoError(t, m.HandleMetadata(transfer.FileDescriptor{FileID: "ok", ByteSize: 2}))
	require.NoError(t, remote.Send([]byte("hi")))
	assert.Equal(t, "ok", (<-files).Descriptor.FileID)
}
