package transfer

// AckWindow tracks relay chunks sent but not yet acknowledged for the file
// currently being transmitted.
type AckWindow struct {
	size    int
	pending []int
}

func NewAckWindow(size int) *AckWindow {
	if size <= 0 {
		size = 1
	}
	return &AckWindow{size: size}
}

func (w *AckWindow) Size() int {
	return w.size
}

func (w *AckWindow) Full() bool {
	return len(w.pending) >= w.size
}

func (w *AckWindow) Len() int {
	return len(w.pending)
}

func (w *AckWindow) Add(seq int) {
	w.pending = append(w.pending, seq)
}

// Ack is cumulative: every pending sequence number up to seq is cleared.
// It returns how many entries were removed.
func (w *AckWindow) Ack(seq int) int {
	i := 0
	for i < len(w.pending) && w.pending[i] <= seq {
		i++
	}
	w.pending = w.pending[i:]
	return i
}

func (w *AckWindow) Reset() {
	w.pending = w.pending[:0]
}
