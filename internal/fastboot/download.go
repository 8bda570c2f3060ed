package fastboot

import "github.com/google/uuid"

// downloadBufferTarget is the nominal size of the streamer's rolling
// buffer before rounding up to a multiple of the OUT endpoint's max packet
// size (spec.md §4.6).
const downloadBufferTarget = 1 << 20 // 1 MiB

// maxInFlightTransfers bounds how many submitted buffers may be awaiting
// completion at once.
const maxInFlightTransfers = 3

// pendingTransfer is one buffer submitted to the OUT endpoint, with a
// channel that receives its completion error. id exists only to correlate
// submission and completion log lines; it has no wire role.
type pendingTransfer struct {
	id   uuid.UUID
	buf  []byte
	done chan error
}

// DownloadStreamer streams a fastboot download payload in buffer-sized
// transfers, each a multiple of the OUT endpoint's max packet size except
// the final short one, keeping at most maxInFlightTransfers submissions
// outstanding at a time.
//
// A DownloadStreamer borrows its Client exclusively; no other command may
// be issued on the Client until Finish returns.
type DownloadStreamer struct {
	client   *Client
	size     uint32
	left     uint32
	capacity int
	current  []byte
	pending  []*pendingTransfer
}

func newDownloadStreamer(c *Client, size uint32) *DownloadStreamer {
	capacity := alignUp(downloadBufferTarget, c.transport.MaxOutPacketSize())
	return &DownloadStreamer{
		client:   c,
		size:     size,
		left:     size,
		capacity: capacity,
		current:  make([]byte, 0, capacity),
	}
}

func alignUp(n, multiple int) int {
	if multiple <= 0 {
		return n
	}
	if rem := n % multiple; rem != 0 {
		n += multiple - rem
	}
	return n
}

// Size is the total declared download size.
func (d *DownloadStreamer) Size() uint32 { return d.size }

// Left is the number of bytes not yet accounted for by ExtendFromSlice or
// GetMutData.
func (d *DownloadStreamer) Left() uint32 { return d.left }

func (d *DownloadStreamer) updateSize(n uint32) error {
	if n > d.left {
		return &IncorrectDataLengthError{Expected: d.size, Actual: d.size - d.left + n}
	}
	d.left -= n
	return nil
}

// ExtendFromSlice copies data into the rolling buffer, submitting and
// rotating it whenever it fills, and may submit more than one buffer if
// data spans multiple capacities.
func (d *DownloadStreamer) ExtendFromSlice(data []byte) error {
	if err := d.updateSize(uint32(len(data))); err != nil {
		return err
	}
	for len(data) > 0 {
		room := d.capacity - len(d.current)
		if room >= len(data) {
			d.current = append(d.current, data...)
			return nil
		}
		d.current = append(d.current, data[:room]...)
		data = data[room:]
		if err := d.rotate(); err != nil {
			return err
		}
	}
	return nil
}

// GetMutData returns a slice of at most max bytes at the tail of the
// rolling buffer for the caller to fill in place; its length is already
// accounted against Left before it is returned.
func (d *DownloadStreamer) GetMutData(max int) ([]byte, error) {
	if len(d.current) == d.capacity {
		if err := d.rotate(); err != nil {
			return nil, err
		}
	}

	room := d.capacity - len(d.current)
	size := room
	if max < size {
		size = max
	}
	if err := d.updateSize(uint32(size)); err != nil {
		return nil, err
	}

	start := len(d.current)
	d.current = d.current[:start+size]
	return d.current[start : start+size], nil
}

// rotate submits the full current buffer and starts the next one, reusing
// the oldest in-flight buffer once maxInFlightTransfers are outstanding.
func (d *DownloadStreamer) rotate() error {
	d.submit(d.current)

	if len(d.pending) < maxInFlightTransfers {
		d.current = make([]byte, 0, d.capacity)
		return nil
	}

	oldest := d.pending[0]
	d.pending = d.pending[1:]
	if err := <-oldest.done; err != nil {
		return &TransferError{Err: err}
	}
	d.client.log.WithField("transfer_id", oldest.id).Trace("fastboot: reusing completed transfer buffer")
	d.current = oldest.buf[:0]
	return nil
}

func (d *DownloadStreamer) submit(buf []byte) {
	id := uuid.New()
	done := make(chan error, 1)
	d.client.log.WithField("transfer_id", id).WithField("bytes", len(buf)).Trace("fastboot: submitting download transfer")
	go func() {
		done <- d.client.transport.BulkOut(buf)
	}()
	d.pending = append(d.pending, &pendingTransfer{id: id, buf: buf, done: done})
}

// Finish flushes any buffered remainder, drains all in-flight completions,
// and reads the device's terminating OKAY or FAIL. It fails immediately,
// without touching the transport, if fewer bytes were ever queued than
// size declared.
func (d *DownloadStreamer) Finish() error {
	if d.left != 0 {
		return &IncorrectDataLengthError{Expected: d.size, Actual: d.size - d.left}
	}

	if len(d.current) > 0 {
		d.submit(d.current)
		d.current = nil
	}

	for _, p := range d.pending {
		if err := <-p.done; err != nil {
			return &TransferError{Err: err}
		}
		d.client.log.WithField("transfer_id", p.id).Trace("fastboot: download transfer complete")
	}
	d.pending = nil

	_, err := d.client.handleResponses()
	return err
}
