package fastboot

import (
	"errors"
	"sync"
)

// fakeTransport is an in-memory Transport used by tests to drive Client and
// DownloadStreamer without real USB hardware.
type fakeTransport struct {
	mu        sync.Mutex
	outMax    int
	inMax     int
	writes    [][]byte
	responses [][]byte
	writeErr  error
}

func newFakeTransport(outMax, inMax int, responses ...string) *fakeTransport {
	raw := make([][]byte, len(responses))
	for i, r := range responses {
		raw[i] = []byte(r)
	}
	return &fakeTransport{outMax: outMax, inMax: inMax, responses: raw}
}

func (f *fakeTransport) BulkOut(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	cp := append([]byte(nil), data...)
	f.writes = append(f.writes, cp)
	return nil
}

func (f *fakeTransport) BulkIn(maxLen int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.responses) == 0 {
		return nil, errors.New("fakeTransport: no more queued responses")
	}
	r := f.responses[0]
	f.responses = f.responses[1:]
	return r, nil
}

func (f *fakeTransport) MaxOutPacketSize() int { return f.outMax }
func (f *fakeTransport) MaxInPacketSize() int  { return f.inMax }
func (f *fakeTransport) Close() error          { return nil }

func (f *fakeTransport) commandWrites() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.writes))
	for i, w := range f.writes {
		out[i] = string(w)
	}
	return out
}
