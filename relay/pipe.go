package relay

import (
	"errors"
	"sync"

	"stagecraft"
)

// errPipeClosed is returned once either end of a memory pipe has closed.
var errPipeClosed = errors.New("pipe closed")

// memoryPipe is one end of an in-process pipe pair. It exists for tests and
// for running a "multiplayer" game inside a single process; frames are
// delivered in order with no framing overhead.
type memoryPipe struct {
	mu     sync.Mutex
	peer   *memoryPipe
	queue  [][]byte
	closed bool
}

// NewMemoryPipePair returns two connected pipes: frames sent on one arrive
// at the other.
func NewMemoryPipePair() (stagecraft.Pipe, stagecraft.Pipe) {
	a := &memoryPipe{}
	b := &memoryPipe{}
	a.peer = b
	b.peer = a
	return a, b
}

func (p *memoryPipe) Send(frame []byte) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return errPipeClosed
	}

	peer := p.peer
	peer.mu.Lock()
	defer peer.mu.Unlock()
	if peer.closed {
		return errPipeClosed
	}
	copied := make([]byte, len(frame))
	copy(copied, frame)
	peer.queue = append(peer.queue, copied)
	return nil
}

func (p *memoryPipe) Receive() ([][]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) == 0 {
		if p.closed {
			return nil, errPipeClosed
		}
		return nil, nil
	}
	frames := p.queue
	p.queue = nil
	return frames, nil
}

func (p *memoryPipe) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
