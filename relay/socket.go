package relay

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"stagecraft"
)

const (
	writeTimeout = 5 * time.Second
	// incomingBuffer bounds how many frames can pile up between game ticks
	// before the reader blocks on the socket.
	incomingBuffer = 256
)

// SocketPipe adapts one websocket connection to the engine's pipe contract.
// A reader goroutine pulls frames off the socket as they arrive; Receive
// drains what has accumulated without blocking, which is what the game loop
// needs between ticks.
type SocketPipe struct {
	conn     *websocket.Conn
	incoming chan []byte

	writeMu sync.Mutex

	errMu sync.Mutex
	err   error

	closeOnce sync.Once
}

// NewSocketPipe wraps an established connection and starts its reader.
func NewSocketPipe(conn *websocket.Conn) *SocketPipe {
	p := &SocketPipe{
		conn:     conn,
		incoming: make(chan []byte, incomingBuffer),
	}
	go p.readLoop()
	return p
}

func (p *SocketPipe) readLoop() {
	defer close(p.incoming)
	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			p.setErr(err)
			return
		}
		p.incoming <- data
	}
}

func (p *SocketPipe) Send(frame []byte) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := p.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		p.setErr(err)
		return err
	}
	return nil
}

// Receive drains every frame that has arrived since the last call. Once the
// connection drops, it first delivers whatever was already buffered, then
// reports the read error.
func (p *SocketPipe) Receive() ([][]byte, error) {
	var frames [][]byte
	for {
		select {
		case data, ok := <-p.incoming:
			if !ok {
				if len(frames) > 0 {
					return frames, nil
				}
				return nil, p.getErr()
			}
			frames = append(frames, data)
		default:
			return frames, nil
		}
	}
}

func (p *SocketPipe) Close() error {
	var err error
	p.closeOnce.Do(func() {
		message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		p.writeMu.Lock()
		p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		p.conn.WriteMessage(websocket.CloseMessage, message)
		p.writeMu.Unlock()
		err = p.conn.Close()
	})
	return err
}

func (p *SocketPipe) setErr(err error) {
	p.errMu.Lock()
	defer p.errMu.Unlock()
	if p.err == nil {
		p.err = err
	}
}

func (p *SocketPipe) getErr() error {
	p.errMu.Lock()
	defer p.errMu.Unlock()
	return p.err
}

var _ stagecraft.Pipe = (*SocketPipe)(nil)
