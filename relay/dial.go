package relay

import (
	"context"
	"fmt"

	"github.com/gorilla/websocket"

	"stagecraft"
)

// Dial connects to a game server's /ws endpoint and returns the pipe a
// ClientForum runs on. The url uses the ws:// (or wss://) scheme.
func Dial(ctx context.Context, url string) (stagecraft.Pipe, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return NewSocketPipe(conn), nil
}
