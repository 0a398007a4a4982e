package telemetry

import (
	"strings"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"
)

// client is a single websocket connection in a Room.
type client struct {
	socket *websocket.Conn
	// send is closed by the room when the client leaves.
	send chan []byte
	room *Room
	// streaming is only touched from the room loop.
	streaming bool
}

func (c *client) read() {
	defer c.socket.Close()
	for {
		_, msg, err := c.socket.ReadMessage()
		if err != nil {
			return
		}
		cmd := command{c: c, cmd: strings.TrimSpace(strings.ToLower(string(msg)))}
		select {
		case c.room.control <- cmd:
		case <-c.room.done:
			return
		}
	}
}

func (c *client) write() {
	defer c.socket.Close()
	for msg := range c.send {
		if err := c.socket.WriteMessage(websocket.TextMessage, msg); err != nil {
			glog.V(1).Infof("Telemetry: write failed: %v", err)
			return
		}
	}
}
