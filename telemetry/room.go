// Package telemetry streams IMU bundles to websocket clients as JSON.
package telemetry

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"

	"github.com/stratux/imufusion/sensors"
)

// Commands a client may send as a text message.
const (
	CmdStart = "start" // stream every published bundle
	CmdStop  = "stop"  // stop streaming
	CmdOnce  = "once"  // send the latest bundle once, ignored while streaming
)

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("telemetry: room closed")

type command struct {
	c   *client
	cmd string
}

// Room fans bundles out to the connected clients that asked for them.
// A client receives nothing until it sends CmdStart or CmdOnce.
type Room struct {
	// forward holds encoded bundles waiting to go out to the clients.
	forward chan []byte
	// join is a channel for clients wishing to join the room.
	join chan *client
	// leave is a channel for clients wishing to leave the room.
	leave chan *client
	// control carries client commands into the room loop.
	control chan command
	// clients holds all current clients in this room.
	clients map[*client]bool
	// last is the most recent bundle, for "once".
	last []byte

	n, streamers int32
	done         chan struct{}
}

// NewRoom makes a new room that is ready to Run.
func NewRoom() *Room {
	return &Room{
		forward: make(chan []byte),
		join:    make(chan *client),
		leave:   make(chan *client),
		control: make(chan command),
		clients: make(map[*client]bool),
		done:    make(chan struct{}),
	}
}

// Run services the room until Close is called.
func (r *Room) Run() {
	for {
		select {
		case <-r.done:
			for c := range r.clients {
				delete(r.clients, c)
				close(c.send)
			}
			atomic.StoreInt32(&r.n, 0)
			atomic.StoreInt32(&r.streamers, 0)
			return
		case c := <-r.join:
			r.clients[c] = true
			r.count()
			glog.Infof("Telemetry: new client joined from %s", c.socket.RemoteAddr())
		case c := <-r.leave:
			if r.clients[c] {
				delete(r.clients, c)
				close(c.send)
			}
			r.count()
			glog.Infof("Telemetry: client left")
		case cmd := <-r.control:
			if !r.clients[cmd.c] {
				continue
			}
			switch cmd.cmd {
			case CmdStart:
				cmd.c.streaming = true
				r.count()
			case CmdStop:
				cmd.c.streaming = false
				r.count()
			case CmdOnce:
				if !cmd.c.streaming && r.last != nil {
					r.send(cmd.c, r.last)
				}
			default:
				glog.Warningf("Telemetry: unknown command %q", cmd.cmd)
			}
		case msg := <-r.forward:
			r.last = msg
			for c := range r.clients {
				if c.streaming {
					r.send(c, msg)
				}
			}
		}
	}
}

func (r *Room) count() {
	var streaming int32
	for c := range r.clients {
		if c.streaming {
			streaming++
		}
	}
	atomic.StoreInt32(&r.n, int32(len(r.clients)))
	atomic.StoreInt32(&r.streamers, streaming)
}

func (r *Room) send(c *client, msg []byte) {
	select {
	case c.send <- msg:
	default:
		glog.V(1).Infof("Telemetry: couldn't send to client, dropping")
	}
}

// Close stops Run and disconnects every client. It must be called at most once.
func (r *Room) Close() {
	close(r.done)
}

// Clients returns the number of connected clients.
func (r *Room) Clients() int {
	return int(atomic.LoadInt32(&r.n))
}

// Streaming returns the number of connected clients that sent CmdStart.
func (r *Room) Streaming() int {
	return int(atomic.LoadInt32(&r.streamers))
}

// Publish encodes b and hands it to the room. It blocks until Run takes it.
func (r *Room) Publish(b *sensors.Bundle) error {
	msg, err := json.Marshal(b)
	if err != nil {
		return err
	}
	select {
	case <-r.done:
		return ErrClosed
	default:
	}
	select {
	case r.forward <- msg:
		return nil
	case <-r.done:
		return ErrClosed
	}
}

const (
	socketBufferSize  = 1024
	messageBufferSize = 10
)

var upgrader = &websocket.Upgrader{ReadBufferSize: socketBufferSize, WriteBufferSize: socketBufferSize}

func (r *Room) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	socket, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		glog.Warningf("Telemetry: upgrade failed: %v", err)
		return
	}
	c := &client{
		socket: socket,
		send:   make(chan []byte, messageBufferSize),
		room:   r,
	}
	select {
	case r.join <- c:
	case <-r.done:
		socket.Close()
		return
	}
	defer func() {
		select {
		case r.leave <- c:
		case <-r.done:
		}
	}()
	go c.write()
	c.read()
}
