package ws

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"chatguard/internal/constants"
	"chatguard/internal/models"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/sirupsen/logrus"
)

// clientIDCounter assigns unique IDs to connections for log correlation.
var clientIDCounter atomic.Uint64

type client struct {
	id       uint64
	hub      *Hub
	conn     *websocket.Conn
	remoteIP string

	send      chan *models.ChatMessage
	closeOnce sync.Once
}

func newClient(hub *Hub, conn *websocket.Conn, remoteIP string) *client {
	conn.SetReadLimit(constants.DefaultMaxFrameBytes)
	return &client{
		id:       clientIDCounter.Add(1),
		hub:      hub,
		conn:     conn,
		remoteIP: remoteIP,
		send:     make(chan *models.ChatMessage, constants.DefaultClientSendBuffer),
	}
}

// run serves the connection until the peer goes away. The read loop owns the
// calling goroutine so inbound messages from one connection enter the
// pipeline in send order.
func (c *client) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.writeLoop(ctx)
	c.readLoop(ctx)
}

func (c *client) readLoop(ctx context.Context) {
	defer c.close()

	for {
		var env models.Envelope
		if err := wsjson.Read(ctx, c.conn, &env); err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
				c.hub.logger.WithError(err).WithField("client_id", c.id).
					Debug("Websocket read ended")
			}
			return
		}

		if env.Event != models.EventSendMessage {
			c.hub.logger.WithFields(logrus.Fields{
				"client_id": c.id,
				"event":     env.Event,
			}).Debug("Ignoring unknown websocket event")
			continue
		}

		if c.hub.handler == nil {
			continue
		}

		// The pipeline outlives the sending connection: a message accepted
		// here is persisted and fanned out even if the sender drops.
		c.hub.handler.HandleIncoming(context.WithoutCancel(ctx), env.Data)
	}
}

func (c *client) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.send:
			if !ok {
				return
			}

			frame := models.Envelope{Event: models.EventReceiveMessage}
			if err := frame.SetData(msg); err != nil {
				c.hub.logger.WithError(err).WithField("client_id", c.id).
					Error("Failed to encode broadcast frame")
				continue
			}

			writeCtx, cancel := context.WithTimeout(ctx, constants.DefaultWriteTimeoutSec*time.Second)
			err := wsjson.Write(writeCtx, c.conn, frame)
			cancel()
			if err != nil {
				c.hub.logger.WithError(err).WithField("client_id", c.id).
					Warn("Failed to deliver message to client")
				return
			}
		}
	}
}

// close tears the connection down once; safe to call from either loop and
// from the hub.
func (c *client) close() {
	c.closeOnce.Do(func() {
		_ = c.conn.Close(websocket.StatusNormalClosure, "")
	})
}
