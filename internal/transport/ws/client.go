package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"dynstack.ai/internal/protocol"
)

// Handler answers one WORLD snapshot. A nil schedule sends nothing.
type Handler func(ctx context.Context, tick uint64, w protocol.World) (*protocol.CraneSchedule, error)

// Client is a planner connection to a simulator.
type Client struct {
	conn *websocket.Conn
	log  *log.Logger

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Dial connects to url and sends HELLO.
func Dial(ctx context.Context, url, plannerName, simID string, logger *log.Logger) (*Client, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
		ReadBufferSize:   64 * 1024,
		WriteBufferSize:  64 * 1024,
		Proxy:            http.ProxyFromEnvironment,
	}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	c := &Client{conn: conn, log: logger, ReadTimeout: 60 * time.Second, WriteTimeout: 5 * time.Second}

	if plannerName == "" {
		plannerName = "planner"
	}
	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		PlannerName:     plannerName,
		SimID:           simID,
	}
	if err := c.writeJSON(hello); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("send HELLO: %w", err)
	}
	return c, nil
}

// Run reads snapshots until ctx is done or the connection drops. It returns
// nil when ctx ends the loop.
func (c *Client) Run(ctx context.Context, h Handler) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = c.conn.Close()
	}()

	for {
		if c.ReadTimeout > 0 {
			_ = c.conn.SetReadDeadline(time.Now().Add(c.ReadTimeout))
		}
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			c.log.Printf("drop malformed message: %v", err)
			continue
		}
		if base.ProtocolVersion != protocol.Version {
			c.log.Printf("drop %s with protocol_version=%q", base.Type, base.ProtocolVersion)
			continue
		}
		switch base.Type {
		case protocol.TypeWorld:
			var wm protocol.WorldMsg
			if err := json.Unmarshal(msg, &wm); err != nil {
				c.log.Printf("drop WORLD: %v", err)
				continue
			}
			sched, err := h(ctx, wm.Tick, wm.World)
			if err != nil {
				c.log.Printf("tick=%d: plan failed: %v", wm.Tick, err)
				continue
			}
			if sched == nil {
				continue
			}
			out := protocol.ScheduleMsg{
				Type:            protocol.TypeSchedule,
				ProtocolVersion: protocol.Version,
				Tick:            wm.Tick,
				Schedule:        *sched,
			}
			if err := c.writeJSON(out); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("send SCHEDULE tick=%d: %w", wm.Tick, err)
			}

		case protocol.TypeError:
			var em protocol.ErrorMsg
			if err := json.Unmarshal(msg, &em); err != nil {
				continue
			}
			if !protocol.IsKnownCode(em.Code) {
				c.log.Printf("simulator error with unknown code %q: %s", em.Code, em.Message)
				continue
			}
			c.log.Printf("simulator error tick=%d code=%s: %s", em.Tick, em.Code, em.Message)

		default:
			c.log.Printf("ignore message type %q", base.Type)
		}
	}
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) writeJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if c.WriteTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.WriteTimeout))
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
		if errors.Is(err, websocket.ErrCloseSent) {
			return io.ErrClosedPipe
		}
		return err
	}
	return nil
}
