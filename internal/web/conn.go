package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"accentcoach/internal/domain"
	"accentcoach/internal/pitch"
	"accentcoach/internal/usecase"
)

const (
	helloTimeout   = 5 * time.Second
	writeTimeout   = 5 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = 20 * time.Second
	maxFrameBytes  = 1 << 20
	outboundBuffer = 64
	commandBuffer  = 16
)

// connection runs one practice session over a websocket. Incoming control frames are handled on
// the read loop; user commands run one at a time on the command loop.
type connection struct {
	ws     *websocket.Conn
	logger *slog.Logger

	out       chan serverMessage
	closed    chan struct{}
	closeOnce sync.Once

	commands   chan string
	device     *browserDevice
	controller *usecase.SessionController
}

func newConnection(ws *websocket.Conn, logger *slog.Logger) *connection {
	c := &connection{
		ws:       ws,
		logger:   logger,
		out:      make(chan serverMessage, outboundBuffer),
		closed:   make(chan struct{}),
		commands: make(chan string, commandBuffer),
	}
	c.device = newBrowserDevice(c.send)
	return c
}

// readHello waits for the first frame, which must be a hello carrying the browser's encodings.
func (c *connection) readHello() error {
	_ = c.ws.SetReadDeadline(time.Now().Add(helloTimeout))
	messageType, data, err := c.ws.ReadMessage()
	if err != nil {
		return err
	}
	if messageType != websocket.TextMessage {
		return errors.New("first frame must be hello")
	}
	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg.Type != msgHello {
		return errors.New("first frame must be hello")
	}
	c.device.setSupported(msg.Supported)
	return nil
}

func (c *connection) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writeLoop()
	}()

	commandsDone := make(chan struct{})
	go func() {
		defer close(commandsDone)
		c.commandLoop(ctx)
	}()

	c.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonReady)
	c.WordChanged(c.controller.Word())

	c.readLoop()

	cancel()
	c.shutdown()
	c.device.close()
	close(c.commands)
	<-commandsDone
	c.controller.Close()
	<-writerDone
}

func (c *connection) readLoop() {
	c.ws.SetReadLimit(maxFrameBytes)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug("websocket closed", "error", err)
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))

		if messageType == websocket.BinaryMessage {
			c.device.fragment(data)
			continue
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.send(serverMessage{Type: evtError, Code: "bad_request", Message: "invalid message"})
			continue
		}

		switch msg.Type {
		case msgHello:
			c.device.setSupported(msg.Supported)
		case msgCaptureReady:
			c.device.captureReady()
		case msgCaptureDenied:
			c.device.captureDenied(msg.Message)
		case msgCaptureDone:
			c.device.captureDone()
		case msgStart, msgStop, msgSubmit, msgReset, msgNext:
			select {
			case c.commands <- msg.Type:
			default:
				c.logger.Warn("command queue full", "command", msg.Type)
			}
		default:
			c.send(serverMessage{Type: evtError, Code: "bad_request", Message: "unknown message type " + msg.Type})
		}
	}
}

func (c *connection) commandLoop(ctx context.Context) {
	for command := range c.commands {
		c.dispatch(ctx, command)
	}
}

func (c *connection) dispatch(ctx context.Context, command string) {
	var err error
	switch command {
	case msgStart:
		err = c.controller.Start(ctx)
	case msgStop:
		var clip domain.Clip
		clip, err = c.controller.Stop(ctx)
		if err == nil {
			c.send(serverMessage{Type: evtClip, Clip: &clip})
		}
	case msgSubmit:
		err = c.controller.Submit(ctx)
	case msgReset:
		c.controller.Reset()
	case msgNext:
		c.controller.NextWord()
	}

	switch {
	case err == nil:
	case errors.Is(err, usecase.ErrBusy), errors.Is(err, usecase.ErrNoClip), errors.Is(err, usecase.ErrNotRecording):
		c.logger.Debug("command rejected", "command", command, "error", err)
		c.send(serverMessage{Type: evtError, Code: "rejected", Message: err.Error()})
	default:
		c.logger.Debug("command failed", "command", command, "error", err)
	}
}

func (c *connection) writeLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer c.ws.Close()

	for {
		select {
		case msg := <-c.out:
			if err := c.write(msg); err != nil {
				c.logger.Debug("websocket write failed", "error", err)
				c.shutdown()
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				c.shutdown()
				return
			}
		case <-c.closed:
			for {
				select {
				case msg := <-c.out:
					if c.write(msg) != nil {
						return
					}
				default:
					_ = c.ws.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeTimeout))
					return
				}
			}
		}
	}
}

func (c *connection) write(msg serverMessage) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteJSON(msg)
}

// send queues msg for the writer. It reports false once the connection is closing.
func (c *connection) send(msg serverMessage) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.out <- msg:
		return true
	case <-c.closed:
		return false
	}
}

func (c *connection) shutdown() {
	c.closeOnce.Do(func() { close(c.closed) })
}

func (c *connection) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	c.send(serverMessage{Type: evtSession, State: state, Reason: string(reason)})
}

func (c *connection) WordChanged(word domain.WordItem) {
	diagram := pitch.Render(word.Pattern, word.Reading)
	c.send(serverMessage{Type: evtWord, Word: &word, Diagram: &diagram})
}

func (c *connection) EvaluationReady(evaluation domain.Evaluation) {
	c.send(serverMessage{Type: evtEvaluation, Evaluation: &evaluation})
}

func (c *connection) SessionError(code domain.ErrorCode, detail string) {
	c.send(serverMessage{Type: evtError, Code: string(code), Message: detail})
}
