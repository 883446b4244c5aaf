package websocket

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/USA-RedDragon/rpc-tester/internal/config"
	"github.com/USA-RedDragon/rpc-tester/internal/tester"
	"github.com/gin-gonic/gin"
	"github.com/go-errors/errors"
	"github.com/gorilla/websocket"
)

const bufferSize = 1024

type Websocket interface {
	OnMessage(ctx context.Context, r *http.Request, w Writer, msg []byte, t int, session *tester.Session)
	OnConnect(ctx context.Context, r *http.Request, w Writer, session *tester.Session)
	OnDisconnect(ctx context.Context, r *http.Request, session *tester.Session)
}

type WSHandler struct {
	wsUpgrader websocket.Upgrader
	handler    Websocket
}

func CreateHandler(ws Websocket, config *config.Config) func(*gin.Context) {
	handler := &WSHandler{
		wsUpgrader: websocket.Upgrader{
			HandshakeTimeout: 0,
			ReadBufferSize:   bufferSize,
			WriteBufferSize:  bufferSize,
			WriteBufferPool:  nil,
			Subprotocols:     []string{},
			Error: func(_ http.ResponseWriter, _ *http.Request, _ int, _ error) {
			},
			CheckOrigin: func(r *http.Request) bool {
				return originAllowed(r.Header.Get("Origin"), config.HTTP.CORSHosts)
			},
			EnableCompression: true,
		},
		handler: ws,
	}

	return func(c *gin.Context) {
		sessionID, ok := c.Params.Get("id")
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "session id is required"})
			return
		}
		t, ok := c.MustGet("tester").(*tester.Tester)
		if !ok {
			slog.Error("Failed to get tester from context")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Try again later"})
			return
		}
		session, err := t.Session(sessionID)
		if err != nil {
			if errors.Is(err, tester.ErrSessionNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Try again later"})
			return
		}
		conn, err := handler.wsUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Error("Failed to set websocket upgrade", "error", err)
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}

		ctx, cancel := context.WithCancel(c.Request.Context())
		defer func() {
			cancel()
			handler.handler.OnDisconnect(ctx, c.Request, session)
			_ = conn.Close()
		}()

		handler.handle(ctx, conn, c.Request, session)
	}
}

// An empty allow list accepts every origin, matching the CORS setup.
func originAllowed(origin string, hosts []string) bool {
	if origin == "" || len(hosts) == 0 {
		return true
	}
	origin = strings.ToLower(origin)
	for _, host := range hosts {
		host = strings.ToLower(host)
		if strings.HasSuffix(host, ":443") && strings.HasPrefix(origin, "https://") {
			host = strings.TrimSuffix(host, ":443")
		}
		if strings.HasSuffix(host, ":80") && strings.HasPrefix(origin, "http://") {
			host = strings.TrimSuffix(host, ":80")
		}
		if strings.Contains(origin, host) {
			return true
		}
	}
	return false
}

func (h *WSHandler) handle(ctx context.Context, conn *websocket.Conn, r *http.Request, session *tester.Session) {
	done := make(chan struct{})
	defer close(done)
	writer := wsWriter{
		writer: make(chan Message, bufferSize),
		error:  make(chan string),
		done:   done,
	}
	h.handler.OnConnect(ctx, r, writer, session)

	go func() {
		for {
			t, msg, err := conn.ReadMessage()
			if err != nil {
				writer.Error("read failed")
				return
			}
			switch {
			case t == websocket.PingMessage:
				writer.WriteMessage(Message{
					Type: websocket.PongMessage,
				})
			case strings.EqualFold(string(msg), "ping"):
				writer.WriteMessage(Message{
					Type: websocket.TextMessage,
					Data: []byte("PONG"),
				})
			default:
				h.handler.OnMessage(ctx, r, writer, msg, t, session)
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-writer.error:
			return
		case msg := <-writer.writer:
			err := conn.WriteMessage(msg.Type, msg.Data)
			if err != nil {
				return
			}
		}
	}
}
