// Package ws exposes the application manager's websocket surface: a
// lifecycle event stream for platform clients and the registration socket
// native apps connect back on after spawning.
package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/appmanager/internal/domain/lifecycle"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/events"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/shared/utils"
)

const (
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// Connections arrive over the platform's local bus only.
		return true
	},
}

// Registrar is the slice of the orchestrator the registration socket needs.
type Registrar interface {
	RegisterApp(appID string, conn lifecycle.AppConnection, done func(errCode int, errText string))
}

// Handler bundles the websocket endpoints.
type Handler struct {
	log       *logging.Logger
	bus       *events.Bus
	registrar Registrar
	metrics   *monitoring.Metrics
}

// NewHandler creates the websocket handler set.
func NewHandler(log *logging.Logger, bus *events.Bus, registrar Registrar, metrics *monitoring.Metrics) *Handler {
	return &Handler{
		log:       log.Named("ws"),
		bus:       bus,
		registrar: registrar,
		metrics:   metrics,
	}
}

// Register installs the websocket routes on the router group.
func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/events", h.Events)
	r.GET("/register", h.RegisterApp)
}

// Events upgrades the connection and streams bus events until the client
// disconnects. A slow client loses events rather than stalling the bus.
func (h *Handler) Events(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("event stream upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	if h.metrics != nil {
		h.metrics.WSConnections.Inc()
		defer h.metrics.WSConnections.Dec()
	}

	ch, cancel := h.bus.Subscribe(256)
	defer cancel()

	// Drain the client's side so close frames are processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// appConnection adapts one registration socket to the lifecycle notification
// interface. Sends may come from the event loop and the ping ticker
// concurrently, hence the write mutex.
type appConnection struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

type appMessage struct {
	Method  string                 `json:"method"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

func (a *appConnection) Send(method string, payload map[string]interface{}) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return a.conn.WriteJSON(appMessage{Method: method, Payload: payload})
}

// RegisterApp upgrades a native app's connection and completes the
// registration handshake. The socket then stays open for lifecycle
// notifications until the app disconnects or exits.
func (h *Handler) RegisterApp(c *gin.Context) {
	appID := c.Query("appId")
	if err := utils.ValidateAppID(appID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"returnValue": false, "errorText": err.Error()})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("registration upgrade failed", zap.String("appId", appID), zap.Error(err))
		return
	}
	defer conn.Close()

	if h.metrics != nil {
		h.metrics.WSConnections.Inc()
		defer h.metrics.WSConnections.Dec()
	}

	ac := &appConnection{conn: conn}
	outcome := make(chan registration, 1)
	h.registrar.RegisterApp(appID, ac, func(code int, text string) {
		outcome <- registration{code: code, text: text}
	})

	reg := <-outcome
	if reg.code != lifecycle.ErrNone {
		h.log.Warn("registration denied",
			zap.String("appId", appID),
			zap.Int("errorCode", reg.code),
			zap.String("errorText", reg.text),
		)
		ac.Send("registrationFailed", map[string]interface{}{
			"errorCode": reg.code,
			"errorText": reg.text,
		})
		return
	}

	h.log.Info("app registered", zap.String("appId", appID))
	if err := ac.Send("registered", map[string]interface{}{"appId": appID}); err != nil {
		return
	}

	// Hold the socket open; incoming frames are acknowledgements we don't
	// act on. Process exit, not socket close, drives lifecycle cleanup.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.log.Debug("registration socket closed", zap.String("appId", appID))
			return
		}
	}
}

type registration struct {
	code int
	text string
}
