// Package web exposes the booth over HTTP: a small JSON API for arming the
// sound trigger and taking photos, and a websocket streaming the level meter
// and capture events.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"shutter/booth"
	"shutter/gate"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const writeTimeout = 5 * time.Second

// Controller is the booth as seen by HTTP clients.
type Controller interface {
	Status() Status
	SetArmed(ctx context.Context, armed bool) error
	TakePhoto(ctx context.Context, source string) (string, error)
	Retake() error
	LastPhoto() string
}

type Status struct {
	Armed      bool         `json:"armed"`
	Level      float64      `json:"level"`
	Threshold  float64      `json:"threshold"`
	CooldownMS int64        `json:"cooldown_ms"`
	Device     string       `json:"device,omitempty"`
	Booth      booth.Status `json:"booth"`
}

type Server struct {
	echo     *echo.Echo
	ctrl     Controller
	hub      *Hub
	upgrader websocket.Upgrader
}

func New(ctrl Controller, hub *Hub) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		echo: e,
		ctrl: ctrl,
		hub:  hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
	}
	s.registerRoutes()
	return s
}

// Echo exposes the underlying Echo instance for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/api/state", s.handleState)
	s.echo.POST("/api/trigger", s.handleTrigger)
	s.echo.POST("/api/photo", s.handlePhoto)
	s.echo.POST("/api/retake", s.handleRetake)
	s.echo.GET("/api/photos/latest", s.handleLatest)
	s.echo.GET("/ws", s.handleWebSocket)
}

// Run starts Echo and blocks until ctx cancellation or startup failure.
func (s *Server) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		err := s.echo.Start(addr)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.echo.Shutdown(shutCtx)
		return nil
	}
}

type healthResponse struct {
	Status  string `json:"status"`
	Clients int    `json:"clients"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{Status: "ok", Clients: s.hub.ClientCount()})
}

func (s *Server) handleState(c echo.Context) error {
	return c.JSON(http.StatusOK, s.ctrl.Status())
}

type triggerRequest struct {
	Enabled *bool `json:"enabled"`
}

func (s *Server) handleTrigger(c echo.Context) error {
	var req triggerRequest
	if err := c.Bind(&req); err != nil || req.Enabled == nil {
		return echo.NewHTTPError(http.StatusBadRequest, `body must be {"enabled": true|false}`)
	}
	if err := s.ctrl.SetArmed(c.Request().Context(), *req.Enabled); err != nil {
		var accessErr *gate.AudioAccessError
		if errors.As(err, &accessErr) {
			return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, s.ctrl.Status())
}

type photoResponse struct {
	Path string `json:"path"`
}

func (s *Server) handlePhoto(c echo.Context) error {
	path, err := s.ctrl.TakePhoto(c.Request().Context(), "web")
	switch {
	case errors.Is(err, booth.ErrNotLive), errors.Is(err, booth.ErrBusy), errors.Is(err, booth.ErrNoBackground):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("take photo: %v", err))
	}
	return c.JSON(http.StatusCreated, photoResponse{Path: path})
}

func (s *Server) handleRetake(c echo.Context) error {
	if err := s.ctrl.Retake(); err != nil {
		if errors.Is(err, booth.ErrNoCapture) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, s.ctrl.Status())
}

func (s *Server) handleLatest(c echo.Context) error {
	path := s.ctrl.LastPhoto()
	if path == "" {
		return echo.NewHTTPError(http.StatusNotFound, "no photo yet")
	}
	return c.File(path)
}

func (s *Server) handleWebSocket(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return fmt.Errorf("upgrade websocket: %w", err)
	}
	s.serveConn(conn)
	return nil
}

func (s *Server) serveConn(conn *websocket.Conn) {
	defer conn.Close()
	conn.SetReadLimit(1 << 10)

	send := s.hub.subscribe()
	defer s.hub.unsubscribe(send)

	// The read loop only detects the peer going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	st := s.ctrl.Status()
	armed := st.Armed
	if !s.write(conn, Message{Type: TypeArmed, Armed: &armed, State: st.Booth.State}) {
		return
	}
	for {
		select {
		case <-gone:
			return
		case msg, ok := <-send:
			if !ok || !s.write(conn, msg) {
				return
			}
		}
	}
}

func (s *Server) write(conn *websocket.Conn, msg Message) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(msg) == nil
}
