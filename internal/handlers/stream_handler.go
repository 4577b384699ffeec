package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/anonto42/minglr/backend/internal/metrics"
	"github.com/anonto42/minglr/backend/internal/services"
	"github.com/labstack/echo/v4"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	streamWriteTimeout = 10 * time.Second
	streamPingInterval = 30 * time.Second
)

// StreamHandler pushes live snapshots over websockets. Clients only receive;
// each frame is {"type": <stream>, "data": <full snapshot>}.
type StreamHandler struct {
	messaging     *services.MessagingService
	polls         *services.PollService
	posts         *services.PostService
	notifications *services.NotificationService
	metrics       *metrics.Metrics
	accept        *websocket.AcceptOptions
	logger        *slog.Logger
}

// NewStreamHandler creates a new StreamHandler. originPatterns restricts cross-origin clients; empty allows any.
func NewStreamHandler(messaging *services.MessagingService, polls *services.PollService, posts *services.PostService,
	notifications *services.NotificationService, m *metrics.Metrics, originPatterns []string, logger *slog.Logger) *StreamHandler {
	accept := &websocket.AcceptOptions{OriginPatterns: originPatterns}
	if len(originPatterns) == 0 {
		accept.InsecureSkipVerify = true
	}
	return &StreamHandler{
		messaging:     messaging,
		polls:         polls,
		posts:         posts,
		notifications: notifications,
		metrics:       m,
		accept:        accept,
		logger:        loggerOrDefault(logger),
	}
}

// RegisterStreamRoutes registers the websocket routes
func (h *StreamHandler) RegisterStreamRoutes(g *echo.Group) {
	g.GET("/messages/:channel", h.Messages)
	g.GET("/groups", h.Groups)
	g.GET("/notifications", h.Notifications)
	g.GET("/posts", h.Posts)
	g.GET("/events", h.ConfirmedEvents)
}

func (h *StreamHandler) Messages(c echo.Context) error {
	channel := c.Param("channel")
	return serveStream(c, h, "messages", func(ctx context.Context) (<-chan []any, error) {
		return erase(h.messaging.SubscribeToMessages(ctx, channel))
	})
}

func (h *StreamHandler) Groups(c echo.Context) error {
	return serveStream(c, h, "groups", func(ctx context.Context) (<-chan []any, error) {
		return erase(h.messaging.SubscribeToGroups(ctx))
	})
}

func (h *StreamHandler) Notifications(c echo.Context) error {
	return serveStream(c, h, "notifications", func(ctx context.Context) (<-chan []any, error) {
		return erase(h.notifications.Subscribe(ctx))
	})
}

func (h *StreamHandler) Posts(c echo.Context) error {
	return serveStream(c, h, "posts", func(ctx context.Context) (<-chan []any, error) {
		return erase(h.posts.Subscribe(ctx))
	})
}

func (h *StreamHandler) ConfirmedEvents(c echo.Context) error {
	return serveStream(c, h, "events", func(ctx context.Context) (<-chan []any, error) {
		return erase(h.polls.SubscribeConfirmedEvents(ctx))
	})
}

// erase adapts a typed snapshot stream to the untyped one serveStream writes out.
func erase[T any](in <-chan []T, err error) (<-chan []any, error) {
	if err != nil {
		return nil, err
	}
	out := make(chan []any)
	go func() {
		defer close(out)
		for snap := range in {
			items := make([]any, len(snap))
			for i := range snap {
				items[i] = snap[i]
			}
			out <- items
		}
	}()
	return out, nil
}

func serveStream(c echo.Context, h *StreamHandler, stream string, subscribe func(context.Context) (<-chan []any, error)) error {
	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	snapshots, err := subscribe(ctx)
	if err != nil {
		return httpError(c, h.logger, err)
	}
	defer func() {
		// unblock the erase goroutine until the subscription closes
		for range snapshots {
		}
	}()
	defer cancel()

	conn, err := websocket.Accept(c.Response(), c.Request(), h.accept)
	if err != nil {
		h.logger.WarnContext(ctx, "websocket accept failed", "stream", stream, "error", err)
		return nil
	}
	defer conn.CloseNow()
	defer h.metrics.TrackStream(stream)()

	// push-only: CloseRead still processes control frames and cancels ctx on disconnect
	ctx = conn.CloseRead(ctx)
	ping := time.NewTicker(streamPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return nil
		case <-ping.C:
			if err := conn.Ping(ctx); err != nil {
				return nil
			}
		case snap, ok := <-snapshots:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "stream closed")
				return nil
			}
			writeCtx, cancelWrite := context.WithTimeout(ctx, streamWriteTimeout)
			err := wsjson.Write(writeCtx, conn, echo.Map{"type": stream, "data": snap})
			cancelWrite()
			if err != nil {
				h.logger.DebugContext(ctx, "websocket write failed", "stream", stream, "error", err)
				return nil
			}
		}
	}
}
