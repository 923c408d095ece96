package web

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"thirdcoast.systems/reverb/cmd/web/handlers/api/chat_api"
	"thirdcoast.systems/reverb/cmd/web/handlers/api/job_api"
	"thirdcoast.systems/reverb/cmd/web/handlers/api/persona_api"
	"thirdcoast.systems/reverb/internal/chat"
	"thirdcoast.systems/reverb/internal/db"
	"thirdcoast.systems/reverb/internal/pipeline"
)

type Webserver struct {
	*echo.Echo
	dbc        *db.DatabaseConnection
	engine     *chat.Engine
	embedStage *pipeline.Embedding
	registry   *prometheus.Registry
}

func NewWebserver(dbc *db.DatabaseConnection, engine *chat.Engine, embedStage *pipeline.Embedding, registry *prometheus.Registry) (*Webserver, error) {
	webserver := &Webserver{
		Echo:       echo.New(),
		dbc:        dbc,
		engine:     engine,
		embedStage: embedStage,
		registry:   registry,
	}

	webserver.registerRoutes()
	webserver.setupMiddleware()
	return webserver, nil
}

func (s *Webserver) setupMiddleware() {
	s.HideBanner = true
	s.HidePort = true
	s.Use(middleware.BodyLimit("2M"))
	s.Use(middleware.Recover())
	s.Use(middleware.RequestID())
	s.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
		Skipper: func(c echo.Context) bool {
			// Gzip buffers; the chat stream must flush per token.
			return c.Path() == "/api/chat/messages"
		},
	}))
	s.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			switch c.Path() {
			case "/healthz", "/metrics":
				return true
			default:
				return false
			}
		},
		LogURI:       true,
		LogMethod:    true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  false,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"remote_ip", v.RemoteIP,
				"request_id", v.RequestID,
			}
			if v.Error != nil {
				fields = append(fields, "error", v.Error)
			}
			slog.Info("request", fields...)
			return nil
		},
	}))
}

func (s *Webserver) registerRoutes() {
	apiGroup := s.Group("/api")

	apiGroup.POST("/personas", persona_api.HandleCreate(s.dbc))
	apiGroup.GET("/personas/:id", persona_api.HandleShow(s.dbc))
	apiGroup.POST("/personas/:id/discover", persona_api.HandleDiscover(s.dbc))
	apiGroup.POST("/personas/:id/embeddings", persona_api.HandleEmbeddings(s.dbc, s.embedStage))

	apiGroup.GET("/jobs/index", job_api.HandleIndex(s.dbc))
	apiGroup.GET("/jobs/:id/status", job_api.HandleStatus(s.dbc))
	apiGroup.POST("/jobs/:id/retry", job_api.HandleRetry(s.dbc))

	apiGroup.POST("/chat/messages", chat_api.HandleMessage(s.engine))
	apiGroup.GET("/chat/sessions/:id/messages", chat_api.HandleHistory(s.dbc))

	s.GET("/healthz", func(c echo.Context) error {
		return c.String(200, "ok")
	})
	s.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
}
