package server

import (
	"log/slog"
	"os"

	"github.com/USA-RedDragon/rpc-tester/internal/config"
	"github.com/USA-RedDragon/rpc-tester/internal/scripts"
	"github.com/USA-RedDragon/rpc-tester/internal/tester"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	sloggin "github.com/samber/slog-gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

func applyMiddleware(r *gin.Engine, config *config.Config, otelComponent string, tester *tester.Tester, db *gorm.DB, library *scripts.Library) {
	r.Use(gin.Recovery())

	r.TrustedPlatform = "X-Real-IP"

	// CORS
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowCredentials = true
	corsConfig.AllowWildcard = true
	if len(config.HTTP.CORSHosts) == 0 {
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowCredentials = false
	}
	corsConfig.AllowOrigins = config.HTTP.CORSHosts
	r.Use(cors.New(corsConfig))

	err := r.SetTrustedProxies(config.HTTP.TrustedProxies)
	if err != nil {
		slog.Error("Failed to set trusted proxies", "error", err.Error())
	}

	r.Use(testerMiddleware(tester))
	r.Use(configMiddleware(config))
	r.Use(databaseMiddleware(db))
	r.Use(scriptsMiddleware(library))

	if config.HTTP.Tracing.Enabled {
		r.Use(otelgin.Middleware(otelComponent))
		r.Use(tracingProvider(config))
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	r.Use(sloggin.NewWithConfig(logger, sloggin.Config{
		WithSpanID:        config.HTTP.Tracing.Enabled,
		WithTraceID:       config.HTTP.Tracing.Enabled,
		DefaultLevel:      slog.LevelInfo,
		ClientErrorLevel:  slog.LevelWarn,
		ServerErrorLevel:  slog.LevelError,
		WithRequestHeader: false,
	}))
}

func configMiddleware(config *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("config", config)
		c.Next()
	}
}

func databaseMiddleware(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("db", db)
		c.Next()
	}
}

func scriptsMiddleware(library *scripts.Library) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("scripts", library)
		c.Next()
	}
}

func testerMiddleware(tester *tester.Tester) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("tester", tester)
		c.Next()
	}
}

func tracingProvider(config *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if config.HTTP.Tracing.OTLPEndpoint != "" {
			ctx := c.Request.Context()
			span := trace.SpanFromContext(ctx)
			if span.IsRecording() {
				span.SetAttributes(
					attribute.String("http.method", c.Request.Method),
					attribute.String("http.path", c.Request.URL.Path),
				)
				if id := c.Param("id"); id != "" {
					span.SetAttributes(attribute.String("rpc_tester.session", id))
				}
			}
		}
		c.Next()
	}
}
