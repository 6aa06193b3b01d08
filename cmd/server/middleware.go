package main

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ChileCris2011/Walkie-Server/internal/cid"
)

// cidMiddleware attaches a correlation id to every request: an incoming
// X-WK-CID is preserved, otherwise a fresh KSUID is generated. The id goes
// onto the request context and the response header.
func (s *Server) cidMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(cid.HeaderName)
		if id == "" {
			id = cid.New()
		}
		c.Request = c.Request.WithContext(cid.WithCID(c.Request.Context(), id))
		c.Writer.Header().Set(cid.HeaderName, id)
		c.Next()
	}
}

// otelMiddleware wraps each request in a span carrying the HTTP method,
// target, status, and correlation id.
func (s *Server) otelMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer("walkie-server")
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), c.Request.Method+" "+c.FullPath(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Request.Method),
				attribute.String("http.target", c.Request.URL.Path),
			),
		)
		if id := cid.FromContext(ctx); id != "" {
			span.SetAttributes(attribute.String(cid.AttributeName, id))
		}
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		span.SetAttributes(attribute.Int("http.status_code", c.Writer.Status()))
		span.End()
	}
}
