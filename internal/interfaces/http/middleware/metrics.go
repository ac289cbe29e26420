package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kiendrone/storefront/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	attrHTTPMethod = attribute.Key("http.request.method")
	attrHTTPRoute  = attribute.Key("http.route")
	attrHTTPStatus = attribute.Key("http.response.status_code")
)

// httpDurationBuckets are request latency boundaries in seconds
var httpDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// HTTPMetrics returns a middleware recording request count and latency.
// Routes are labelled by their pattern so path parameters do not explode
// cardinality; unmatched paths share the "unknown" route.
func HTTPMetrics(meter metric.Meter) (gin.HandlerFunc, error) {
	if meter == nil {
		return nil, fmt.Errorf("http metrics: meter is required")
	}

	requests, err := telemetry.NewCounter(meter,
		"http_server_request_total", "Total number of HTTP requests", "{request}")
	if err != nil {
		return nil, err
	}
	duration, err := telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:        "http_server_request_duration_seconds",
		Description: "HTTP request latency distribution in seconds",
		Unit:        "s",
		Boundaries:  httpDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		ctx := c.Request.Context()
		method := attrHTTPMethod.String(c.Request.Method)
		requests.Inc(ctx, method, attrHTTPRoute.String(route), attrHTTPStatus.Int(c.Writer.Status()))
		duration.Record(ctx, time.Since(start).Seconds(), method, attrHTTPRoute.String(route))
	}, nil
}
