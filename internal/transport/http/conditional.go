package http

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wisdom-oss/service-water-usage-history/pkg/logger"
	"github.com/wisdom-oss/service-water-usage-history/pkg/metrics"
	"github.com/wisdom-oss/service-water-usage-history/pkg/tracer"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/crypto/sha3"
)

// FreshnessSource reports when the served data last changed.
type FreshnessSource interface {
	LastModified(ctx context.Context) (time.Time, error)
}

type fingerprintInput struct {
	Path  string              `json:"request_path"`
	Query map[string][]string `json:"request_query_parameter"`
}

// Fingerprint digests the path and the query with every value list sorted,
// so neither parameter order nor value order changes the result.
func Fingerprint(path string, query url.Values) string {
	// quoting keeps invalid UTF-8 distinct, json.Marshal would coerce it to U+FFFD
	normalized := make(map[string][]string, len(query))
	for key, values := range query {
		quoted := make([]string, len(values))
		for i, v := range values {
			quoted[i] = strconv.Quote(v)
		}
		slices.Sort(quoted)
		normalized[strconv.Quote(key)] = quoted
	}

	// map keys are marshalled in sorted order
	payload, _ := json.Marshal(fingerprintInput{Path: strconv.Quote(path), Query: normalized})
	sum := sha3.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// ConditionalRequest answers 304 when the client already holds the response
// for this request and the data has not changed since. Fresh responses carry
// ETag and Last-Modified. Non-JSON representations get their own ETag.
func ConditionalRequest(source FreshnessSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "transport.http.ConditionalRequest")

		etag := Fingerprint(c.Request.URL.Path, c.Request.URL.Query()) + etagSuffix(negotiate(c))
		c.Header("Vary", "Accept")

		lastModified, err := source.LastModified(ctx)
		if err != nil {
			span.RecordError(err)
			span.End()
			metrics.ObserveConditional(metrics.ConditionalUnavailable)
			logger.WarnContext(ctx, "freshness unavailable, skipping conditional handling", logger.Err(err))
			c.Next()
			return
		}
		// HTTP dates have second precision
		lastModified = lastModified.UTC().Truncate(time.Second)

		notModified := etagMatches(c.GetHeader("If-None-Match"), etag) &&
			!modifiedSince(c.GetHeader("If-Modified-Since")).Before(lastModified)
		span.SetAttributes(attribute.Bool("http.not_modified", notModified))
		span.End()

		c.Header("ETag", etag)
		if notModified {
			metrics.ObserveConditional(metrics.ConditionalNotModified)
			logger.DebugContext(ctx, "not modified", slog.String("etag", etag))
			c.AbortWithStatus(http.StatusNotModified)
			return
		}

		metrics.ObserveConditional(metrics.ConditionalFresh)
		// set before the handler writes, gin flushes headers with the body
		c.Header("Last-Modified", lastModified.Format(http.TimeFormat))
		c.Next()
	}
}

// etagMatches accepts the fingerprint bare, quoted or weak.
func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		candidate = strings.TrimPrefix(candidate, "W/")
		candidate = strings.Trim(candidate, `"`)
		if candidate == etag {
			return true
		}
	}
	return false
}

// modifiedSince parses If-Modified-Since, absent or unparsable values mean
// the epoch.
func modifiedSince(header string) time.Time {
	if header == "" {
		return time.Unix(0, 0).UTC()
	}
	t, err := http.ParseTime(header)
	if err != nil {
		return time.Unix(0, 0).UTC()
	}
	return t.UTC()
}
