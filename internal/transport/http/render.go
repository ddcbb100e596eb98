package http

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/gin-gonic/gin"
	"github.com/wisdom-oss/service-water-usage-history/internal/domain/usage"
)

const (
	mimeJSON     = "application/json"
	mimeTextJSON = "text/json"
	mimeCSV      = "text/csv"
	mimeCBOR     = "application/cbor"
)

var offeredFormats = []string{mimeJSON, mimeTextJSON, mimeCSV, mimeCBOR}

var csvHeader = []string{"timestamp", "amount", "usage-type", "consumer", "municipality"}

var cborMode = func() cbor.EncMode {
	mode, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(err)
	}
	return mode
}()

// negotiate picks the representation for the Accept header. Anything not
// offered falls back to JSON.
func negotiate(c *gin.Context) string {
	switch format := c.NegotiateFormat(offeredFormats...); format {
	case mimeCSV, mimeCBOR:
		return format
	default:
		return mimeJSON
	}
}

// etagSuffix keeps validators of different representations apart. JSON
// carries the bare fingerprint.
func etagSuffix(format string) string {
	switch format {
	case mimeCSV:
		return "-csv"
	case mimeCBOR:
		return "-cbor"
	default:
		return ""
	}
}

func respond(c *gin.Context, records []usage.Record) {
	if len(records) == 0 {
		c.Status(http.StatusNoContent)
		return
	}

	switch negotiate(c) {
	case mimeCSV:
		body, err := encodeCSV(records)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.Data(http.StatusOK, mimeCSV+"; charset=utf-8", body)
	case mimeCBOR:
		body, err := cborMode.Marshal(records)
		if err != nil {
			abortWithError(c, fmt.Errorf("failed to encode cbor: %w", err))
			return
		}
		c.Data(http.StatusOK, mimeCBOR, body)
	default:
		c.JSON(http.StatusOK, records)
	}
}

func encodeCSV(records []usage.Record) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("failed to encode csv: %w", err)
	}
	for _, r := range records {
		row := []string{
			r.Time.UTC().Format(time.RFC3339),
			fmt.Sprintf("%f", r.Amount),
			deref(r.UsageType),
			deref(r.ConsumerID),
			deref(r.ARS),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("failed to encode csv: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to encode csv: %w", err)
	}
	return buf.Bytes(), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
