package usage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrUnknownConsumer = errors.New("unknown consumer")

// ARSLength is the length of an official municipality key.
const ARSLength = 12

// Record is a single recorded water usage.
type Record struct {
	Time       time.Time `json:"time" cbor:"1,keyasint"`
	Amount     float64   `json:"amount" cbor:"2,keyasint"`
	UsageType  *string   `json:"usageType" cbor:"3,keyasint,omitempty"`
	ConsumerID *string   `json:"consumerID" cbor:"4,keyasint,omitempty"`
	ARS        *string   `json:"ars" cbor:"5,keyasint,omitempty"`
}

// Page selects a window of records. Number starts at 1.
type Page struct {
	Size   int `form:"pageSize"`
	Number int `form:"page"`
}

func (p Page) Offset() int {
	if p.Number < 1 {
		return 0
	}
	return (p.Number - 1) * p.Size
}

type Repository interface {
	// LastModified returns the time of the newest change to the usage data.
	LastModified(ctx context.Context) (time.Time, error)
	List(ctx context.Context, page Page) ([]Record, error)
	ConsumerExists(ctx context.Context, consumerID uuid.UUID) (bool, error)
	ListByConsumer(ctx context.Context, consumerID uuid.UUID, page Page) ([]Record, error)
	// ListByMunicipality returns the usages recorded in the municipality
	// with the given ARS.
	ListByMunicipality(ctx context.Context, ars string, page Page) ([]Record, error)
	ListByUsageType(ctx context.Context, usageTypeID uuid.UUID, page Page) ([]Record, error)
}
