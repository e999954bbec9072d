// package models defines the data model for the royalty analytics service
package models

import (
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// DateLayout is the storage and wire format of calendar dates.
const DateLayout = "2006-01-02"

// RevenueScale is the number of fractional digits kept for revenue.
const RevenueScale = 4

// MaxStreams bounds a single statement's stream count.
const MaxStreams int64 = 1_000_000_000_000_000

// maxRevenue is the exclusive bound on an amount's magnitude: twelve digits, four of them fractional.
var maxRevenue = decimal.New(1, 8)

// RevenueInRange reports whether |d| fits in twelve digits with four fractional, so [RevenueToE4] cannot overflow.
func RevenueInRange(d decimal.Decimal) bool {
	return d.Abs().LessThan(maxRevenue)
}

// Model defines the base interface for all persistent models.
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	UpdatedAt() time.Time // UpdatedAt returns when this model was last updated
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines the interface for data access operations.
// Implementations handle database interactions for specific model types.
type Repository[T Model] interface {
	Create(model T) error                      // Create inserts a new model into the database
	Get(id string) (T, error)                  // Get retrieves a model by its ID
	Update(model T) error                      // Update modifies an existing model in the database
	Delete(id string) error                    // Delete removes a model from the database by its ID
	List(criteria map[string]any) ([]T, error) // List retrieves all models matching the given criteria
}

// record holds the identity and bookkeeping fields shared by every entity.
type record struct {
	id        string
	sequence  int
	createdAt time.Time
	updatedAt time.Time
}

func newRecord(sequence int) record {
	now := time.Now().UTC()
	return record{sequence: sequence, createdAt: now, updatedAt: now}
}

func (r *record) ID() string               { return r.id }
func (r *record) SetID(id string)          { r.id = id }
func (r *record) Sequence() int            { return r.sequence }
func (r *record) SetSequence(sequence int) { r.sequence = sequence }
func (r *record) CreatedAt() time.Time     { return r.createdAt }
func (r *record) SetCreatedAt(t time.Time) { r.createdAt = t }
func (r *record) UpdatedAt() time.Time     { return r.updatedAt }
func (r *record) SetUpdatedAt(t time.Time) { r.updatedAt = t }

// RevenueToE4 converts an amount to integer ten-thousandths, rounding half away from zero.
func RevenueToE4(d decimal.Decimal) int64 {
	return d.Shift(RevenueScale).Round(0).IntPart()
}

// RevenueFromE4 is the inverse of [RevenueToE4].
func RevenueFromE4(v int64) decimal.Decimal {
	return decimal.New(v, -RevenueScale)
}

// IsKnownCurrency reports whether code is an ISO-4217 code known to [money].
func IsKnownCurrency(code string) bool {
	if len(code) != 3 {
		return false
	}
	return money.GetCurrency(strings.ToUpper(code)) != nil
}

// FormatDate renders t in [DateLayout], or "" for the zero time.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

// ParseDate parses a [DateLayout] string as a UTC date.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}
