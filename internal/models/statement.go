package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/royalty/internal/shared"
	"github.com/shopspring/decimal"
)

// RoyaltyStatement is one normalized report line: streams and revenue for a track on a platform over a period.
type RoyaltyStatement struct {
	record
	artistID      string
	trackID       string
	platformID    string
	uploadID      string
	periodStart   time.Time
	periodEnd     time.Time
	streams       int64
	revenue       decimal.Decimal
	currency      string
	sourceRowHash string
}

// StatementLine carries the values of a statement before it is linked to stored entities.
type StatementLine struct {
	PeriodStart time.Time
	PeriodEnd   time.Time
	Streams     int64
	Revenue     decimal.Decimal
	Currency    string
}

// NewRoyaltyStatement creates a statement for the resolved artist, track and platform IDs.
func NewRoyaltyStatement(sequence int, artistID, trackID, platformID string, line StatementLine) *RoyaltyStatement {
	return &RoyaltyStatement{
		record:      newRecord(sequence),
		artistID:    artistID,
		trackID:     trackID,
		platformID:  platformID,
		periodStart: line.PeriodStart,
		periodEnd:   line.PeriodEnd,
		streams:     line.Streams,
		revenue:     line.Revenue.Round(RevenueScale),
		currency:    strings.ToUpper(line.Currency),
	}
}

// StatementHash is the deduplication key of a report line.
//
// Two lines with the same artist, track, platform, period end, streams, revenue and currency are the same
// line, whichever upload they came from.
func StatementHash(artistID, trackName, platformName string, line StatementLine) string {
	return shared.HashFields(
		artistID,
		shared.CollapseSpaces(trackName),
		platformName,
		FormatDate(line.PeriodEnd),
		strconv.FormatInt(line.Streams, 10),
		line.Revenue.StringFixed(RevenueScale),
		strings.ToUpper(line.Currency),
	)
}

func (s *RoyaltyStatement) ArtistID() string             { return s.artistID }
func (s *RoyaltyStatement) TrackID() string              { return s.trackID }
func (s *RoyaltyStatement) PlatformID() string           { return s.platformID }
func (s *RoyaltyStatement) UploadID() string             { return s.uploadID }
func (s *RoyaltyStatement) SetUploadID(id string)        { s.uploadID = id }
func (s *RoyaltyStatement) PeriodStart() time.Time       { return s.periodStart }
func (s *RoyaltyStatement) PeriodEnd() time.Time         { return s.periodEnd }
func (s *RoyaltyStatement) Streams() int64               { return s.streams }
func (s *RoyaltyStatement) Revenue() decimal.Decimal     { return s.revenue }
func (s *RoyaltyStatement) Currency() string             { return s.currency }
func (s *RoyaltyStatement) SourceRowHash() string        { return s.sourceRowHash }
func (s *RoyaltyStatement) SetSourceRowHash(hash string) { s.sourceRowHash = hash }

func (s *RoyaltyStatement) Validate() error {
	switch {
	case s.artistID == "":
		return fmt.Errorf("%w: statement artist is required", shared.ErrInvalidInput)
	case s.trackID == "":
		return fmt.Errorf("%w: statement track is required", shared.ErrInvalidInput)
	case s.platformID == "":
		return fmt.Errorf("%w: statement platform is required", shared.ErrInvalidInput)
	case s.periodEnd.IsZero() || s.periodStart.IsZero():
		return fmt.Errorf("%w: statement period is required", shared.ErrInvalidInput)
	case s.periodStart.After(s.periodEnd):
		return fmt.Errorf("%w: period start %s is after period end %s",
			shared.ErrInvalidInput, FormatDate(s.periodStart), FormatDate(s.periodEnd))
	case s.streams < 0:
		return fmt.Errorf("%w: streams cannot be negative", shared.ErrInvalidInput)
	case s.streams > MaxStreams:
		return fmt.Errorf("%w: streams out of range", shared.ErrInvalidInput)
	case !RevenueInRange(s.revenue):
		return fmt.Errorf("%w: revenue out of range", shared.ErrInvalidInput)
	case !IsKnownCurrency(s.currency):
		return fmt.Errorf("%w: unknown currency %q", shared.ErrInvalidInput, s.currency)
	case len(s.sourceRowHash) != 64:
		return fmt.Errorf("%w: source row hash must be 64 hex characters", shared.ErrInvalidInput)
	}
	return nil
}
