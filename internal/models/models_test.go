package models

import (
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/royalty/internal/shared"
	"github.com/shopspring/decimal"
)

func date(s string) time.Time {
	t, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestRevenueConversion(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"0", 0},
		{"1.5", 15000},
		{"0.00004", 0},
		{"0.00005", 1},
		{"12.34567", 123457},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := RevenueToE4(decimal.RequireFromString(tt.in))
			if got != tt.want {
				t.Errorf("RevenueToE4(%s) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}

	t.Run("Range", func(t *testing.T) {
		for _, in := range []string{"99999999.9999", "-99999999.9999", "0"} {
			if !RevenueInRange(decimal.RequireFromString(in)) {
				t.Errorf("expected %s to be in range", in)
			}
		}
		for _, in := range []string{"100000000", "-100000000", "99999999999999999999"} {
			if RevenueInRange(decimal.RequireFromString(in)) {
				t.Errorf("expected %s to be out of range", in)
			}
		}
	})

	t.Run("RoundTrip", func(t *testing.T) {
		d := RevenueFromE4(123457)
		if d.StringFixed(4) != "12.3457" {
			t.Errorf("expected 12.3457, got %s", d.StringFixed(4))
		}
	})
}

func TestIsKnownCurrency(t *testing.T) {
	for _, code := range []string{"USD", "eur", "GBP", "JPY"} {
		if !IsKnownCurrency(code) {
			t.Errorf("expected %s to be known", code)
		}
	}
	for _, code := range []string{"", "US", "XXXX", "ZZZ"} {
		if IsKnownCurrency(code) {
			t.Errorf("expected %q to be rejected", code)
		}
	}
}

func TestArtist(t *testing.T) {
	t.Run("Normalizes", func(t *testing.T) {
		a := NewArtist(1, "  nova ", "Nova@Example.COM ")
		if a.Username() != "nova" {
			t.Errorf("expected trimmed username, got %q", a.Username())
		}
		if a.Email() != "nova@example.com" {
			t.Errorf("expected lowercased email, got %q", a.Email())
		}
		if a.DisplayName() != "nova" {
			t.Errorf("expected display name to fall back to username, got %q", a.DisplayName())
		}
	})

	t.Run("Validate", func(t *testing.T) {
		a := NewArtist(1, "nova", "nova@example.com")
		if err := a.Validate(); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected missing token to be invalid, got %v", err)
		}

		a.SetAPIToken("token")
		if err := a.Validate(); err != nil {
			t.Errorf("expected valid artist, got %v", err)
		}

		a.SetUsername("two words")
		if err := a.Validate(); err == nil {
			t.Error("expected whitespace in username to be rejected")
		}
	})

	t.Run("ProfileCopy", func(t *testing.T) {
		a := NewArtist(1, "nova", "nova@example.com")
		a.SetProfile(Profile{Country: "us", Genres: []string{"house"}})

		p := a.Profile()
		p.Genres[0] = "techno"
		if a.Profile().Genres[0] != "house" {
			t.Error("Profile should return a copy")
		}
		if a.Profile().Country != "US" {
			t.Errorf("expected uppercased country, got %q", a.Profile().Country)
		}
		if a.Profile().SocialLinks == nil {
			t.Error("expected empty social links map, got nil")
		}
	})
}

func TestPlatform(t *testing.T) {
	tests := []struct {
		in, name, api string
	}{
		{"SPOTIFY", "Spotify", "spotify"},
		{"spotify ", "Spotify", "spotify"},
		{"iTunes", "Apple Music", "apple_music"},
		{"YouTube Music", "YouTube Music", "youtube_music"},
		{"Napster  Plus", "Napster Plus", "napster_plus"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p := NewPlatform(1, tt.in)
			if p.Name() != tt.name || p.APIName() != tt.api {
				t.Errorf("NewPlatform(%q) = %q/%q, want %q/%q", tt.in, p.Name(), p.APIName(), tt.name, tt.api)
			}
		})
	}
}

func TestStatement(t *testing.T) {
	line := StatementLine{
		PeriodStart: date("2024-01-01"),
		PeriodEnd:   date("2024-01-31"),
		Streams:     1200,
		Revenue:     decimal.RequireFromString("3.5"),
		Currency:    "usd",
	}

	t.Run("HashIsStable", func(t *testing.T) {
		a := StatementHash("artist", "Song  One", "Spotify", line)
		b := StatementHash("artist", "Song One", "Spotify", line)
		if a != b {
			t.Error("expected whitespace differences in track names to hash the same")
		}
		if len(a) != 64 {
			t.Errorf("expected 64 character hash, got %d", len(a))
		}

		other := line
		other.Revenue = decimal.RequireFromString("3.50001")
		if StatementHash("artist", "Song One", "Spotify", other) != a {
			t.Error("expected revenue to be compared at four decimal places")
		}

		other.Streams = 1201
		if StatementHash("artist", "Song One", "Spotify", other) == a {
			t.Error("expected different streams to change the hash")
		}
	})

	t.Run("Validate", func(t *testing.T) {
		s := NewRoyaltyStatement(1, "a", "t", "p", line)
		s.SetSourceRowHash(StatementHash("a", "Song", "Spotify", line))
		if err := s.Validate(); err != nil {
			t.Fatalf("expected valid statement, got %v", err)
		}
		if s.Currency() != "USD" {
			t.Errorf("expected uppercased currency, got %s", s.Currency())
		}

		bad := line
		bad.PeriodStart = date("2024-02-01")
		s = NewRoyaltyStatement(1, "a", "t", "p", bad)
		s.SetSourceRowHash(StatementHash("a", "Song", "Spotify", bad))
		if err := s.Validate(); err == nil {
			t.Error("expected inverted period to be rejected")
		}

		bad = line
		bad.Currency = "ZZZ"
		s = NewRoyaltyStatement(1, "a", "t", "p", bad)
		s.SetSourceRowHash(StatementHash("a", "Song", "Spotify", bad))
		if err := s.Validate(); err == nil {
			t.Error("expected unknown currency to be rejected")
		}

		bad = line
		bad.Revenue = decimal.RequireFromString("100000000")
		s = NewRoyaltyStatement(1, "a", "t", "p", bad)
		s.SetSourceRowHash(StatementHash("a", "Song", "Spotify", bad))
		if err := s.Validate(); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected oversized revenue to be rejected, got %v", err)
		}

		bad = line
		bad.Streams = MaxStreams + 1
		s = NewRoyaltyStatement(1, "a", "t", "p", bad)
		s.SetSourceRowHash(StatementHash("a", "Song", "Spotify", bad))
		if err := s.Validate(); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected oversized stream count to be rejected, got %v", err)
		}
	})
}

func TestUploadStatus(t *testing.T) {
	tests := []struct {
		name                        string
		total                       int
		success, errors, duplicates int
		want                        UploadStatus
	}{
		{"AllImported", 3, 3, 0, 0, UploadCompleted},
		{"AllDuplicates", 2, 0, 0, 2, UploadCompleted},
		{"SomeErrors", 3, 2, 1, 0, UploadCompletedWithErrors},
		{"DuplicatesAndErrors", 2, 0, 1, 1, UploadCompletedWithErrors},
		{"AllErrors", 2, 0, 2, 0, UploadFailed},
		{"Unfinished", 5, 2, 0, 0, UploadProcessing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := NewUpload(1, "artist", "report.csv")
			u.Start(tt.total)
			u.UpdateStats(tt.success, tt.errors, tt.duplicates)

			if u.Status() != tt.want {
				t.Errorf("expected status %s, got %s", tt.want, u.Status())
			}
			if u.ProcessedRows() != tt.success+tt.errors+tt.duplicates {
				t.Errorf("processed rows %d does not match counters", u.ProcessedRows())
			}
		})
	}

	t.Run("EmptyReportCompletes", func(t *testing.T) {
		u := NewUpload(1, "artist", "empty.csv")
		u.Start(0)
		if u.Status() != UploadCompleted {
			t.Errorf("expected completed, got %s", u.Status())
		}
	})

	t.Run("FailAppendsLog", func(t *testing.T) {
		u := NewUpload(1, "artist", "report.csv")
		u.SetErrorLog("row 2: bad date")
		u.Fail("cancelled")
		if u.Status() != UploadFailed || u.ErrorLog() != "row 2: bad date\ncancelled" {
			t.Errorf("unexpected failure state %s %q", u.Status(), u.ErrorLog())
		}
		if !u.Status().Terminal() {
			t.Error("failed should be terminal")
		}
	})
}

func TestInsight(t *testing.T) {
	i := NewInsight(1, "artist", "Apple Music", "Song", "Popularity", 42)
	if i.Platform() != "apple_music" || i.InsightType() != InsightPopularity {
		t.Errorf("expected slugged fields, got %q %q", i.Platform(), i.InsightType())
	}
	if err := i.Validate(); err != nil {
		t.Errorf("expected valid insight, got %v", err)
	}

	if err := NewInsight(1, "artist", "", "Song", "rank", 1).Validate(); err == nil {
		t.Error("expected empty platform to be rejected")
	}
}
