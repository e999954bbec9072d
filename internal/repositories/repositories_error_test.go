package repositories

import (
	"errors"
	"testing"

	"github.com/desertthunder/royalty/internal/models"
	"github.com/desertthunder/royalty/internal/shared"
)

func TestArtistRepositoryErrors(t *testing.T) {
	t.Run("Create", func(t *testing.T) {
		t.Run("ValidationError", func(t *testing.T) {
			db := setupTestDB(t)
			artist := models.NewArtist(0, "", "nova@example.com")

			if err := NewArtistRepository(db).Create(artist); !errors.Is(err, shared.ErrInvalidInput) {
				t.Fatalf("expected validation error for empty username, got %v", err)
			}
		})

		t.Run("DuplicateUsername", func(t *testing.T) {
			db := setupTestDB(t)
			createArtist(t, db, "nova")

			err := NewArtistRepository(db).Create(models.NewArtist(0, "nova", "other@example.com"))
			if !errors.Is(err, shared.ErrDuplicate) {
				t.Fatalf("expected ErrDuplicate, got %v", err)
			}
		})

		t.Run("DuplicateEmail", func(t *testing.T) {
			db := setupTestDB(t)
			createArtist(t, db, "nova")

			err := NewArtistRepository(db).Create(models.NewArtist(0, "orbit", "nova@example.com"))
			if !errors.Is(err, shared.ErrDuplicate) {
				t.Fatalf("expected ErrDuplicate, got %v", err)
			}
		})
	})

	t.Run("Get", func(t *testing.T) {
		t.Run("NotFound", func(t *testing.T) {
			db := setupTestDB(t)

			if _, err := NewArtistRepository(db).Get("nonexistent-id"); !errors.Is(err, shared.ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})

		t.Run("EmptyToken", func(t *testing.T) {
			db := setupTestDB(t)

			if _, err := NewArtistRepository(db).GetByToken(""); !errors.Is(err, shared.ErrUnauthorized) {
				t.Fatalf("expected ErrUnauthorized, got %v", err)
			}
		})
	})

	t.Run("Update", func(t *testing.T) {
		t.Run("NotFound", func(t *testing.T) {
			db := setupTestDB(t)
			artist := models.NewArtist(0, "nova", "nova@example.com")
			artist.SetID("nonexistent-id")
			artist.SetAPIToken("token")

			if err := NewArtistRepository(db).Update(artist); !errors.Is(err, shared.ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})

		t.Run("Deleted", func(t *testing.T) {
			db := setupTestDB(t)
			repo := NewArtistRepository(db)
			artist := createArtist(t, db, "nova")

			if err := repo.Delete(artist.ID()); err != nil {
				t.Fatalf("failed to delete artist: %v", err)
			}
			if err := repo.Update(artist); err == nil {
				t.Fatal("expected error when updating deleted artist")
			}
		})
	})

	t.Run("Delete", func(t *testing.T) {
		t.Run("AlreadyDeleted", func(t *testing.T) {
			db := setupTestDB(t)
			repo := NewArtistRepository(db)
			artist := createArtist(t, db, "nova")

			if err := repo.Delete(artist.ID()); err != nil {
				t.Fatalf("failed to delete artist: %v", err)
			}
			if err := repo.Delete(artist.ID()); err == nil {
				t.Fatal("expected error when deleting artist twice")
			}
		})
	})
}

func TestStatementRepositoryErrors(t *testing.T) {
	t.Run("ValidationError", func(t *testing.T) {
		db := setupTestDB(t)
		statement := models.NewRoyaltyStatement(0, "artist", "track", "platform", models.StatementLine{Currency: "USD"})

		if err := NewStatementRepository(db).Create(statement); !errors.Is(err, shared.ErrInvalidInput) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("ForeignKey", func(t *testing.T) {
		db := setupTestDB(t)
		artist := createArtist(t, db, "nova")
		seedStatement(t, db, artist.ID(), "Dawn", "Spotify", "2024-01-31", 1, "1")

		rows, _ := NewStatementRepository(db).ListByArtist(artist.ID(), Filter{})
		stored, err := NewStatementRepository(db).Get(rows[0].ID)
		if err != nil {
			t.Fatalf("failed to get statement: %v", err)
		}

		orphan := models.NewRoyaltyStatement(0, artist.ID(), "missing-track", stored.PlatformID(), models.StatementLine{
			PeriodStart: stored.PeriodStart(),
			PeriodEnd:   stored.PeriodEnd(),
			Streams:     2,
			Revenue:     stored.Revenue(),
			Currency:    "USD",
		})
		orphan.SetSourceRowHash(stored.SourceRowHash()[:63] + "x")

		if err := NewStatementRepository(db).Create(orphan); err == nil {
			t.Fatal("expected foreign key violation for unknown track")
		}
	})

	t.Run("GetNotFound", func(t *testing.T) {
		db := setupTestDB(t)
		if _, err := NewStatementRepository(db).Get("nope"); !errors.Is(err, shared.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestUploadRepositoryErrors(t *testing.T) {
	t.Run("UnknownArtist", func(t *testing.T) {
		db := setupTestDB(t)
		if err := NewUploadRepository(db).Create(models.NewUpload(0, "missing", "a.csv")); err == nil {
			t.Fatal("expected foreign key violation for unknown artist")
		}
	})

	t.Run("UpdateNotFound", func(t *testing.T) {
		db := setupTestDB(t)
		upload := models.NewUpload(0, "artist", "a.csv")
		upload.SetID("nonexistent-id")

		if err := NewUploadRepository(db).Update(upload); !errors.Is(err, shared.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestNextSequence(t *testing.T) {
	db := setupTestDB(t)

	for want := 1; want <= 3; want++ {
		got, err := NextSequence(db, "uploads")
		if err != nil {
			t.Fatalf("failed to get sequence: %v", err)
		}
		if got != want {
			t.Errorf("expected %d, got %d", want, got)
		}
	}

	if _, err := NextSequence(db, "missing"); err == nil {
		t.Error("expected error for missing sequence table")
	}
}
