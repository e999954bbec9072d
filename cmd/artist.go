package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/royalty/internal/models"
	"github.com/desertthunder/royalty/internal/repositories"
	"github.com/desertthunder/royalty/internal/shared"
	"github.com/urfave/cli/v3"
)

type artistOutput struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	APIToken    string `json:"api_token,omitempty"`
}

func newArtistOutput(a *models.Artist, withToken bool) artistOutput {
	out := artistOutput{ID: a.ID(), Username: a.Username(), Email: a.Email(), DisplayName: a.DisplayName()}
	if withToken {
		out.APIToken = a.APIToken()
	}
	return out
}

// ArtistCreate registers an artist and prints the API token used by the HTTP API.
func (r *Runner) ArtistCreate(ctx context.Context, cmd *cli.Command) error {
	username := strings.TrimSpace(cmd.StringArg("username"))
	if username == "" {
		return fmt.Errorf("%w: username", shared.ErrMissingArgument)
	}

	profile := models.Profile{
		DisplayName: cmd.String("display-name"),
		Country:     strings.ToUpper(cmd.String("country")),
	}
	if err := shared.ValidateStruct(profile); err != nil {
		return err
	}

	db, err := r.database()
	if err != nil {
		return err
	}

	artist := models.NewArtist(0, username, cmd.String("email"))
	artist.SetProfile(profile)
	if err := repositories.NewArtistRepository(db).Create(artist); err != nil {
		return fmt.Errorf("failed to create artist: %w", err)
	}
	r.logger.Info("artist created", "username", artist.Username(), "id", artist.ID())

	if cmd.Bool("json") {
		return r.writeJSON(newArtistOutput(artist, true), true)
	}

	r.writePlain("%s created %s (%s)\n", r.styles.OK("✓"), artist.Username(), artist.ID())
	r.writePlain("API token: %s\n", artist.APIToken())
	r.writePlain("%s\n", r.styles.Help("Send it as 'Authorization: Bearer <token>'. It is not shown again."))
	return nil
}

// ArtistList prints every active artist.
func (r *Runner) ArtistList(ctx context.Context, cmd *cli.Command) error {
	db, err := r.database()
	if err != nil {
		return err
	}

	artists, err := repositories.NewArtistRepository(db).List(nil)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		out := make([]artistOutput, 0, len(artists))
		for _, a := range artists {
			out = append(out, newArtistOutput(a, false))
		}
		return r.writeJSON(out, true)
	}

	if len(artists) == 0 {
		return r.writePlain("%s\n", r.styles.Warn("No artists yet. Create one with 'royalty artist create'."))
	}

	rows := make([][]string, 0, len(artists))
	for _, a := range artists {
		rows = append(rows, []string{a.Username(), a.DisplayName(), a.Email(), a.CreatedAt().Format("2006-01-02")})
	}
	r.writePlainHeader(fmt.Sprintf("Artists (%d)", len(artists)))
	return r.writePlain("%s\n", r.styles.Table([]string{"Username", "Display name", "Email", "Created"}, rows))
}
