package store

import (
	"context"
	"errors"
	"fmt"

	"watchlist/pkg/models"
)

// DemoUserName is the display name of the forged user.
const DemoUserName = "Bruce"

// DemoMovies is the fixed list inserted by Forge.
var DemoMovies = []models.Movie{
	{Title: "杀破狼", Year: "2003"},
	{Title: "扫毒", Year: "2018"},
	{Title: "捉妖记", Year: "2016"},
	{Title: "囧妈", Year: "2020"},
	{Title: "葫芦娃", Year: "1989"},
	{Title: "玻璃盒子", Year: "2020"},
	{Title: "调酒师", Year: "2020"},
	{Title: "釜山行", Year: "2017"},
	{Title: "导火索", Year: "2005"},
	{Title: "叶问", Year: "2015"},
}

// Forge creates the tables if needed and inserts the demo user and movies in
// one transaction.
func (s *Store) Forge(ctx context.Context) error {
	if err := s.Init(ctx, false); err != nil {
		return err
	}

	return s.Tx(ctx, func(tx *Store) error {
		if err := tx.SaveUser(ctx, &models.User{Name: DemoUserName}); err != nil {
			return err
		}
		for _, m := range DemoMovies {
			movie := m
			if err := tx.CreateMovie(ctx, &movie); err != nil {
				return fmt.Errorf("forge %q: %w", m.Title, err)
			}
		}
		return nil
	})
}

// UpsertAdmin sets the login credential on the first user, creating a user
// named "Admin" when the table is empty. It reports whether a user was created.
func (s *Store) UpsertAdmin(ctx context.Context, username, password string) (created bool, err error) {
	if err := s.Init(ctx, false); err != nil {
		return false, err
	}

	err = s.Tx(ctx, func(tx *Store) error {
		user, err := tx.FirstUser(ctx)
		switch {
		case err == nil:
		case errors.Is(err, ErrUserNotFound):
			user = &models.User{Name: "Admin"}
			created = true
		default:
			return err
		}

		user.Username = username
		if err := user.SetPassword(password); err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		return tx.SaveUser(ctx, user)
	})
	return created, err
}
