package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"watchlist/pkg/config"
	"watchlist/pkg/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if err := s.Init(context.Background(), false); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return s
}

func TestMovieCRUD(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	m := &models.Movie{Title: "测试电影名称", Year: "2020"}
	if err := s.CreateMovie(ctx, m); err != nil {
		t.Fatalf("CreateMovie: %v", err)
	}
	if m.ID == 0 {
		t.Fatal("expected ID to be assigned")
	}

	got, err := s.Movie(ctx, m.ID)
	if err != nil {
		t.Fatalf("Movie: %v", err)
	}
	if got.Title != "测试电影名称" || got.Year != "2020" {
		t.Errorf("unexpected movie: %+v", got)
	}

	got.Title = "Edited"
	got.Year = "1999"
	if err := s.UpdateMovie(ctx, got); err != nil {
		t.Fatalf("UpdateMovie: %v", err)
	}

	movies, err := s.Movies(ctx)
	if err != nil {
		t.Fatalf("Movies: %v", err)
	}
	if len(movies) != 1 || movies[0].Title != "Edited" || movies[0].Year != "1999" {
		t.Errorf("unexpected movies after update: %+v", movies)
	}

	if err := s.DeleteMovie(ctx, m.ID); err != nil {
		t.Fatalf("DeleteMovie: %v", err)
	}
	if _, err := s.Movie(ctx, m.ID); !errors.Is(err, ErrMovieNotFound) {
		t.Errorf("expected ErrMovieNotFound after delete, got %v", err)
	}
}

func TestMissingMovie(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, err := s.Movie(ctx, 42); !errors.Is(err, ErrMovieNotFound) {
		t.Errorf("Movie: expected ErrMovieNotFound, got %v", err)
	}
	if err := s.DeleteMovie(ctx, 42); !errors.Is(err, ErrMovieNotFound) {
		t.Errorf("DeleteMovie: expected ErrMovieNotFound, got %v", err)
	}
	if err := s.UpdateMovie(ctx, &models.Movie{ID: 42, Title: "x", Year: "1"}); !errors.Is(err, ErrMovieNotFound) {
		t.Errorf("UpdateMovie: expected ErrMovieNotFound, got %v", err)
	}
}

func TestTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	boom := errors.New("boom")

	err := s.Tx(ctx, func(tx *Store) error {
		if err := tx.CreateMovie(ctx, &models.Movie{Title: "Ghost", Year: "2000"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	movies, err := s.Movies(ctx)
	if err != nil {
		t.Fatalf("Movies: %v", err)
	}
	if len(movies) != 0 {
		t.Errorf("expected rollback to leave no movies, got %+v", movies)
	}
}

func TestFirstUser(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, err := s.FirstUser(ctx); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound on empty table, got %v", err)
	}

	first := &models.User{Name: "First", Username: "first"}
	second := &models.User{Name: "Second", Username: "second"}
	for _, u := range []*models.User{first, second} {
		if err := s.SaveUser(ctx, u); err != nil {
			t.Fatalf("SaveUser: %v", err)
		}
	}

	got, err := s.FirstUser(ctx)
	if err != nil {
		t.Fatalf("FirstUser: %v", err)
	}
	if got.ID != first.ID {
		t.Errorf("expected first user %d, got %d", first.ID, got.ID)
	}

	byID, err := s.User(ctx, second.ID)
	if err != nil {
		t.Fatalf("User: %v", err)
	}
	if byID.Username != "second" {
		t.Errorf("expected second user, got %+v", byID)
	}
	if _, err := s.User(ctx, 999); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestInitDrop(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.CreateMovie(ctx, &models.Movie{Title: "Kept?", Year: "2001"}); err != nil {
		t.Fatal(err)
	}

	if err := s.Init(ctx, false); err != nil {
		t.Fatalf("Init without drop: %v", err)
	}
	if movies, _ := s.Movies(ctx); len(movies) != 1 {
		t.Fatalf("expected Init without drop to keep rows, got %d", len(movies))
	}

	if err := s.Init(ctx, true); err != nil {
		t.Fatalf("Init with drop: %v", err)
	}
	if movies, _ := s.Movies(ctx); len(movies) != 0 {
		t.Errorf("expected Init with drop to clear rows, got %d", len(movies))
	}
}

func TestForge(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.Forge(ctx); err != nil {
		t.Fatalf("Forge: %v", err)
	}

	user, err := s.FirstUser(ctx)
	if err != nil {
		t.Fatalf("FirstUser: %v", err)
	}
	if user.Name != DemoUserName {
		t.Errorf("expected demo user %q, got %q", DemoUserName, user.Name)
	}

	movies, err := s.Movies(ctx)
	if err != nil {
		t.Fatalf("Movies: %v", err)
	}
	if len(movies) != len(DemoMovies) {
		t.Fatalf("expected %d movies, got %d", len(DemoMovies), len(movies))
	}
	if movies[0].Title != "杀破狼" || movies[9].Title != "叶问" {
		t.Errorf("unexpected order: first %q last %q", movies[0].Title, movies[9].Title)
	}
}

func TestUpsertAdmin(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	created, err := s.UpsertAdmin(ctx, "admin", "secret")
	if err != nil {
		t.Fatalf("UpsertAdmin: %v", err)
	}
	if !created {
		t.Error("expected a new user to be created")
	}

	user, err := s.FirstUser(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if user.Name != "Admin" || user.Username != "admin" || !user.ValidatePassword("secret") {
		t.Errorf("unexpected admin: %+v", user)
	}

	created, err = s.UpsertAdmin(ctx, "root", "changed")
	if err != nil {
		t.Fatalf("UpsertAdmin update: %v", err)
	}
	if created {
		t.Error("expected the existing user to be updated")
	}

	user, err = s.FirstUser(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if user.Username != "root" || !user.ValidatePassword("changed") || user.ValidatePassword("secret") {
		t.Errorf("admin not updated: %+v", user)
	}
	if user.Name != "Admin" {
		t.Errorf("expected name to be kept, got %q", user.Name)
	}
}
