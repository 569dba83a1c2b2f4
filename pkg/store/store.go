package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"watchlist/pkg/config"
	"watchlist/pkg/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	ErrMovieNotFound = errors.New("movie not found")
	ErrUserNotFound  = errors.New("user not found")
)

// Store provides gorm-backed storage for users and movies
type Store struct {
	db *gorm.DB
}

// Open connects to the database selected by cfg.
func Open(cfg config.DatabaseConfig) (*Store, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.Path)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.Driver == "sqlite" {
		// sqlite allows one writer; serialize instead of surfacing SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(50)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &Store{db: db}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Init creates the user and movie tables, dropping them first when drop is set.
func (s *Store) Init(ctx context.Context, drop bool) error {
	db := s.db.WithContext(ctx)
	if drop {
		if err := db.Migrator().DropTable(&models.User{}, &models.Movie{}); err != nil {
			return fmt.Errorf("drop tables: %w", err)
		}
	}
	if err := db.AutoMigrate(&models.User{}, &models.Movie{}); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

// Tx runs fn against a store bound to one transaction. The transaction is
// committed when fn returns nil and rolled back otherwise, including on panic.
func (s *Store) Tx(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

// Movies returns all movies ordered by id
func (s *Store) Movies(ctx context.Context) ([]models.Movie, error) {
	var movies []models.Movie
	if err := s.db.WithContext(ctx).Order("id").Find(&movies).Error; err != nil {
		return nil, fmt.Errorf("list movies: %w", err)
	}
	return movies, nil
}

// Movie returns a movie by ID
func (s *Store) Movie(ctx context.Context, id uint) (*models.Movie, error) {
	var m models.Movie
	err := s.db.WithContext(ctx).First(&m, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMovieNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get movie %d: %w", id, err)
	}
	return &m, nil
}

// CreateMovie inserts m and assigns its ID
func (s *Store) CreateMovie(ctx context.Context, m *models.Movie) error {
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("create movie: %w", err)
	}
	return nil
}

// UpdateMovie saves the title and year of an existing movie
func (s *Store) UpdateMovie(ctx context.Context, m *models.Movie) error {
	res := s.db.WithContext(ctx).Model(m).Select("Title", "Year").Updates(m)
	if res.Error != nil {
		return fmt.Errorf("update movie %d: %w", m.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrMovieNotFound
	}
	return nil
}

// DeleteMovie removes a movie by ID
func (s *Store) DeleteMovie(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.Movie{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete movie %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrMovieNotFound
	}
	return nil
}

// FirstUser returns the lowest-id user, the account the app is built around.
func (s *Store) FirstUser(ctx context.Context) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).Order("id").First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get first user: %w", err)
	}
	return &u, nil
}

// User returns a user by ID
func (s *Store) User(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).First(&u, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return &u, nil
}

// SaveUser inserts u when it has no ID and updates it otherwise
func (s *Store) SaveUser(ctx context.Context, u *models.User) error {
	if err := s.db.WithContext(ctx).Save(u).Error; err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}
