package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/utafrali/HabitGo/internal/auth"
	"github.com/utafrali/HabitGo/internal/config"
	"github.com/utafrali/HabitGo/internal/event"
	"github.com/utafrali/HabitGo/internal/repository/postgres"
	"github.com/utafrali/HabitGo/internal/service"
	"github.com/utafrali/HabitGo/internal/storage/memory"
)

// UserAdmin exposes account administration to command line tools.
type UserAdmin struct {
	Users *service.UserService
	close func()
}

// NewUserAdmin connects to the database, applies migrations and returns a
// user service that does not touch avatar storage or Kafka.
func NewUserAdmin(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*UserAdmin, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	pool, err := openDatabase(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	hasher, err := auth.NewPasswordHasher(auth.DefaultArgon2Params())
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("create password hasher: %w", err)
	}

	users := service.NewUserService(
		postgres.NewUserRepository(pool),
		postgres.NewProfileRepository(pool),
		memory.New(""),
		hasher,
		event.NewProducer(nil, logger),
		logger,
	)
	return &UserAdmin{Users: users, close: pool.Close}, nil
}

// Close releases the database pool.
func (a *UserAdmin) Close() {
	a.close()
}
