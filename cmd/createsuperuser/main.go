package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/utafrali/HabitGo/internal/app"
	"github.com/utafrali/HabitGo/internal/config"
	apperrors "github.com/utafrali/HabitGo/pkg/errors"
	"github.com/utafrali/HabitGo/pkg/logger"
)

func main() {
	email := flag.String("email", "", "email of the new superuser")
	password := flag.String("password", "", "password; prompted for when empty")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log := logger.NewWithWriter("habit-createsuperuser", cfg.LogLevel, "text", os.Stderr)

	if err := run(cfg, log, *email, *password); err != nil {
		fmt.Fprintln(os.Stderr, "createsuperuser:", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger, email, password string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	in := bufio.NewReader(os.Stdin)
	if email == "" {
		fmt.Fprint(os.Stderr, "Email: ")
		line, err := in.ReadString('\n')
		if err != nil {
			return fmt.Errorf("read email: %w", err)
		}
		email = strings.TrimSpace(line)
	}
	if password == "" {
		p, err := readPassword(in)
		if err != nil {
			return err
		}
		password = p
	}

	admin, err := app.NewUserAdmin(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer admin.Close()

	u, err := admin.Users.CreateSuperuser(ctx, email, password)
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return fmt.Errorf("%s %v", appErr.Message, appErr.Fields)
		}
		return err
	}

	fmt.Fprintf(os.Stderr, "Superuser %s created (%s).\n", u.Email, u.ID)
	return nil
}

func readPassword(in *bufio.Reader) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := in.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(os.Stderr, "Password: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	fmt.Fprint(os.Stderr, "Password (again): ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	return string(first), nil
}
