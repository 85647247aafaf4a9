package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nhle/notification-center/internal/api"
	"github.com/nhle/notification-center/internal/app"
	"github.com/nhle/notification-center/internal/archive"
	"github.com/nhle/notification-center/internal/credential"
	"github.com/nhle/notification-center/internal/model"
	"github.com/nhle/notification-center/internal/store"
	appsync "github.com/nhle/notification-center/internal/sync"
	"github.com/nhle/notification-center/internal/stream"
)

// Archive retention applied at startup.
const (
	archiveMaxAge = 30 * 24 * time.Hour
	archiveKeep   = 1000
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "login":
			runLogin(os.Args[2:])
			return
		case "logout":
			runLogout()
			return
		}
	}

	if err := runApp(); err != nil {
		fmt.Fprintf(os.Stderr, "notification-center: %v\n", err)
		os.Exit(1)
	}
}

// runApp wires the sync core together and hands the terminal to Bubble Tea.
func runApp() error {
	cfgPath := model.DefaultConfigPath()
	cfg, err := model.LoadConfig(cfgPath)
	if err != nil {
		return err
	}
	if cfg.Server.BaseURL == "" {
		return fmt.Errorf("no server configured: set server.base_url in %s", cfgPath)
	}

	closeLog, err := setupLogging(cfgPath)
	if err != nil {
		return err
	}
	defer closeLog()

	user, err := credential.CurrentUser()
	if err != nil {
		if errors.Is(err, credential.ErrNotLoggedIn) {
			return fmt.Errorf("not logged in: run `notification-center login <subject-id> <token>`")
		}
		return err
	}
	if !credential.IsLoggedIn() {
		return fmt.Errorf("session expired: run `notification-center login` again")
	}

	arc, err := archive.Open(filepath.Join(filepath.Dir(cfgPath), "archive.db"))
	if err != nil {
		return err
	}
	defer arc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := arc.Prune(ctx, archiveMaxAge, archiveKeep); err != nil {
		log.Warn().Err(err).Msg("archive prune failed")
	}
	cancel()

	s := store.New(cfg.Settings)
	client := api.NewClient(cfg.Server.BaseURL, credential.Token)
	conn := stream.New(cfg.Server.BaseURL, cfg.Server.StreamPath, credential.Token)
	ctrl := appsync.New(s, client, conn, arc)

	// Show archived history immediately; the first fetch replaces it.
	backfillCtx, cancelBackfill := context.WithTimeout(context.Background(), 5*time.Second)
	ctrl.Backfill(backfillCtx)
	cancelBackfill()

	m := app.New(cfg, cfgPath, s, ctrl, user.SubjectID)
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running UI: %w", err)
	}

	ctrl.Stop()
	return nil
}

// runLogin stores a session in the system keyring.
// Usage: notification-center login <subject-id> <token> [expiry-hours]
func runLogin(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: notification-center login <subject-id> <token> [expiry-hours]")
		os.Exit(2)
	}

	user := credential.User{SubjectID: args[0]}
	if len(args) > 2 {
		var hours int
		if _, err := fmt.Sscanf(args[2], "%d", &hours); err == nil && hours > 0 {
			user.ExpiresAt = time.Now().Add(time.Duration(hours) * time.Hour)
		}
	}

	if err := credential.SaveSession(args[1], user); err != nil {
		fmt.Fprintf(os.Stderr, "login failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("logged in as %s\n", user.SubjectID)
}

// runLogout removes the stored session.
func runLogout() {
	if err := credential.ClearSession(); err != nil {
		fmt.Fprintf(os.Stderr, "logout failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("logged out")
}

// setupLogging sends zerolog output to a file next to the config so log
// lines never corrupt the TUI.
func setupLogging(cfgPath string) (func(), error) {
	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	f, err := os.OpenFile(
		filepath.Join(dir, "notification-center.log"),
		os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644,
	)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("NOTIFY_DEBUG") != "" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = zerolog.New(f).With().Timestamp().Logger()

	return func() { f.Close() }, nil
}
