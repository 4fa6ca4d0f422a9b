package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/jwebster45206/papal-schism/data"
	"github.com/jwebster45206/papal-schism/internal/config"
	"github.com/jwebster45206/papal-schism/internal/decision"
	"github.com/jwebster45206/papal-schism/internal/engine"
	"github.com/jwebster45206/papal-schism/internal/logger"
	"github.com/jwebster45206/papal-schism/internal/session"
	"github.com/jwebster45206/papal-schism/internal/storage"
	"github.com/jwebster45206/papal-schism/pkg/ending"
	pkgstorage "github.com/jwebster45206/papal-schism/pkg/storage"
)

// localSlot is the single save slot of the console game.
var localSlot = uuid.NewSHA1(uuid.NameSpaceOID, []byte("papal-schism:local"))

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logFile, err := os.OpenFile(filepath.Join(os.TempDir(), "papal-schism-console.log"),
		os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() {
		_ = logFile.Close()
	}()
	log := logger.SetupTo(logFile, cfg)

	graph, err := data.LoadStory(cfg.StoryPath())
	if err != nil {
		return err
	}

	saves, where, err := openStorage(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		_ = saves.Close()
	}()
	log.Info("Console starting", "story", graph.Name(), "saves", where)

	relay := &relay{}
	manager := session.NewManager(session.Options{
		Storage:        saves,
		Graph:          graph,
		Resolver:       ending.Default(),
		Logger:         log,
		Tick:           cfg.TickInterval,
		PersistTimeout: cfg.PersistTimeout,
		Strict:         cfg.StrictChoices,
		OnView:         func(_ uuid.UUID, v engine.View) { relay.send(viewMsg(v)) },
		OnTick:         func(_ uuid.UUID, cd decision.Countdown) { relay.send(tickMsg(cd)) },
	})
	defer manager.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	sess, restored, err := manager.Open(ctx, localSlot)
	if err != nil {
		return err
	}
	log.Info("Save slot opened", "restored", restored)

	p := tea.NewProgram(NewConsoleUI(sess, graph.Name(), where),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion())
	relay.attach(p)

	_, err = p.Run()
	return err
}

// openStorage prefers Redis when one answers at REDIS_URL, and otherwise
// keeps saves on disk.
func openStorage(cfg *config.Config, log *slog.Logger) (pkgstorage.Storage, string, error) {
	rs := storage.NewRedisStorage(cfg.RedisURL, log).
		WithKeyPrefix(cfg.RedisKeyPrefix).
		WithTTL(cfg.SaveTTL)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rs.Ping(ctx); err == nil {
		return rs, "redis " + cfg.RedisURL, nil
	}
	_ = rs.Close()

	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	dir = filepath.Join(dir, "papal-schism", "saves")
	fs, err := storage.NewFileStorage(dir, log)
	if err != nil {
		return nil, "", err
	}
	return fs, dir, nil
}

// relay hands store notifications to the program. Notifications arrive on
// the store's goroutine, which may be inside Update, so Send must not block it.
type relay struct {
	mu sync.Mutex
	p  *tea.Program
}

func (r *relay) attach(p *tea.Program) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.p = p
}

func (r *relay) send(msg tea.Msg) {
	r.mu.Lock()
	p := r.p
	r.mu.Unlock()
	if p != nil {
		go p.Send(msg)
	}
}
