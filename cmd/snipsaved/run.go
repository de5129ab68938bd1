package main

import (
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/berrythewa/snipsave-daemon/internal/clipboard"
	"github.com/berrythewa/snipsave-daemon/internal/config"
	"github.com/berrythewa/snipsave-daemon/internal/heuristics"
	"github.com/berrythewa/snipsave-daemon/internal/save"
	"github.com/berrythewa/snipsave-daemon/internal/storage"
	"github.com/berrythewa/snipsave-daemon/internal/tray"
	"github.com/berrythewa/snipsave-daemon/internal/types"
	"github.com/berrythewa/snipsave-daemon/pkg/utils"
)

func newRunCmd() *cobra.Command {
	var noTray bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the clipboard watcher",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(noTray)
		},
	}
	cmd.Flags().BoolVar(&noTray, "no-tray", false, "run headless without the tray icon")
	return cmd
}

// configState shares the live configuration between the reload watcher and
// the tray callbacks.
type configState struct {
	mu  sync.Mutex
	cfg *config.Config
}

func (s *configState) get() *config.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

func (s *configState) set(cfg *config.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
}

func runDaemon(noTray bool) error {
	paths, err := config.GetConfigPaths()
	if err != nil {
		return err
	}
	configPath := configFile
	if configPath == "" {
		configPath = paths.ConfigFile
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	state := &configState{cfg: cfg}

	logger, err := utils.NewLogger(utils.LoggerOptions{
		Level:       cfg.Log.Level,
		LogDir:      paths.LogDir,
		EnableFile:  cfg.Log.EnableFileLogging,
		Development: verbose,
	})
	if err != nil {
		return err
	}
	defer logger.Sync()

	release, err := utils.AcquireLock(filepath.Join(paths.DataDir, "snipsaved.lock"))
	if err != nil {
		return err
	}
	defer release()

	var journal *storage.Journal
	if cfg.Journal.Enabled {
		journal, err = storage.NewJournal(storage.JournalConfig{
			DBPath:      filepath.Join(paths.DataDir, "journal.db"),
			KeepEntries: cfg.Journal.KeepEntries,
			Logger:      logger,
		})
		if err != nil {
			logger.Warn("Journal unavailable, recent-captures menu disabled", zap.Error(err))
		} else {
			defer journal.Close()
		}
	}

	dedup := &types.DedupState{}
	engine := heuristics.NewEngine(cfg.Heuristics.Policy())

	var recorder save.Recorder
	if journal != nil {
		recorder = journal
	}
	saver := save.NewManager(save.Options{
		Directory: cfg.Save.Directory,
		Pattern:   cfg.Save.Pattern,
		Logger:    logger,
		Dedup:     dedup,
		Journal:   recorder,
	})

	source, reader, probe, err := clipboard.NewPlatform(logger, nil)
	if err != nil {
		return err
	}

	monitor := clipboard.NewMonitor(clipboard.MonitorOptions{
		Logger:   logger,
		Source:   source,
		Reader:   reader,
		Probe:    probe,
		Engine:   engine,
		Saver:    saver,
		Dedup:    dedup,
		Settings: monitorSettings(cfg),
	})

	watcher, err := config.NewWatcher(configPath, logger, func(next *config.Config) {
		state.set(next)
		engine.UpdatePolicy(next.Heuristics.Policy())
		saver.UpdateSettings(next.Save.Directory, next.Save.Pattern)
		monitor.UpdateSettings(monitorSettings(next))
	})
	if err != nil {
		logger.Warn("Live config reload disabled", zap.Error(err))
	} else {
		defer watcher.Close()
	}

	if err := monitor.Start(); err != nil {
		return err
	}
	logger.Info("snipsaved running",
		zap.String("save_dir", cfg.Save.Directory),
		zap.String("config", configPath))

	if noTray {
		waitForSignal()
		monitor.Stop()
		return nil
	}

	// Quit from the tray (or a signal translated into one) stops the
	// monitor; any in-flight save completes before Stop returns.
	go func() {
		waitForSignal()
		monitor.Stop()
		os.Exit(0)
	}()

	tray.Run(tray.Options{
		Logger:        logger,
		ScreenshotDir: func() string { return state.get().Save.Directory },
		Recent: func(n int) []string {
			if journal == nil {
				return nil
			}
			entries, err := journal.Recent(n)
			if err != nil {
				return nil
			}
			out := make([]string, 0, len(entries))
			for _, e := range entries {
				out = append(out, e.Path)
			}
			return out
		},
		Saved:  monitor.Saved(),
		OnQuit: monitor.Stop,
	})
	return nil
}

func monitorSettings(cfg *config.Config) clipboard.Settings {
	return clipboard.Settings{
		Debounce:    time.Duration(cfg.Monitor.DebounceMs) * time.Millisecond,
		SettleDelay: time.Duration(cfg.Monitor.SettleDelayMs) * time.Millisecond,
	}
}

func waitForSignal() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	<-ch
}
