// Package tray renders the notification-area icon and menu. It consumes
// saved events from the monitor and issues the shutdown request that drives
// it to Stopped.
package tray

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"

	"fyne.io/systray"
	"go.uber.org/zap"

	"github.com/berrythewa/snipsave-daemon/internal/types"
)

const recentSlots = 5

// Options wires the tray to the rest of the daemon.
type Options struct {
	Logger *zap.Logger
	// ScreenshotDir is resolved on click so live config changes apply.
	ScreenshotDir func() string
	// Recent returns the paths of recently saved captures, newest first.
	Recent func(n int) []string
	// Saved delivers capture events for menu updates.
	Saved <-chan types.SavedEvent
	// OnQuit is invoked after the tray has been torn down.
	OnQuit func()
}

// Run blocks, servicing the tray until Quit is chosen. Must be called from
// the main goroutine on platforms that require it.
func Run(opts Options) {
	systray.Run(func() { onReady(opts) }, opts.OnQuit)
}

func onReady(opts Options) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	systray.SetIcon(iconBytes())
	systray.SetTitle("Snipsave")
	systray.SetTooltip("Saving screenshots to disk")

	openItem := systray.AddMenuItem("Open screenshots folder", "Open the save directory")
	systray.AddSeparator()

	recentItems := make([]*systray.MenuItem, recentSlots)
	// recentPaths is written by refresh on the event goroutine and read by
	// the per-item click goroutines.
	var recentMu sync.Mutex
	recentPaths := make([]string, recentSlots)
	for i := range recentItems {
		recentItems[i] = systray.AddMenuItem("—", "")
		recentItems[i].Hide()
	}
	systray.AddSeparator()
	quitItem := systray.AddMenuItem("Quit", "Stop watching the clipboard")

	refresh := func() {
		paths := opts.Recent(recentSlots)
		recentMu.Lock()
		for i, item := range recentItems {
			if i < len(paths) {
				recentPaths[i] = paths[i]
				item.SetTitle(filepath.Base(paths[i]))
				item.Show()
			} else {
				recentPaths[i] = ""
				item.Hide()
			}
		}
		recentMu.Unlock()
	}
	if opts.Recent != nil {
		refresh()
	}

	for i, item := range recentItems {
		go func(i int, clicks <-chan struct{}) {
			for range clicks {
				recentMu.Lock()
				path := recentPaths[i]
				recentMu.Unlock()
				if path != "" {
					if err := openPath(path); err != nil {
						logger.Warn("Failed to open capture", zap.Error(err))
					}
				}
			}
		}(i, item.ClickedCh)
	}

	go func() {
		for {
			select {
			case <-openItem.ClickedCh:
				if err := openPath(opts.ScreenshotDir()); err != nil {
					logger.Warn("Failed to open screenshots folder", zap.Error(err))
				}
			case _, ok := <-opts.Saved:
				if !ok {
					return
				}
				if opts.Recent != nil {
					refresh()
				}
			case <-quitItem.ClickedCh:
				systray.Quit()
				return
			}
		}
	}()
}

// openPath hands a file or directory to the platform shell.
func openPath(path string) error {
	if path == "" {
		return fmt.Errorf("no path to open")
	}
	switch runtime.GOOS {
	case "windows":
		return exec.Command("explorer", path).Start()
	case "darwin":
		return exec.Command("open", path).Start()
	default:
		return exec.Command("xdg-open", path).Start()
	}
}
