//go:build windows

package clipboard

import (
	"fmt"
	"runtime"
	"unsafe"

	"go.uber.org/zap"
	"golang.org/x/sys/windows"
)

const listenerClassName = "SnipsaveClipboardListener"

// windowsChangeSource subscribes to WM_CLIPBOARDUPDATE through a hidden
// message-only window. The window and its message loop live on one locked
// OS thread; notifications are forwarded over a channel to the monitor.
// There is no polling: the loop blocks in GetMessage indefinitely.
type windowsChangeSource struct {
	logger   *zap.Logger
	ch       chan struct{}
	hwnd     uintptr
	loopDone chan struct{}
}

// NewChangeSource returns the Windows clipboard-change notification source.
func NewChangeSource(logger *zap.Logger) ChangeSource {
	return &windowsChangeSource{
		logger:   logger,
		ch:       make(chan struct{}, 1),
		loopDone: make(chan struct{}),
	}
}

func (s *windowsChangeSource) Changes() <-chan struct{} { return s.ch }

func (s *windowsChangeSource) Start() error {
	ready := make(chan error, 1)
	go s.messageLoop(ready)
	return <-ready
}

func (s *windowsChangeSource) Stop() {
	if s.hwnd != 0 {
		procPostMessageW.Call(s.hwnd, wmClose, 0, 0)
	}
	<-s.loopDone
}

func (s *windowsChangeSource) messageLoop(ready chan<- error) {
	// The window must be created, serviced and destroyed on one thread.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(s.loopDone)

	wndProc := windows.NewCallback(func(hwnd, message, wParam, lParam uintptr) uintptr {
		switch message {
		case wmClipboardUpdate:
			select {
			case s.ch <- struct{}{}:
			default:
				// A notification is already pending; the dispatcher will
				// observe the newest clipboard state anyway.
			}
			return 0
		case wmClose:
			procDestroyWindow.Call(hwnd)
			return 0
		case wmDestroy:
			procRemoveClipboardFormatListener.Call(hwnd)
			procPostQuitMessage.Call(0)
			return 0
		}
		r, _, _ := procDefWindowProcW.Call(hwnd, message, wParam, lParam)
		return r
	})

	instance, err := windows.GetModuleHandle(nil)
	if err != nil {
		ready <- fmt.Errorf("GetModuleHandle: %w", err)
		return
	}

	className, err := windows.UTF16PtrFromString(listenerClassName)
	if err != nil {
		ready <- err
		return
	}
	wc := wndClassExW{
		size:      uint32(unsafe.Sizeof(wndClassExW{})),
		wndProc:   wndProc,
		instance:  instance,
		className: className,
	}
	if atom, _, callErr := procRegisterClassExW.Call(uintptr(unsafe.Pointer(&wc))); atom == 0 {
		ready <- fmt.Errorf("RegisterClassEx: %v", callErr)
		return
	}

	hwnd, _, callErr := procCreateWindowExW.Call(
		0,
		uintptr(unsafe.Pointer(className)),
		uintptr(unsafe.Pointer(className)),
		0, 0, 0, 0, 0,
		hwndMessage, 0,
		uintptr(instance), 0,
	)
	if hwnd == 0 {
		ready <- fmt.Errorf("CreateWindowEx: %v", callErr)
		return
	}
	s.hwnd = hwnd

	if ok, _, callErr := procAddClipboardFormatListener.Call(hwnd); ok == 0 {
		procDestroyWindow.Call(hwnd)
		ready <- fmt.Errorf("AddClipboardFormatListener: %v", callErr)
		return
	}

	s.logger.Debug("Clipboard listener window registered")
	ready <- nil

	var m msg
	for {
		r, _, _ := procGetMessageW.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0)
		if r == 0 || r == ^uintptr(0) {
			break
		}
		procTranslateMessage.Call(uintptr(unsafe.Pointer(&m)))
		procDispatchMessageW.Call(uintptr(unsafe.Pointer(&m)))
	}
	close(s.ch)
}
