// Package systray shows the agent in the notification area.
package systray

import (
	"log/slog"
	"os/exec"
	"runtime"
	"sync"

	"github.com/getlantern/systray"
)

const appTitle = "SmartAnyChat"

// Manager manages the system tray icon and menu
type Manager struct {
	settingsURL string
	iconData    []byte
	onClear     func()
	logger      *slog.Logger

	quit     chan struct{}
	quitOnce sync.Once
}

// NewManager creates a tray manager. settingsURL may be empty when the
// settings server is disabled; onClear is called from the menu goroutine.
func NewManager(settingsURL string, iconData []byte, onClear func(), logger *slog.Logger) *Manager {
	return &Manager{
		settingsURL: settingsURL,
		iconData:    iconData,
		onClear:     onClear,
		logger:      logger,
		quit:        make(chan struct{}),
	}
}

// Run starts the system tray. It blocks and must be called from the main
// goroutine.
func (m *Manager) Run() {
	systray.Run(m.onReady, m.onExit)
}

// Stop stops the system tray
func (m *Manager) Stop() {
	systray.Quit()
}

// WaitForQuit returns a channel that will be closed when user clicks Quit
func (m *Manager) WaitForQuit() <-chan struct{} {
	return m.quit
}

// SetStatus shows the agent status in the tooltip
func (m *Manager) SetStatus(status string) {
	systray.SetTooltip(tooltip(status))
}

func tooltip(status string) string {
	if status == "" || status == "idle" {
		return appTitle + " - ready"
	}
	return appTitle + " - " + status
}

// onReady is called when the systray is ready
func (m *Manager) onReady() {
	if len(m.iconData) > 0 {
		systray.SetIcon(m.iconData)
	}

	systray.SetTitle(appTitle)
	systray.SetTooltip(tooltip(""))

	mSettings := systray.AddMenuItem("Open settings", "Open the settings page in the browser")
	if m.settingsURL == "" {
		mSettings.Disable()
	}
	mClear := systray.AddMenuItem("Clear conversation", "Forget the conversation history")
	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Quit", "Exit "+appTitle)

	go func() {
		for {
			select {
			case <-mSettings.ClickedCh:
				m.openSettings()
			case <-mClear.ClickedCh:
				if m.onClear != nil {
					m.onClear()
				}
			case <-mQuit.ClickedCh:
				m.logger.Info("User requested quit from system tray")
				m.quitOnce.Do(func() { close(m.quit) })
				systray.Quit()
				return
			}
		}
	}()
}

// onExit is called when the systray is exiting
func (m *Manager) onExit() {
	m.logger.Info("System tray exited")
}

// openSettings opens the settings page in the default browser
func (m *Manager) openSettings() {
	m.logger.Info("Opening settings", "url", m.settingsURL)

	cmd, ok := browserCommand(runtime.GOOS, m.settingsURL)
	if !ok {
		m.logger.Error("Unsupported platform for opening browser", "platform", runtime.GOOS)
		return
	}
	if err := cmd.Start(); err != nil {
		m.logger.Error("Failed to open settings", "error", err)
	}
}

func browserCommand(goos, url string) (*exec.Cmd, bool) {
	switch goos {
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url), true
	case "darwin":
		return exec.Command("open", url), true
	case "linux", "freebsd", "openbsd":
		return exec.Command("xdg-open", url), true
	}
	return nil, false
}
