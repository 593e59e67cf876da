// Package browser opens the preview page in a local browser.
package browser

import (
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/fredcamaral/mdlive/internal/domain/ports"
)

// Launcher implements ports.BrowserLauncher
type Launcher struct {
	browsers  []Browser
	preferred string

	lookPath func(string) (string, error)
	start    func(name string, args ...string) error
}

// Browser is one way of opening a URL on this platform
type Browser struct {
	Name    string
	Command string
	Args    func(url string) []string
}

var _ ports.BrowserLauncher = (*Launcher)(nil)

// NewLauncher creates a launcher. preferred names a browser ("chrome",
// "firefox", ...); empty or unknown names use the platform default.
func NewLauncher(preferred string) *Launcher {
	return &Launcher{
		browsers:  detectBrowsers(runtime.GOOS),
		preferred: strings.ToLower(strings.TrimSpace(preferred)),
		lookPath:  exec.LookPath,
		start:     startDetached,
	}
}

// Launch opens url unless noOpen is set
func (l *Launcher) Launch(url string, noOpen bool) error {
	if noOpen {
		return nil
	}

	browser, err := l.selectBrowser()
	if err != nil {
		return fmt.Errorf("browser selection: %w", err)
	}

	if err := l.start(browser.Command, browser.Args(url)...); err != nil {
		return fmt.Errorf("launching %s: %w", browser.Name, err)
	}
	return nil
}

// Detect reports the browser Launch would use
func (l *Launcher) Detect() (string, error) {
	browser, err := l.selectBrowser()
	if err != nil {
		return "", err
	}
	return browser.Name, nil
}

// selectBrowser picks the preferred browser when it is installed,
// otherwise the first candidate whose command is on PATH
func (l *Launcher) selectBrowser() (*Browser, error) {
	if len(l.browsers) == 0 {
		return nil, errors.New("no browsers available")
	}

	if l.preferred != "" {
		for i := range l.browsers {
			b := &l.browsers[i]
			if strings.EqualFold(b.Name, l.preferred) && l.available(b) {
				return b, nil
			}
		}
	}

	for i := range l.browsers {
		if l.available(&l.browsers[i]) {
			return &l.browsers[i], nil
		}
	}
	return nil, errors.New("no supported browsers found on this system")
}

func (l *Launcher) available(b *Browser) bool {
	_, err := l.lookPath(b.Command)
	return err == nil
}

func startDetached(name string, args ...string) error {
	cmd := exec.Command(name, args...) // #nosec G204 - command comes from the fixed browser table
	if err := cmd.Start(); err != nil {
		return err
	}
	// the browser outlives the preview server
	go func() { _ = cmd.Wait() }()
	return nil
}

func urlOnly(url string) []string { return []string{url} }

func macApp(app string) func(string) []string {
	return func(url string) []string { return []string{"-a", app, url} }
}

func windowsStart(target string) func(string) []string {
	return func(url string) []string {
		if target == "" {
			return []string{"/c", "start", "", url}
		}
		return []string{"/c", "start", target, url}
	}
}

// detectBrowsers lists candidates for goos in preference order
func detectBrowsers(goos string) []Browser {
	switch goos {
	case "darwin":
		return []Browser{
			{Name: "default", Command: "open", Args: urlOnly},
			{Name: "chrome", Command: "open", Args: macApp("Google Chrome")},
			{Name: "safari", Command: "open", Args: macApp("Safari")},
			{Name: "firefox", Command: "open", Args: macApp("Firefox")},
		}
	case "linux", "freebsd", "openbsd", "netbsd":
		return []Browser{
			{Name: "default", Command: "xdg-open", Args: urlOnly},
			{Name: "chrome", Command: "google-chrome", Args: urlOnly},
			{Name: "chromium", Command: "chromium", Args: urlOnly},
			{Name: "firefox", Command: "firefox", Args: urlOnly},
		}
	case "windows":
		return []Browser{
			{Name: "default", Command: "cmd", Args: windowsStart("")},
			{Name: "chrome", Command: "cmd", Args: windowsStart("chrome")},
			{Name: "edge", Command: "cmd", Args: windowsStart("msedge")},
			{Name: "firefox", Command: "cmd", Args: windowsStart("firefox")},
		}
	default:
		return nil
	}
}
