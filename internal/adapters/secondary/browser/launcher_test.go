package browser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLauncher resolves only the given commands and records starts
func fakeLauncher(preferred string, installed ...string) (*Launcher, *[][]string) {
	var started [][]string
	l := NewLauncher(preferred)
	l.browsers = detectBrowsers("linux")
	l.lookPath = func(cmd string) (string, error) {
		for _, c := range installed {
			if c == cmd {
				return "/usr/bin/" + cmd, nil
			}
		}
		return "", errors.New("not found")
	}
	l.start = func(name string, args ...string) error {
		started = append(started, append([]string{name}, args...))
		return nil
	}
	return l, &started
}

func TestLauncherLaunch(t *testing.T) {
	t.Run("noOpen skips everything", func(t *testing.T) {
		l, started := fakeLauncher("")
		require.NoError(t, l.Launch("http://localhost:4400", true))
		assert.Empty(t, *started)
	})

	t.Run("platform default", func(t *testing.T) {
		l, started := fakeLauncher("", "xdg-open", "firefox")
		require.NoError(t, l.Launch("http://localhost:4400", false))
		assert.Equal(t, [][]string{{"xdg-open", "http://localhost:4400"}}, *started)
	})

	t.Run("preferred browser", func(t *testing.T) {
		l, started := fakeLauncher("Firefox", "xdg-open", "firefox")
		require.NoError(t, l.Launch("http://localhost:4400", false))
		assert.Equal(t, [][]string{{"firefox", "http://localhost:4400"}}, *started)
	})

	t.Run("preferred but missing falls back", func(t *testing.T) {
		l, started := fakeLauncher("chromium", "xdg-open")
		require.NoError(t, l.Launch("http://localhost:4400", false))
		assert.Equal(t, "xdg-open", (*started)[0][0])
	})

	t.Run("nothing installed", func(t *testing.T) {
		l, _ := fakeLauncher("")
		err := l.Launch("http://localhost:4400", false)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "browser selection")
	})

	t.Run("start failure", func(t *testing.T) {
		l, _ := fakeLauncher("", "xdg-open")
		l.start = func(string, ...string) error { return errors.New("exec format error") }
		err := l.Launch("http://localhost:4400", false)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "launching default")
	})
}

func TestLauncherDetect(t *testing.T) {
	l, _ := fakeLauncher("", "google-chrome")
	name, err := l.Detect()
	require.NoError(t, err)
	assert.Equal(t, "chrome", name)

	empty := &Launcher{}
	_, err = empty.Detect()
	assert.EqualError(t, err, "no browsers available")
}

func TestDetectBrowsers(t *testing.T) {
	tests := []struct {
		goos    string
		command string
		args    []string
	}{
		{"darwin", "open", []string{"u"}},
		{"linux", "xdg-open", []string{"u"}},
		{"windows", "cmd", []string{"/c", "start", "", "u"}},
	}
	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			browsers := detectBrowsers(tt.goos)
			require.NotEmpty(t, browsers)
			assert.Equal(t, "default", browsers[0].Name)
			assert.Equal(t, tt.command, browsers[0].Command)
			assert.Equal(t, tt.args, browsers[0].Args("u"))
		})
	}

	assert.Empty(t, detectBrowsers("plan9"))
	assert.Equal(t, []string{"-a", "Safari", "u"}, detectBrowsers("darwin")[2].Args("u"))
}
