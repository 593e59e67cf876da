package export

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fredcamaral/mdlive/internal/domain/entities"
)

const testSVG = `<svg xmlns="http://www.w3.org/2000/svg" width="100" height="50" viewBox="0 0 100 50">` +
	`<rect x="25" y="10" width="50" height="30" fill="#ff0000"/></svg>`

// stubEngine returns testSVG for any source without "FAIL"
type stubEngine struct {
	mu      sync.Mutex
	sources []string
	themes  []entities.Theme
}

func (s *stubEngine) Render(ctx context.Context, id, source string, theme entities.Theme) (string, error) {
	s.mu.Lock()
	s.sources = append(s.sources, source)
	s.themes = append(s.themes, theme)
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.Contains(source, "FAIL") {
		return "", errors.New("Parse error on line 1")
	}
	return testSVG, nil
}

func (s *stubEngine) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sources)
}

func decodeDataURL(t *testing.T, url string) (string, []byte) {
	t.Helper()
	header, payload, ok := strings.Cut(url, ";base64,")
	require.True(t, ok, "not a base64 data URL")
	require.True(t, strings.HasPrefix(header, "data:"))
	data, err := base64.StdEncoding.DecodeString(payload)
	require.NoError(t, err)
	return strings.TrimPrefix(header, "data:"), data
}

func decodeImage(t *testing.T, data []byte) (image.Image, string) {
	t.Helper()
	img, format, err := image.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img, format
}
