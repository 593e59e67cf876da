package ports

// BrowserLauncher opens the preview in a local browser
type BrowserLauncher interface {
	Launch(url string, noOpen bool) error
	Detect() (string, error)
}
