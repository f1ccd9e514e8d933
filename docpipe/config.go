package docpipe

import "log/slog"

// Config configures the PDF intake pipeline.
type Config struct {
	// MaxFileSize is the largest accepted upload (default: 10 MiB).
	MaxFileSize int64 `json:"max_file_size" yaml:"max_file_size"`

	// PreviewChars caps the text preview kept on the Document (default: 2000).
	PreviewChars int `json:"preview_chars" yaml:"preview_chars"`

	Logger *slog.Logger `json:"-" yaml:"-"`
}

func (c *Config) defaults() {
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = 10 << 20
	}
	if c.PreviewChars <= 0 {
		c.PreviewChars = 2000
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
