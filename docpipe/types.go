package docpipe

import "time"

// Document is an accepted policy PDF, held in memory until the wizard that
// owns it is reset or discarded.
type Document struct {
	Filename   string    `json:"filename"`
	Size       int64     `json:"size"`
	MIME       string    `json:"mime"`
	Pages      int       `json:"pages"`
	SHA256     string    `json:"sha256"`
	Preview    string    `json:"preview,omitempty"`
	Quality    *Quality  `json:"quality,omitempty"`
	AcceptedAt time.Time `json:"acceptedAt"`

	Data []byte `json:"-"`
}
