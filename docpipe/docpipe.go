// Package docpipe is the intake gate for policy documents. It accepts only
// real, intact PDFs under the size cap, and does so before anything is sent
// over the network.
//
// Usage:
//
//	pipe := docpipe.New(docpipe.Config{MaxFileSize: cfg.MaxUploadBytes})
//	doc, err := pipe.ReadUpload(part, part.FileName())
//	if apperr.Is(err, apperr.KindUpload) { ... }
package docpipe

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/hazyhaar/polizas/apperr"
	"github.com/hazyhaar/polizas/horosafe"
)

// MIMEPDF is the only accepted content type.
const MIMEPDF = "application/pdf"

// Pipeline validates uploads.
type Pipeline struct {
	cfg Config
}

// New creates a Pipeline with the given configuration.
func New(cfg Config) *Pipeline {
	cfg.defaults()
	return &Pipeline{cfg: cfg}
}

// MaxFileSize returns the effective upload cap.
func (p *Pipeline) MaxFileSize() int64 { return p.cfg.MaxFileSize }

// ReadUpload reads at most MaxFileSize bytes from r and accepts them.
func (p *Pipeline) ReadUpload(r io.Reader, filename string) (*Document, error) {
	data, err := horosafe.LimitedReadAll(r, p.cfg.MaxFileSize)
	if errors.Is(err, horosafe.ErrTooLarge) {
		return nil, p.tooLarge(err)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpload, "docpipe.read", "no se pudo leer el archivo", err)
	}
	return p.Accept(filename, data)
}

// Accept checks that data is a PDF within limits and inspects it. Every
// rejection is an apperr.KindUpload error.
func (p *Pipeline) Accept(filename string, data []byte) (*Document, error) {
	const op = "docpipe.accept"
	name := horosafe.SafeFilename(filename)

	if strings.ToLower(filepath.Ext(name)) != ".pdf" {
		return nil, apperr.New(apperr.KindUpload, op, "solo se aceptan archivos PDF")
	}
	if len(data) == 0 {
		return nil, apperr.New(apperr.KindUpload, op, "el archivo está vacío")
	}
	if int64(len(data)) > p.cfg.MaxFileSize {
		return nil, p.tooLarge(fmt.Errorf("%d bytes", len(data)))
	}
	mt := mimetype.Detect(data)
	if !mt.Is(MIMEPDF) {
		return nil, apperr.Wrap(apperr.KindUpload, op, "solo se aceptan archivos PDF",
			fmt.Errorf("detected %s", mt.String()))
	}

	info, err := inspectPDF(data, p.cfg.PreviewChars)
	if err != nil {
		p.cfg.Logger.Warn("docpipe: pdf rejected", "filename", name, "size", len(data), "error", err)
		msg := "el archivo PDF está dañado"
		if strings.Contains(strings.ToLower(err.Error()), "encrypt") {
			msg = "el archivo PDF está protegido con contraseña"
		}
		return nil, apperr.Wrap(apperr.KindUpload, op, msg, err)
	}

	sum := sha256.Sum256(data)
	doc := &Document{
		Filename:   name,
		Size:       int64(len(data)),
		MIME:       MIMEPDF,
		Pages:      info.pages,
		SHA256:     hex.EncodeToString(sum[:]),
		Preview:    truncateRunes(info.text, p.cfg.PreviewChars),
		Quality:    info.quality,
		AcceptedAt: time.Now().UTC(),
		Data:       data,
	}
	p.cfg.Logger.Debug("docpipe: pdf accepted", "filename", name, "pages", doc.Pages, "size", doc.Size, "scanned", info.quality.Scanned())
	return doc, nil
}

func (p *Pipeline) tooLarge(cause error) error {
	return apperr.Wrap(apperr.KindUpload, "docpipe.accept",
		fmt.Sprintf("el archivo supera el tamaño máximo de %d MB", p.cfg.MaxFileSize>>20), cause)
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
