package wizard

import (
	"context"
	"io"

	"github.com/hazyhaar/polizas/apperr"
	"github.com/hazyhaar/polizas/docpipe"
	"github.com/hazyhaar/polizas/extraction"
)

// BatchFile is one file of a batch.
type BatchFile struct {
	Filename string
	Reader   io.Reader
}

// BatchItem is the outcome for one file. Document is nil when the file was
// rejected at intake; Result is then nil too.
type BatchItem struct {
	Filename string             `json:"filename"`
	Document *docpipe.Document  `json:"document,omitempty"`
	Result   *extraction.Result `json:"result,omitempty"`
	Error    string             `json:"error,omitempty"`
	Kind     apperr.Kind        `json:"kind,omitempty"`
}

// OK reports whether the file was accepted and extracted.
func (b BatchItem) OK() bool {
	return b.Error == "" && b.Result != nil && !b.Result.Failed
}

// ProcessBatch accepts and extracts files one after another. Each file is
// independent: a rejected or failed file does not stop the others. Only an
// authentication failure or a cancelled ctx ends the loop early.
func (s *Service) ProcessBatch(ctx context.Context, c Caller, files []BatchFile) ([]BatchItem, error) {
	items := make([]BatchItem, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return items, apperr.Wrap(apperr.KindNetwork, "wizard.batch", "la operación fue cancelada", err)
		}
		item := BatchItem{Filename: f.Filename}

		doc, err := s.cfg.Pipeline.ReadUpload(f.Reader, f.Filename)
		if err != nil {
			item.Error, item.Kind = apperr.UserMessage(err), apperr.KindOf(err)
			items = append(items, item)
			s.record(ctx, c, "", "batch_item", nil, err, f.Filename)
			continue
		}
		item.Filename = doc.Filename
		item.Document = doc

		res, err := s.process(ctx, c, doc)
		if err != nil {
			return items, err
		}
		item.Result = &res
		if res.Failed {
			item.Error, item.Kind = res.Error, apperr.KindProcessing
		}
		items = append(items, item)
		s.record(ctx, c, "", "batch_item", nil, nil, doc.Filename)
	}
	return items, nil
}
