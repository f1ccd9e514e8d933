package server

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/hazyhaar/polizas/apperr"
	"github.com/hazyhaar/polizas/wizard"
)

// multipartMemory is how much of a multipart body is held in memory before
// parts spill to temporary files.
const multipartMemory = 32 << 20

type batchResponse struct {
	Items  []wizard.BatchItem `json:"items"`
	Total  int                `json:"total"`
	OK     int                `json:"ok"`
	Failed int                `json:"failed"`
}

// uploadedFiles parses the multipart body and returns its "file" parts.
func (s *Server) uploadedFiles(r *http.Request) ([]*multipart.FileHeader, error) {
	const op = "server.upload"
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, apperr.Wrap(apperr.KindUpload, op, "la carga supera el tamaño máximo permitido", err)
		}
		return nil, apperr.Wrap(apperr.KindUpload, op, "seleccione un archivo PDF", err)
	}
	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		return nil, apperr.New(apperr.KindUpload, op, "seleccione un archivo PDF")
	}
	return files, nil
}

func (s *Server) handleProcessDocuments(w http.ResponseWriter, r *http.Request) {
	headers, err := s.uploadedFiles(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer r.MultipartForm.RemoveAll()
	if len(headers) > s.cfg.MaxBatchFiles {
		s.writeError(w, r, apperr.New(apperr.KindUpload, "server.process_documents",
			fmt.Sprintf("se admiten hasta %d archivos por carga", s.cfg.MaxBatchFiles)))
		return
	}

	files := make([]wizard.BatchFile, 0, len(headers))
	for _, h := range headers {
		f, err := h.Open()
		if err != nil {
			s.writeError(w, r, apperr.Wrap(apperr.KindUpload, "server.process_documents", "no se pudo leer el archivo", err))
			return
		}
		defer f.Close()
		files = append(files, wizard.BatchFile{Filename: h.Filename, Reader: f})
	}

	items, err := s.cfg.Wizards.ProcessBatch(r.Context(), callerFrom(r.Context()), files)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := batchResponse{Items: items, Total: len(items)}
	for _, it := range items {
		if it.OK() {
			resp.OK++
		} else {
			resp.Failed++
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
