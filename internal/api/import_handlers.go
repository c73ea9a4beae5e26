package api

import (
	"encoding/csv"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/practicehub/practice-server/internal/storage"
)

// importFile pulls the uploaded CSV out of the request. Multipart
// uploads use the "file" field; a text/csv body is accepted as-is.
func (s *RESTServer) importFile(w http.ResponseWriter, r *http.Request) (io.Reader, string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.Import.MaxFileSize)

	contentType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if contentType == "multipart/form-data" {
		if err := r.ParseMultipartForm(s.config.Import.MaxFileSize); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid multipart body")
			return nil, "", false
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "missing file field")
			return nil, "", false
		}
		return file, header.Filename, true
	}

	name := r.URL.Query().Get("file_name")
	if name == "" {
		name = "import.csv"
	}
	return r.Body, name, true
}

// HandlePreviewImport validates an uploaded client CSV without writing
// anything
func (s *RESTServer) HandlePreviewImport(w http.ResponseWriter, r *http.Request) {
	ts, ok := s.tenantStore(w, r)
	if !ok {
		return
	}

	file, _, ok := s.importFile(w, r)
	if !ok {
		return
	}

	result, err := s.importer.Preview(r.Context(), ts, file)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, result)
}

// HandleImportClients validates and inserts an uploaded client CSV
func (s *RESTServer) HandleImportClients(w http.ResponseWriter, r *http.Request) {
	ts, ok := s.tenantStore(w, r)
	if !ok {
		return
	}

	file, fileName, ok := s.importFile(w, r)
	if !ok {
		return
	}

	importLog, result, err := s.importer.Commit(r.Context(), ts, fileName, file)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.requestSync(r, ts.TenantID())
	s.invalidateSummary(ts.TenantID())

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"import": importLog,
		"result": result,
	})
}

// HandleListImportLogs lists the tenant's import history
func (s *RESTServer) HandleListImportLogs(w http.ResponseWriter, r *http.Request) {
	ts, ok := s.tenantStore(w, r)
	if !ok {
		return
	}
	limit, offset := pagination(r)

	logs, total, err := ts.ListImportLogs(r.Context(), limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"imports": logs,
		"total":   total,
	})
}

// HandleGetImportLog gets one import log
func (s *RESTServer) HandleGetImportLog(w http.ResponseWriter, r *http.Request) {
	ts, ok := s.tenantStore(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid import id")
		return
	}

	importLog, err := ts.GetImportLog(r.Context(), id)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "import not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, importLog)
}

// HandleDownloadImportErrors streams an import's row errors as CSV
func (s *RESTServer) HandleDownloadImportErrors(w http.ResponseWriter, r *http.Request) {
	ts, ok := s.tenantStore(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid import id")
		return
	}

	importLog, err := ts.GetImportLog(r.Context(), id)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "import not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="import-errors-%s.csv"`, id))

	writer := csv.NewWriter(w)
	writer.Write([]string{"row", "field", "message", "value"})
	for _, e := range importLog.Errors {
		writer.Write([]string{strconv.Itoa(e.Row), e.Field, e.Message, e.Value})
	}
	writer.Flush()
}
