package api

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/practicehub/practice-server/internal/importer"
	"github.com/practicehub/practice-server/internal/models"
)

const importCSV = "company_name,client_type,email\n" +
	"Acme Ltd,limited_company,accounts@acme.co.uk\n" +
	"Beta Ltd,sole_trader,\n"

// multipartRequest uploads a CSV through the full router as a form file
func (e *testEnv) multipartRequest(t *testing.T, path, fileName, content string) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+e.token)

	rec := httptest.NewRecorder()
	e.s.router.ServeHTTP(rec, req)
	return rec
}

func TestHandlePreviewImport(t *testing.T) {
	env := newTestEnv(t)

	rec := env.multipartRequest(t, "/api/v1/clients/import/preview", "clients.csv", importCSV)
	require.Equal(t, http.StatusOK, rec.Code)

	var result importer.ValidationResult
	decodeBody(t, rec, &result)
	assert.True(t, result.Valid)
	assert.Equal(t, 2, result.TotalRows)
	assert.Equal(t, 2, result.ValidRows)

	// Preview writes nothing
	clients, _, err := env.ts().ListClients(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Empty(t, clients)
}

func TestHandleImportClients(t *testing.T) {
	env := newTestEnv(t)

	rec := env.multipartRequest(t, "/api/v1/clients/import", "clients.csv", importCSV)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Import models.ImportLog          `json:"import"`
		Result importer.ValidationResult `json:"result"`
	}
	decodeBody(t, rec, &resp)
	assert.Equal(t, models.ImportStatusCompleted, resp.Import.Status)
	assert.Equal(t, "clients.csv", resp.Import.FileName)
	assert.Equal(t, 2, resp.Import.ProcessedRows)
	assert.Equal(t, 0, resp.Import.FailedRows)

	clients, total, err := env.ts().ListClients(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	for _, client := range clients {
		assert.Regexp(t, `^CL-\d{3}$`, client.ClientCode)
	}

	t.Run("history", func(t *testing.T) {
		rec := env.request(t, http.MethodGet, "/api/v1/imports/", env.token, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var list struct {
			Imports []models.ImportLog `json:"imports"`
			Total   int64              `json:"total"`
		}
		decodeBody(t, rec, &list)
		assert.EqualValues(t, 1, list.Total)
	})
}

func TestHandleImportClientsRawBody(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/clients/import?file_name=upload.csv", strings.NewReader(importCSV))
	req.Header.Set("Content-Type", "text/csv")
	req.Header.Set("Authorization", "Bearer "+env.token)

	rec := httptest.NewRecorder()
	env.s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Import models.ImportLog `json:"import"`
	}
	decodeBody(t, rec, &resp)
	assert.Equal(t, "upload.csv", resp.Import.FileName)
}

func TestHandleDownloadImportErrors(t *testing.T) {
	env := newTestEnv(t)

	badCSV := "company_name,client_type,email\n" +
		"Acme Ltd,limited_company,not-an-email\n" +
		",limited_company,other@acme.co.uk\n"

	rec := env.multipartRequest(t, "/api/v1/clients/import", "bad.csv", badCSV)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Import models.ImportLog `json:"import"`
	}
	decodeBody(t, rec, &resp)
	assert.Equal(t, models.ImportStatusFailed, resp.Import.Status)

	rec = env.request(t, http.MethodGet, "/api/v1/imports/"+resp.Import.ID.String()+"/errors.csv", env.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Contains(t, body, "row,field,message,value")
	assert.Contains(t, body, "Row 2: Email: is not a valid email address")
	assert.Contains(t, body, "Row 3: Company name: is required")
}

func TestHandleImportEmptyFile(t *testing.T) {
	env := newTestEnv(t)

	rec := env.multipartRequest(t, "/api/v1/clients/import", "empty.csv", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
