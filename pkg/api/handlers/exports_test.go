package handlers

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plannerhq/vendorbook/pkg/domain"
	"github.com/plannerhq/vendorbook/pkg/export"
)

// waitExportSettled polls until the background build finishes either way.
func waitExportSettled(t *testing.T, env *testEnv, id string) *domain.ExportRecord {
	t.Helper()
	var rec *domain.ExportRecord
	require.Eventually(t, func() bool {
		var err error
		rec, err = env.export.Get(t.Context(), testUserID, id)
		if err != nil {
			return false
		}
		return rec.Status == domain.ExportReady || rec.Status == domain.ExportFailed
	}, 2*time.Second, 10*time.Millisecond)
	return rec
}

// --- CreateCandidates / CreateSuppliers ---

func TestExportHandler_CreateCandidates_Success(t *testing.T) {
	env := newTestEnv(t)
	handler := NewExportHandler(env.export, nil)
	seedCandidate(t, env, testUserID, "flowers@rosebud.test")

	c, rec := newJSONContext(http.MethodPost, "/api/v1/exports/candidates", `{"format":"csv"}`)
	c.Set("user_id", testUserID)

	require.NoError(t, handler.CreateCandidates(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	var resp domain.ExportRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, export.KindCandidates, resp.Kind)
	assert.Equal(t, export.FormatCSV, resp.Format)

	settled := waitExportSettled(t, env, resp.ID)
	assert.Equal(t, domain.ExportReady, settled.Status)
	assert.Equal(t, 1, settled.RowCount)
}

func TestExportHandler_CreateCandidates_DefaultsToCSV(t *testing.T) {
	env := newTestEnv(t)
	handler := NewExportHandler(env.export, nil)

	c, rec := newJSONContext(http.MethodPost, "/api/v1/exports/candidates", `{}`)
	c.Set("user_id", testUserID)

	require.NoError(t, handler.CreateCandidates(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp domain.ExportRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, export.FormatCSV, resp.Format)
}

func TestExportHandler_CreateSuppliers_Success(t *testing.T) {
	env := newTestEnv(t)
	handler := NewExportHandler(env.export, nil)
	seedSupplier(t, env, testUserID, "Rosebud Flowers", "flowers@rosebud.test")

	c, rec := newJSONContext(http.MethodPost, "/api/v1/exports/suppliers", `{"format":"xlsx"}`)
	c.Set("user_id", testUserID)

	require.NoError(t, handler.CreateSuppliers(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp domain.ExportRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, export.KindSuppliers, resp.Kind)

	settled := waitExportSettled(t, env, resp.ID)
	assert.Equal(t, domain.ExportReady, settled.Status)
}

func TestExportHandler_Create_BadFormat(t *testing.T) {
	env := newTestEnv(t)
	handler := NewExportHandler(env.export, nil)

	c, rec := newJSONContext(http.MethodPost, "/api/v1/exports/candidates", `{"format":"pdf"}`)
	c.Set("user_id", testUserID)

	require.NoError(t, handler.CreateCandidates(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "validation_error")
}

// --- Get / List ---

func TestExportHandler_Get_OtherOwner(t *testing.T) {
	env := newTestEnv(t)
	handler := NewExportHandler(env.export, nil)

	other, err := env.export.Create(t.Context(), 2, export.CreateInput{
		Kind:   export.KindCandidates,
		Format: export.FormatCSV,
	})
	require.NoError(t, err)

	c, rec := newJSONContext(http.MethodGet, "/api/v1/exports/"+other.ID, "")
	c.SetParamNames("id")
	c.SetParamValues(other.ID)
	c.Set("user_id", testUserID)

	require.NoError(t, handler.Get(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestExportHandler_List_NewestFirst(t *testing.T) {
	env := newTestEnv(t)
	handler := NewExportHandler(env.export, nil)

	first, err := env.export.Create(t.Context(), testUserID, export.CreateInput{Kind: export.KindCandidates, Format: export.FormatCSV})
	require.NoError(t, err)
	waitExportSettled(t, env, first.ID)
	second, err := env.export.Create(t.Context(), testUserID, export.CreateInput{Kind: export.KindSuppliers, Format: export.FormatCSV})
	require.NoError(t, err)
	waitExportSettled(t, env, second.ID)

	c, rec := newJSONContext(http.MethodGet, "/api/v1/exports", "")
	c.Set("user_id", testUserID)

	require.NoError(t, handler.List(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Exports []domain.ExportRecord `json:"exports"`
		Count   int                   `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Count)
	assert.Equal(t, second.ID, resp.Exports[0].ID)
}

// --- Download ---

func TestExportHandler_Download_ServesFile(t *testing.T) {
	env := newTestEnv(t)
	handler := NewExportHandler(env.export, nil)
	seedCandidate(t, env, testUserID, "flowers@rosebud.test")

	created, err := env.export.Create(t.Context(), testUserID, export.CreateInput{
		Kind:   export.KindCandidates,
		Format: export.FormatCSV,
	})
	require.NoError(t, err)
	settled := waitExportSettled(t, env, created.ID)
	require.Equal(t, domain.ExportReady, settled.Status)

	c, rec := newJSONContext(http.MethodGet, "/api/v1/exports/"+created.ID+"/download", "")
	c.SetParamNames("id")
	c.SetParamValues(created.ID)
	c.Set("user_id", testUserID)

	require.NoError(t, handler.Download(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, rec.Body.String(), "flowers@rosebud.test")
}

func TestExportHandler_Download_NotReady(t *testing.T) {
	env := newTestEnv(t)
	handler := NewExportHandler(env.export, nil)

	// Park a pending record directly so the background build cannot race
	// the assertion.
	pending := &domain.ExportRecord{
		ID:        uuid.NewString(),
		OwnerID:   testUserID,
		Kind:      export.KindCandidates,
		Format:    export.FormatCSV,
		Status:    domain.ExportPending,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}
	require.NoError(t, env.store.CreateExport(t.Context(), pending))

	c, rec := newJSONContext(http.MethodGet, "/api/v1/exports/"+pending.ID+"/download", "")
	c.SetParamNames("id")
	c.SetParamValues(pending.ID)
	c.Set("user_id", testUserID)

	require.NoError(t, handler.Download(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "not ready")
}

func TestExportHandler_Download_Expired(t *testing.T) {
	env := newTestEnv(t)
	handler := NewExportHandler(env.export, nil)

	expired := &domain.ExportRecord{
		ID:        uuid.NewString(),
		OwnerID:   testUserID,
		Kind:      export.KindCandidates,
		Format:    export.FormatCSV,
		Status:    domain.ExportReady,
		FilePath:  "/tmp/long-gone.csv",
		CreatedAt: time.Now().UTC().Add(-48 * time.Hour),
		ExpiresAt: time.Now().UTC().Add(-24 * time.Hour),
	}
	require.NoError(t, env.store.CreateExport(t.Context(), expired))

	c, rec := newJSONContext(http.MethodGet, "/api/v1/exports/"+expired.ID+"/download", "")
	c.SetParamNames("id")
	c.SetParamValues(expired.ID)
	c.Set("user_id", testUserID)

	require.NoError(t, handler.Download(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "expired")
}
