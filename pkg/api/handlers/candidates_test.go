package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plannerhq/vendorbook/pkg/candidates"
	"github.com/plannerhq/vendorbook/pkg/domain"
	"github.com/plannerhq/vendorbook/pkg/models"
	"github.com/plannerhq/vendorbook/pkg/scorer"
	"github.com/plannerhq/vendorbook/pkg/suppliers"
)

func seedCandidate(t *testing.T, env *testEnv, ownerID int, email string) *domain.SupplierCandidate {
	t.Helper()
	c, _, err := env.candidates.RecordSighting(t.Context(), ownerID, email, "", "Vendor inquiry", domain.SourceBackfill, time.Now().UTC())
	require.NoError(t, err)
	return c
}

// --- List / Counts / Get ---

func TestCandidateHandler_List_Success(t *testing.T) {
	env := newTestEnv(t)
	handler := NewCandidateHandler(env.candidates, env.enrichment)
	seedCandidate(t, env, testUserID, "flowers@rosebud.test")
	seedCandidate(t, env, testUserID, "booking@brasshouse.test")
	seedCandidate(t, env, 2, "other@owner.test") // must not leak

	c, rec := newJSONContext(http.MethodGet, "/api/v1/candidates", "")
	c.Set("user_id", testUserID)

	require.NoError(t, handler.List(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Candidates []domain.SupplierCandidate `json:"candidates"`
		Total      int                        `json:"total"`
		Count      int                        `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Total)
	assert.Len(t, resp.Candidates, 2)
}

func TestCandidateHandler_List_StatusFilter(t *testing.T) {
	env := newTestEnv(t)
	handler := NewCandidateHandler(env.candidates, env.enrichment)
	seedCandidate(t, env, testUserID, "flowers@rosebud.test")
	dismissed := seedCandidate(t, env, testUserID, "noreply@spam.test")
	_, err := env.candidates.Dismiss(t.Context(), testUserID, dismissed.ID)
	require.NoError(t, err)

	c, rec := newJSONContext(http.MethodGet, "/api/v1/candidates?status=dismissed", "")
	c.Set("user_id", testUserID)

	require.NoError(t, handler.List(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Candidates []domain.SupplierCandidate `json:"candidates"`
		Total      int                        `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Total)
	require.Len(t, resp.Candidates, 1)
	assert.Equal(t, domain.CandidateStatusDismissed, resp.Candidates[0].Status)
}

func TestCandidateHandler_Counts_Success(t *testing.T) {
	env := newTestEnv(t)
	handler := NewCandidateHandler(env.candidates, env.enrichment)
	seedCandidate(t, env, testUserID, "flowers@rosebud.test")
	seedCandidate(t, env, testUserID, "booking@brasshouse.test")

	c, rec := newJSONContext(http.MethodGet, "/api/v1/candidates/counts", "")
	c.Set("user_id", testUserID)

	require.NoError(t, handler.Counts(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp["new"])
}

func TestCandidateHandler_Get_NotFound(t *testing.T) {
	env := newTestEnv(t)
	handler := NewCandidateHandler(env.candidates, env.enrichment)

	c, rec := newJSONContext(http.MethodGet, "/api/v1/candidates/missing", "")
	c.SetParamNames("id")
	c.SetParamValues("missing")
	c.Set("user_id", testUserID)

	require.NoError(t, handler.Get(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// --- Accept / Dismiss / Merge ---

func TestCandidateHandler_Accept_Success(t *testing.T) {
	env := newTestEnv(t)
	handler := NewCandidateHandler(env.candidates, env.enrichment)
	candidate := seedCandidate(t, env, testUserID, "flowers@rosebud.test")

	body := `{"name":"Rosebud Flowers","categories":["florals"],"notes":"met at the expo"}`
	c, rec := newJSONContext(http.MethodPost, "/api/v1/candidates/"+candidate.ID+"/accept", body)
	c.SetParamNames("id")
	c.SetParamValues(candidate.ID)
	c.Set("user_id", testUserID)

	require.NoError(t, handler.Accept(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp domain.SupplierCandidate
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, domain.CandidateStatusAccepted, resp.Status)
	require.NotNil(t, resp.SupplierID)

	sup, err := env.suppliers.Get(t.Context(), testUserID, *resp.SupplierID)
	require.NoError(t, err)
	assert.Equal(t, "Rosebud Flowers", sup.Name)
}

func TestCandidateHandler_Accept_AlreadyAccepted(t *testing.T) {
	env := newTestEnv(t)
	handler := NewCandidateHandler(env.candidates, env.enrichment)
	candidate := seedCandidate(t, env, testUserID, "flowers@rosebud.test")
	_, err := env.candidates.Accept(t.Context(), testUserID, candidate.ID, candidates.AcceptInput{})
	require.NoError(t, err)

	c, rec := newJSONContext(http.MethodPost, "/api/v1/candidates/"+candidate.ID+"/accept", `{}`)
	c.SetParamNames("id")
	c.SetParamValues(candidate.ID)
	c.Set("user_id", testUserID)

	require.NoError(t, handler.Accept(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCandidateHandler_Dismiss_Success(t *testing.T) {
	env := newTestEnv(t)
	handler := NewCandidateHandler(env.candidates, env.enrichment)
	candidate := seedCandidate(t, env, testUserID, "noreply@spam.test")

	c, rec := newJSONContext(http.MethodPost, "/api/v1/candidates/"+candidate.ID+"/dismiss", "")
	c.SetParamNames("id")
	c.SetParamValues(candidate.ID)
	c.Set("user_id", testUserID)

	require.NoError(t, handler.Dismiss(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp domain.SupplierCandidate
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, domain.CandidateStatusDismissed, resp.Status)
}

func TestCandidateHandler_Merge_Success(t *testing.T) {
	env := newTestEnv(t)
	handler := NewCandidateHandler(env.candidates, env.enrichment)
	candidate := seedCandidate(t, env, testUserID, "hello@rosebudflowers.test")

	existing, err := env.suppliers.Create(t.Context(), testUserID, suppliers.CreateInput{
		Name:  "Rosebud Flowers",
		Email: "flowers@rosebud.test",
	})
	require.NoError(t, err)

	body := `{"supplier_id":` + strconv.Itoa(existing.ID) + `}`
	c, rec := newJSONContext(http.MethodPost, "/api/v1/candidates/"+candidate.ID+"/merge", body)
	c.SetParamNames("id")
	c.SetParamValues(candidate.ID)
	c.Set("user_id", testUserID)

	require.NoError(t, handler.Merge(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp domain.SupplierCandidate
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, domain.CandidateStatusMerged, resp.Status)
	require.NotNil(t, resp.SupplierID)
	assert.Equal(t, existing.ID, *resp.SupplierID)
}

func TestCandidateHandler_Merge_MissingSupplierID(t *testing.T) {
	env := newTestEnv(t)
	handler := NewCandidateHandler(env.candidates, env.enrichment)
	candidate := seedCandidate(t, env, testUserID, "hello@rosebudflowers.test")

	c, rec := newJSONContext(http.MethodPost, "/api/v1/candidates/"+candidate.ID+"/merge", `{}`)
	c.SetParamNames("id")
	c.SetParamValues(candidate.ID)
	c.Set("user_id", testUserID)

	require.NoError(t, handler.Merge(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// --- Bulk ---

func TestCandidateHandler_BulkDismiss_PartialFailure(t *testing.T) {
	env := newTestEnv(t)
	handler := NewCandidateHandler(env.candidates, env.enrichment)
	c1 := seedCandidate(t, env, testUserID, "one@vendors.test")
	c2 := seedCandidate(t, env, testUserID, "two@vendors.test")

	body := `{"candidate_ids":["` + c1.ID + `","` + c2.ID + `","missing"]}`
	c, rec := newJSONContext(http.MethodPost, "/api/v1/candidates/bulk-dismiss", body)
	c.Set("user_id", testUserID)

	require.NoError(t, handler.BulkDismiss(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Dismissed int `json:"dismissed"`
		Failed    []struct {
			ID    string `json:"id"`
			Error string `json:"error"`
		} `json:"failed"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Dismissed)
	require.Len(t, resp.Failed, 1)
	assert.Equal(t, "missing", resp.Failed[0].ID)
}

func TestCandidateHandler_BulkAccept_EmptyIDs(t *testing.T) {
	env := newTestEnv(t)
	handler := NewCandidateHandler(env.candidates, env.enrichment)

	c, rec := newJSONContext(http.MethodPost, "/api/v1/candidates/bulk-accept", `{"candidate_ids":[]}`)
	c.Set("user_id", testUserID)

	require.NoError(t, handler.BulkAccept(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "validation_error", resp.Error)
}

// --- Enrich ---

func TestCandidateHandler_Enrich_Success(t *testing.T) {
	env := newTestEnv(t)
	handler := NewCandidateHandler(env.candidates, env.enrichment)
	candidate := seedCandidate(t, env, testUserID, "info@blooms.test")
	env.classifier.Script(candidate.Email, scorer.Classification{
		IsRelevant:      true,
		Confidence:      0.92,
		SuggestedName:   "Bloom & Co Florals",
		Categories:      []string{"florals"},
		PrimaryCategory: "florals",
	})

	body := `{"candidate_ids":["` + candidate.ID + `"],"event_context":"June garden wedding"}`
	c, rec := newJSONContext(http.MethodPost, "/api/v1/candidates/enrich", body)
	c.Set("user_id", testUserID)

	require.NoError(t, handler.Enrich(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Enriched int `json:"enriched"`
		Imported int `json:"imported"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Enriched)
	assert.Equal(t, 1, resp.Imported)
}
