package form

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microsite/internal/analytics"
	"microsite/internal/analytics/analyticstest"
	"microsite/internal/logger"
	"microsite/pkg/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupRouter(endpoint Endpoint) (*gin.Engine, *analyticstest.Recorder) {
	rec := analyticstest.NewRecorder()
	sink := rec.Sink()
	pipeline := NewPipeline(EarlyAccessSchema.Name, endpoint, sink, logger.NopLogger(), 0)

	router := gin.New()
	router.Use(middleware.RequestIDMiddleware(), analytics.PageMiddleware())
	NewHandler(EarlyAccessSchema, pipeline, sink, logger.NopLogger()).RegisterRoutes(router)
	return router, rec
}

func doJSON(router http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.HeaderSessionID, "sess-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSubmitHandler_Invalid(t *testing.T) {
	router, rec := setupRouter(NewSimulatedEndpoint(0, NeverFail{}))

	w := doJSON(router, "/api/v1/forms/early-access", map[string]interface{}{
		"company": "A",
		"email":   "bad",
		"phone":   "",
		"privacy": false,
	})

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var resp struct {
		IsValid  bool                   `json:"isValid"`
		Errors   []FieldError           `json:"errors"`
		Display  map[string]RegionState `json:"display"`
		Focus    string                 `json:"focus"`
		Announce string                 `json:"announce"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.IsValid)
	assert.Len(t, resp.Errors, 3)
	assert.Equal(t, "company", resp.Focus)
	assert.Equal(t, AnnounceInvalid, resp.Announce)
	assert.Equal(t, MsgPrivacyRequired, resp.Display["privacy-error"].Text)
	assert.Empty(t, rec.Events(), "invalid forms are not submitted")
}

func TestSubmitHandler_SuccessTracksConversion(t *testing.T) {
	router, rec := setupRouter(NewSimulatedEndpoint(0, NeverFail{}))

	w := doJSON(router, "/api/v1/forms/early-access", map[string]interface{}{
		"company": "Acme",
		"email":   "ops@acme.io",
		"privacy": true,
	})

	require.Equal(t, http.StatusOK, w.Code)
	var resp SuccessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "success-modal", resp.Modal)
	assert.Equal(t, AnnounceSubmitted, resp.Announce)
	assert.NotEmpty(t, resp.SubmissionID)

	conversions := rec.Named(analytics.EventConversion)
	require.Len(t, conversions, 1)
	assert.Equal(t, "early_access_signup", conversions[0].Properties["type"])
	assert.Equal(t, "Acme", conversions[0].Properties["company"])
	assert.Equal(t, "not_specified", conversions[0].Properties["budget"])

	names := []string{}
	for _, e := range rec.Events() {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{analytics.EventFormSubmission, analytics.EventConversion}, names)
}

func TestSubmitHandler_FormEncoded(t *testing.T) {
	router, rec := setupRouter(NewSimulatedEndpoint(0, NeverFail{}))

	form := url.Values{"company": {"Acme"}, "email": {"ops@acme.io"}, "budget": {"50k+"}, "privacy": {"on"}}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/forms/early-access", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	conversions := rec.Named(analytics.EventConversion)
	require.Len(t, conversions, 1)
	assert.Equal(t, "50k+", conversions[0].Properties["budget"])
}

func TestSubmitHandler_Failure(t *testing.T) {
	router, rec := setupRouter(NewSimulatedEndpoint(0, AlwaysFail{}))

	w := doJSON(router, "/api/v1/forms/early-access", map[string]interface{}{
		"company": "Acme",
		"email":   "ops@acme.io",
		"privacy": "on",
	})

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	var resp FailureResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, MsgServerUnavailable, resp.Error)
	assert.Equal(t, "SERVICE_UNAVAILABLE", resp.ErrorCode)
	assert.Equal(t, AlertSubmitFailed, resp.Alert)
	assert.Equal(t, AnnounceSubmitFailed, resp.Announce)
	assert.Empty(t, rec.Named(analytics.EventConversion))
	assert.Len(t, rec.Named(analytics.EventFormSubmission), 1)
}

func TestSubmitHandler_MalformedBody(t *testing.T) {
	router, _ := setupRouter(NewSimulatedEndpoint(0, NeverFail{}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/forms/early-access", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestValidateFieldHandler(t *testing.T) {
	router, _ := setupRouter(NewSimulatedEndpoint(0, NeverFail{}))

	tests := []struct {
		name      string
		field     string
		body      map[string]interface{}
		wantValid bool
		wantMsg   string
		wantShown bool
	}{
		{"blur invalid email", "email", map[string]interface{}{"value": "bad"}, false, MsgEmailInvalid, true},
		{"edit clears silently", "email", map[string]interface{}{"value": "bad@x", "show_error": false}, false, MsgEmailInvalid, false},
		{"privacy checked", "privacy", map[string]interface{}{"checked": true}, true, "", false},
		{"unknown field", "nickname", map[string]interface{}{"value": ""}, true, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(router, "/api/v1/forms/early-access/fields/"+tt.field, tt.body)
			require.Equal(t, http.StatusOK, w.Code)

			var resp struct {
				IsValid      bool                   `json:"isValid"`
				ErrorMessage string                 `json:"errorMessage"`
				Display      map[string]RegionState `json:"display"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantValid, resp.IsValid)
			assert.Equal(t, tt.wantMsg, resp.ErrorMessage)
			assert.Equal(t, tt.wantShown, resp.Display[tt.field+"-error"].Showing())
		})
	}
}
