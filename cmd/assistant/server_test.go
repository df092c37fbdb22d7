package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Lllllllleong/imigraflow/internal/app"
	"github.com/Lllllllleong/imigraflow/internal/config"
	"github.com/Lllllllleong/imigraflow/internal/llm"
	"github.com/Lllllllleong/imigraflow/internal/models"
)

const onboardingJSON = "```json\n" + `{
  "config": {
    "requirements": {
      "documents_list": [
        {"name": "Passaporte", "required": true, "category": "Pessoal"},
        {"name": "Diploma", "required": true, "category": "Acadêmico"}
      ],
      "exams_list": [{"name": "IELTS General", "target_score": "CLB 9", "type": "Language"}],
      "medical_requirements": ["Exame médico IRCC"]
    },
    "financial_baseline": {"currency": "CAD", "estimated_gov_fees": 1525, "proof_of_funds_individual": 14690}
  },
  "active_roadmap": {
    "current_phase": 0,
    "next_action_id": "s1",
    "steps": [
      {"id": "s1", "title": "Validar Diploma", "description": "Solicite a ECA na WES.", "status": "PENDING", "action_type": "UPLOAD"},
      {"id": "s2", "title": "Agendar IELTS", "description": "", "status": "LOCKED", "action_type": "EXTERNAL_LINK"},
      {"id": "s3", "title": "Criar perfil", "description": "", "status": "LOCKED", "action_type": "FORM_FILL"}
    ]
  }
}` + "\n```"

// scriptedProvider answers JSON requests with the onboarding document and
// everything else with a fixed chat reply.
type scriptedProvider struct{}

func (scriptedProvider) Generate(_ context.Context, req llm.Request) (string, error) {
	if req.JSON {
		return onboardingJSON, nil
	}
	return "Vamos começar pela validação do diploma.", nil
}

func (scriptedProvider) Close() error { return nil }

func newTestApp(t *testing.T) *app.App {
	t.Helper()
	cfg := &config.Config{
		Store: config.StoreConfig{Backend: config.BackendMemory},
		Study: config.StudyConfig{Bucket: "imigra-study", DefaultPages: 5},
	}
	a, err := app.NewWithConnector(context.Background(), cfg, zaptest.NewLogger(t), llm.Static(scriptedProvider{}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(newServer(newTestApp(t)).routes())
	t.Cleanup(ts.Close)
	return ts
}

func call(t *testing.T, ts *httptest.Server, method, path, ns string, body any, out any) int {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, ts.URL+path, reader)
	require.NoError(t, err)
	if ns != "" {
		req.Header.Set(NamespaceHeader, ns)
	}
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func onboard(t *testing.T, ts *httptest.Server, ns string) models.OnboardingResponse {
	t.Helper()
	var resp models.OnboardingResponse
	status := call(t, ts, http.MethodPost, "/onboarding", ns, models.OnboardingRequest{
		Name: "Ana Souza", Email: "ana@example.com", Country: "Canada", Visa: "Express Entry", Profession: "TI / Tech",
	}, &resp)
	require.Equal(t, http.StatusCreated, status)
	return resp
}

func TestFreshStorageRedirectsToOnboarding(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/dashboard", "/chat", "/processes", "/guard"} {
		var redirect models.RedirectResponse
		status := call(t, ts, http.MethodGet, path, "fresh-device", nil, &redirect)
		assert.Equal(t, http.StatusConflict, status, path)
		assert.Equal(t, "/onboarding", redirect.Redirect, path)
	}
}

func TestMissingNamespace(t *testing.T) {
	ts := newTestServer(t)

	var body models.ErrorResponse
	status := call(t, ts, http.MethodGet, "/dashboard", "", nil, &body)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body.Error, NamespaceHeader)
}

func TestOnboardingThenDashboard(t *testing.T) {
	ts := newTestServer(t)

	created := onboard(t, ts, "")
	require.NotEmpty(t, created.Namespace)
	require.NotNil(t, created.Process)
	assert.Len(t, created.Process.UploadedDocuments, len(created.Process.Config.Requirements.DocumentsList))
	for _, d := range created.Process.UploadedDocuments {
		assert.Equal(t, models.DocumentPendingUpload, d.Status)
	}

	var guard models.RedirectResponse
	assert.Equal(t, http.StatusOK, call(t, ts, http.MethodGet, "/guard", created.Namespace, nil, &guard))
	assert.Empty(t, guard.Redirect)

	var view models.DashboardView
	require.Equal(t, http.StatusOK, call(t, ts, http.MethodGet, "/dashboard", created.Namespace, nil, &view))
	assert.Equal(t, "Ana", view.FirstName)
	assert.Equal(t, created.ProcessID, view.ProcessID)
	require.NotNil(t, view.CurrentStep)
	assert.Equal(t, "Validar Diploma", view.CurrentStep.Title)
}

func TestSwitchProcess(t *testing.T) {
	ts := newTestServer(t)
	first := onboard(t, ts, "device-1")
	second := onboard(t, ts, "device-1")
	require.NotEqual(t, first.ProcessID, second.ProcessID)

	var list models.ProcessListResponse
	require.Equal(t, http.StatusOK, call(t, ts, http.MethodPost, "/processes/switch", "device-1",
		models.SwitchProcessRequest{ProcessID: first.ProcessID}, &list))

	assert.Equal(t, first.ProcessID, list.ActiveProcessID)
	require.Len(t, list.Processes, 2)
	assert.Equal(t, first.ProcessID, list.Processes[0].ID)
	assert.Equal(t, second.ProcessID, list.Processes[1].ID)

	var body models.ErrorResponse
	assert.Equal(t, http.StatusNotFound, call(t, ts, http.MethodPost, "/processes/switch", "device-1",
		models.SwitchProcessRequest{ProcessID: "proc_nope"}, &body))
}

func TestChatColdStartPersistsOneModelMessage(t *testing.T) {
	ts := newTestServer(t)
	created := onboard(t, ts, "device-chat")

	var opened models.ChatResponse
	require.Equal(t, http.StatusOK, call(t, ts, http.MethodGet, "/chat", created.Namespace, nil, &opened))
	require.Len(t, opened.Messages, 1)
	assert.Equal(t, models.RoleModel, opened.Messages[0].Role)

	var reopened models.ChatResponse
	require.Equal(t, http.StatusOK, call(t, ts, http.MethodGet, "/chat", created.Namespace, nil, &reopened))
	assert.Equal(t, opened.Messages, reopened.Messages)

	var sent models.ChatResponse
	require.Equal(t, http.StatusOK, call(t, ts, http.MethodPost, "/chat", created.Namespace, models.ChatRequest{Text: "Já tenho o diploma"}, &sent))
	assert.Equal(t, models.RoleModel, sent.Reply.Role)
	assert.Len(t, sent.Messages, 3)

	var body models.ErrorResponse
	assert.Equal(t, http.StatusBadRequest, call(t, ts, http.MethodPost, "/chat", created.Namespace, models.ChatRequest{Text: "  "}, &body))

	assert.Equal(t, http.StatusNoContent, call(t, ts, http.MethodDelete, "/chat", created.Namespace, nil, nil))
}

func TestCompleteStepAndLogout(t *testing.T) {
	ts := newTestServer(t)
	created := onboard(t, ts, "device-2")

	var roadmap models.Roadmap
	require.Equal(t, http.StatusOK, call(t, ts, http.MethodPost, "/roadmap/complete", created.Namespace,
		models.CompleteStepRequest{StepID: "s1"}, &roadmap))
	assert.Equal(t, "s2", roadmap.NextActionID)

	var body models.ErrorResponse
	assert.Equal(t, http.StatusConflict, call(t, ts, http.MethodPost, "/roadmap/complete", created.Namespace,
		models.CompleteStepRequest{StepID: "s3"}, &body))

	assert.Equal(t, http.StatusNoContent, call(t, ts, http.MethodPost, "/logout", created.Namespace, nil, nil))

	var redirect models.RedirectResponse
	assert.Equal(t, http.StatusConflict, call(t, ts, http.MethodGet, "/dashboard", created.Namespace, nil, &redirect))
}

func TestStudyObjectURI(t *testing.T) {
	tests := []struct {
		name     string
		location string
		want     string
		wantErr  bool
	}{
		{"bare object", "guias/express-entry.pdf", "gs://imigra-study/guias/express-entry.pdf", false},
		{"same bucket uri", "gs://imigra-study/guia.pdf", "gs://imigra-study/guia.pdf", false},
		{"other bucket", "gs://someone-else/guia.pdf", "", true},
		{"absolute path", "/etc/hosts", "", true},
		{"relative path", "../secrets/guia.pdf", "", true},
		{"other scheme", "file:///etc/hosts", "", true},
		{"bucket without object", "gs://imigra-study", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := studyObjectURI("imigra-study", tt.location)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := studyObjectURI("", "guia.pdf")
	assert.ErrorIs(t, err, errStudyLocation)
}

func TestStudyMaterialRejectsLocationsOutsideBucket(t *testing.T) {
	ts := newTestServer(t)
	created := onboard(t, ts, "device-study")

	for _, location := range []string{"/etc/hosts", "gs://someone-else/guia.pdf", "./guia.pdf"} {
		var body models.ErrorResponse
		status := call(t, ts, http.MethodPost, "/study/material", created.Namespace,
			models.StudyMaterialRequest{Location: location}, &body)
		assert.Equal(t, http.StatusBadRequest, status, location)
		assert.Contains(t, body.Error, "study bucket", location)
	}
}

func TestDecodeRejectsOversizedBody(t *testing.T) {
	srv := newServer(newTestApp(t))
	raw, err := json.Marshal(models.ChatRequest{Text: strings.Repeat("a", maxRequestBytes)})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	var req models.ChatRequest
	ok := srv.decode(rec, httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader(raw)), &req)

	assert.False(t, ok)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, rec.Body.String(), "exceeds")

	rec = httptest.NewRecorder()
	ok = srv.decode(rec, httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"text":"oi"}`)), &req)
	assert.True(t, ok)
	assert.Equal(t, "oi", req.Text)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, statusFor(assert.AnError))
	assert.Equal(t, http.StatusNotFound, statusFor(models.ErrStepNotFound))
}
