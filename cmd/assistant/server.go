package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Lllllllleong/imigraflow/internal/app"
	"github.com/Lllllllleong/imigraflow/internal/gcp"
	"github.com/Lllllllleong/imigraflow/internal/models"
	"github.com/Lllllllleong/imigraflow/internal/services"
	"github.com/Lllllllleong/imigraflow/internal/store"
)

// NamespaceHeader identifies the caller's storage namespace (one per device).
const NamespaceHeader = "X-Imigra-Namespace"

// maxRequestBytes bounds request bodies; chat attachments and document photos
// arrive base64 encoded inside the JSON.
const maxRequestBytes = 10 << 20

// errStudyLocation rejects study documents outside the configured bucket.
var errStudyLocation = errors.New("study documents must be objects in the study bucket")

type server struct {
	app    *app.App
	logger *zap.Logger
}

func newServer(a *app.App) *server {
	return &server{app: a, logger: a.Logger}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /onboarding", s.handleOnboarding)
	mux.HandleFunc("GET /guard", s.guarded(s.handleGuard))
	mux.HandleFunc("POST /logout", s.withSession(s.handleLogout))

	mux.HandleFunc("GET /dashboard", s.guarded(s.handleDashboard))
	mux.HandleFunc("GET /processes", s.guarded(s.handleListProcesses))
	mux.HandleFunc("POST /processes/switch", s.guarded(s.handleSwitchProcess))
	mux.HandleFunc("POST /roadmap/start", s.guarded(s.handleStartStep))
	mux.HandleFunc("POST /roadmap/complete", s.guarded(s.handleCompleteStep))
	mux.HandleFunc("POST /documents/status", s.guarded(s.handleDocumentStatus))
	mux.HandleFunc("POST /documents/analyze", s.guarded(s.handleAnalyzeDocument))

	mux.HandleFunc("GET /chat", s.guarded(s.handleOpenChat))
	mux.HandleFunc("POST /chat", s.guarded(s.handleSendChat))
	mux.HandleFunc("DELETE /chat", s.guarded(s.handleResetChat))

	mux.HandleFunc("POST /calculator", s.guarded(s.handleCalculator))
	mux.HandleFunc("POST /study/material", s.guarded(s.handleStudyMaterial))
	mux.HandleFunc("POST /study/quiz", s.guarded(s.handleStudyQuiz))
	mux.HandleFunc("POST /study/result", s.guarded(s.handleStudyResult))
	return mux
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *app.Session)

// withSession resolves the namespace header into a session.
func (s *server) withSession(next sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ns := r.Header.Get(NamespaceHeader)
		if ns == "" {
			s.writeError(w, http.StatusBadRequest, "missing "+NamespaceHeader+" header")
			return
		}
		sess, err := s.app.Session(ns)
		if err != nil {
			s.fail(w, err)
			return
		}
		next(w, r, sess)
	}
}

// guarded runs the compatibility and navigation guards before next. A redirect
// is answered with 409 and the onboarding target.
func (s *server) guarded(next sessionHandler) http.HandlerFunc {
	return s.withSession(func(w http.ResponseWriter, r *http.Request, sess *app.Session) {
		decision, err := sess.Guards.Enter(r.Context())
		if err != nil {
			s.fail(w, err)
			return
		}
		if decision.Redirect {
			s.writeJSON(w, http.StatusConflict, models.RedirectResponse{Redirect: decision.Target, Reason: decision.Reason})
			return
		}
		next(w, r, sess)
	})
}

func (s *server) handleOnboarding(w http.ResponseWriter, r *http.Request) {
	var req models.OnboardingRequest
	if !s.decode(w, r, &req) {
		return
	}
	ns := r.Header.Get(NamespaceHeader)
	if ns == "" {
		ns = uuid.NewString()
	}
	sess, err := s.app.Session(ns)
	if err != nil {
		s.fail(w, err)
		return
	}
	process, err := sess.Onboarding.Process(r.Context(), &req)
	if err != nil {
		s.fail(w, err)
		return
	}
	w.Header().Set(NamespaceHeader, ns)
	s.writeJSON(w, http.StatusCreated, models.OnboardingResponse{Namespace: ns, ProcessID: process.ID, Process: process})
}

func (s *server) handleGuard(w http.ResponseWriter, _ *http.Request, _ *app.Session) {
	s.writeJSON(w, http.StatusOK, models.RedirectResponse{})
}

func (s *server) handleLogout(w http.ResponseWriter, r *http.Request, sess *app.Session) {
	if err := sess.Processes.Logout(r.Context()); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleDashboard(w http.ResponseWriter, r *http.Request, sess *app.Session) {
	view, err := sess.Tracker.Dashboard(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *server) handleListProcesses(w http.ResponseWriter, r *http.Request, sess *app.Session) {
	processes, active, err := sess.Processes.List(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, models.ProcessListResponse{ActiveProcessID: active, Processes: processes})
}

func (s *server) handleSwitchProcess(w http.ResponseWriter, r *http.Request, sess *app.Session) {
	var req models.SwitchProcessRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := sess.Processes.Switch(r.Context(), req.ProcessID); err != nil {
		s.fail(w, err)
		return
	}
	s.handleListProcesses(w, r, sess)
}

func (s *server) handleStartStep(w http.ResponseWriter, r *http.Request, sess *app.Session) {
	var req models.CompleteStepRequest
	if !s.decode(w, r, &req) {
		return
	}
	roadmap, err := sess.Tracker.StartStep(r.Context(), req.StepID)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, roadmap)
}

func (s *server) handleCompleteStep(w http.ResponseWriter, r *http.Request, sess *app.Session) {
	var req models.CompleteStepRequest
	if !s.decode(w, r, &req) {
		return
	}
	roadmap, err := sess.Tracker.CompleteStep(r.Context(), req.StepID)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, roadmap)
}

func (s *server) handleDocumentStatus(w http.ResponseWriter, r *http.Request, sess *app.Session) {
	var req models.DocumentStatusRequest
	if !s.decode(w, r, &req) {
		return
	}
	doc, err := sess.Processes.UpdateDocumentStatus(r.Context(), req.DocName, req.Status)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, doc)
}

func (s *server) handleAnalyzeDocument(w http.ResponseWriter, r *http.Request, sess *app.Session) {
	var req models.AnalyzeDocumentRequest
	if !s.decode(w, r, &req) {
		return
	}
	analysis, err := sess.DocReview.Analyze(r.Context(), req.DocType, req.Data, req.MIMEType)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, models.AnalyzeDocumentResponse{Analysis: analysis})
}

func (s *server) handleOpenChat(w http.ResponseWriter, r *http.Request, sess *app.Session) {
	messages, err := sess.Conversation.Open(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, models.ChatResponse{Messages: messages})
}

func (s *server) handleSendChat(w http.ResponseWriter, r *http.Request, sess *app.Session) {
	var req models.ChatRequest
	if !s.decode(w, r, &req) {
		return
	}
	reply, err := sess.Conversation.Send(r.Context(), req.Text, req.Attachments)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, models.ChatResponse{Reply: *reply, Messages: sess.Conversation.Messages()})
}

func (s *server) handleResetChat(w http.ResponseWriter, r *http.Request, sess *app.Session) {
	if err := sess.Conversation.Reset(r.Context()); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleCalculator(w http.ResponseWriter, r *http.Request, sess *app.Session) {
	var req models.FinancialPlanRequest
	if !s.decode(w, r, &req) {
		return
	}
	plan, err := sess.Calculator.Plan(r.Context(), req)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, plan)
}

func (s *server) handleStudyMaterial(w http.ResponseWriter, r *http.Request, sess *app.Session) {
	var req models.StudyMaterialRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Location == "" {
		s.writeError(w, http.StatusBadRequest, "location is required")
		return
	}
	uri, err := studyObjectURI(s.app.Config.Study.Bucket, req.Location)
	if err != nil {
		s.logger.Warn("Rejected study document location", zap.String("location", req.Location), zap.Error(err))
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	client, err := s.app.StorageClient(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	src, filename, err := services.OpenStudySource(r.Context(), client, uri)
	if err != nil {
		s.logger.Error("Failed to open study document", zap.String("location", uri), zap.Error(err))
		s.writeError(w, http.StatusUnprocessableEntity, "could not read the study document")
		return
	}
	if req.StartPage == 0 && req.EndPage == 0 {
		req.StartPage, req.EndPage = 1, s.app.Config.Study.DefaultPages
	}
	text, err := sess.Study.LoadMaterial(r.Context(), filename, src, req.StartPage, req.EndPage)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, models.StudyMaterialResponse{Material: filename, Content: text})
}

func (s *server) handleStudyQuiz(w http.ResponseWriter, r *http.Request, sess *app.Session) {
	var req models.QuizRequest
	if !s.decode(w, r, &req) {
		return
	}
	quiz, err := sess.Study.GenerateQuiz(r.Context(), req.Language)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, quiz)
}

func (s *server) handleStudyResult(w http.ResponseWriter, r *http.Request, sess *app.Session) {
	var req models.QuizResultRequest
	if !s.decode(w, r, &req) {
		return
	}
	result, err := sess.Study.RecordQuizResult(r.Context(), &req.Quiz, req.Answers)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

// studyObjectURI resolves a study document location against the study bucket.
// Over HTTP only objects of that bucket are readable: a bare object name or a
// gs:// URI naming the same bucket. Local paths never reach the host filesystem.
func studyObjectURI(bucket, location string) (string, error) {
	if bucket == "" {
		return "", fmt.Errorf("%w: no study bucket is configured", errStudyLocation)
	}
	if gcp.IsGCSURI(location) {
		b, object, err := gcp.ParseGCSURI(location)
		if err != nil {
			return "", err
		}
		if b != bucket {
			return "", fmt.Errorf("%w: bucket %q", errStudyLocation, b)
		}
		return "gs://" + b + "/" + object, nil
	}
	if strings.HasPrefix(location, "/") || strings.HasPrefix(location, ".") ||
		strings.Contains(location, "\\") || strings.Contains(location, "://") {
		return "", fmt.Errorf("%w: %q", errStudyLocation, location)
	}
	return "gs://" + bucket + "/" + location, nil
}

func (s *server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.logger.Warn("Could not decode request body", zap.String("path", r.URL.Path), zap.Error(err))
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return false
		}
		s.writeError(w, http.StatusBadRequest, "could not parse JSON")
		return false
	}
	return true
}

// fail maps service errors to status codes.
func (s *server) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", zap.Int("status", status), zap.Error(err))
	}
	s.writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrInvalidOnboarding),
		errors.Is(err, services.ErrInvalidStatus),
		errors.Is(err, services.ErrEmptyMessage),
		errors.Is(err, services.ErrInvalidSafetyRate),
		errors.Is(err, store.ErrInvalidName):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrProcessNotFound),
		errors.Is(err, services.ErrDocumentNotFound),
		errors.Is(err, models.ErrStepNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrNoActiveProcess),
		errors.Is(err, models.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, services.ErrTurnInFlight):
		return http.StatusTooManyRequests
	case errors.Is(err, services.ErrNoStudyMaterial):
		return http.StatusPreconditionFailed
	case errors.Is(err, services.ErrUnsupportedMediaType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, services.ErrEmptyDocument):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrConfigGeneration),
		errors.Is(err, services.ErrQuizGeneration),
		errors.Is(err, services.ErrPlanGeneration):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, models.ErrorResponse{Error: message})
}

func (s *server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to write response", zap.Error(err))
	}
}
