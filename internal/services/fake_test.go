package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Lllllllleong/imigraflow/internal/gateway"
	"github.com/Lllllllleong/imigraflow/internal/models"
	"github.com/Lllllllleong/imigraflow/internal/store"
)

// fakeGenerator returns canned results and records what it was asked.
type fakeGenerator struct {
	mu sync.Mutex

	reply      string
	analysis   string
	quiz       *models.Quiz
	plan       *models.FinancialPlan
	onboarding *models.OnboardingConfig

	// When set, Reply signals started and waits for release.
	started chan struct{}
	release chan struct{}

	replies    []gateway.ReplyInput
	quizInputs []string
	planInputs []gateway.FinancialInput
	analyzed   []string
}

func (g *fakeGenerator) Reply(_ context.Context, in gateway.ReplyInput) string {
	g.mu.Lock()
	g.replies = append(g.replies, in)
	started, release := g.started, g.release
	g.mu.Unlock()
	if started != nil {
		started <- struct{}{}
		<-release
	}
	return g.reply
}

func (g *fakeGenerator) AnalyzeDocumentImage(_ context.Context, _ string, mimeType, docType string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.analyzed = append(g.analyzed, docType+"|"+mimeType)
	return g.analysis
}

func (g *fakeGenerator) GenerateQuiz(_ context.Context, content, _ string) *models.Quiz {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.quizInputs = append(g.quizInputs, content)
	return g.quiz
}

func (g *fakeGenerator) GenerateFinancialPlan(_ context.Context, in gateway.FinancialInput) *models.FinancialPlan {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.planInputs = append(g.planInputs, in)
	return g.plan
}

func (g *fakeGenerator) GenerateOnboardingConfig(context.Context, string, string, string) *models.OnboardingConfig {
	return g.onboarding
}

func (g *fakeGenerator) replyCalls() []gateway.ReplyInput {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]gateway.ReplyInput(nil), g.replies...)
}

// fakePages is an in-memory PageSource.
type fakePages []string

func (p fakePages) PageCount() int { return len(p) }

func (p fakePages) PageText(_ context.Context, n int) (string, error) {
	return p[n-1], nil
}

func fixedClock(ms int64) Clock {
	return func() time.Time { return time.UnixMilli(ms) }
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	return store.New(store.NewMemoryBackend(), zaptest.NewLogger(t))
}

func canadaConfig() *models.OnboardingConfig {
	return &models.OnboardingConfig{
		Config: models.ProcessConfig{
			Requirements: models.Requirements{
				DocumentsList: []models.RequiredDocument{
					{Name: "Passaporte", Required: true, Category: "Pessoal"},
					{Name: "Diploma", Required: true, Category: "Acadêmico"},
					{Name: "ECA (WES)", Required: true, Category: "Acadêmico"},
				},
				ExamsList: []models.Exam{{Name: "IELTS General", TargetScore: "CLB 9", Type: models.ExamLanguage}},
			},
			FinancialBaseline: models.FinancialBaseline{Currency: "CAD", EstimatedGovFees: 1525, ProofOfFundsIndividual: 14690},
		},
		ActiveRoadmap: models.Roadmap{
			NextActionID: "s1",
			Steps: []models.RoadmapStep{
				{ID: "s1", Title: "Validar Diploma", Description: "Envie seu diploma para a WES.", Status: models.StepPending, ActionType: models.ActionUpload},
				{ID: "s2", Title: "Agendar IELTS", Status: models.StepLocked, ActionType: models.ActionExternalLink},
				{ID: "s3", Title: "Criar perfil Express Entry", Status: models.StepLocked, ActionType: models.ActionFormFill},
			},
		},
	}
}

// seedProcesses stores a state with one process per id; the first is active.
func seedProcesses(t *testing.T, s *store.Store, ids ...string) *models.GlobalState {
	t.Helper()
	cfg := canadaConfig()
	state := &models.GlobalState{
		UserIdentity:    models.UserIdentity{Name: "Ana Souza", Email: "ana@example.com", Token: demoToken},
		ActiveProcessID: ids[0],
	}
	for _, id := range ids {
		state.Processes = append(state.Processes, models.ImmigrationProcess{
			ID:                id,
			Country:           "Canada",
			VisaType:          "Express Entry",
			Profession:        "TI / Tech",
			Status:            models.ProcessPlanning,
			Config:            cfg.Config,
			ActiveRoadmap:     cfg.ActiveRoadmap,
			UploadedDocuments: models.DocumentsFromConfig(cfg.Config),
			StudyState:        models.StudyState{WeakTopics: []string{}},
		})
	}
	require.NoError(t, s.SaveGlobalState(context.Background(), state))
	return state
}
