package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Lllllllleong/imigraflow/internal/models"
	"github.com/Lllllllleong/imigraflow/internal/store"
	"go.uber.org/zap"
)

// demoToken is the placeholder session token recorded at first onboarding.
const demoToken = "demo_token"

// OnboardingFunction creates a new immigration process from the wizard answers.
type OnboardingFunction struct {
	store  *store.Store
	gen    Generator
	logger *zap.Logger
	now    Clock
}

func NewOnboarding(s *store.Store, gen Generator, logger *zap.Logger, now Clock) *OnboardingFunction {
	return &OnboardingFunction{store: s, gen: gen, logger: logger, now: orNow(now)}
}

// Process generates the process configuration, appends the process to the
// global state (creating it on first use), makes it active and drops the chat
// log so the next chat visit cold-starts on the new roadmap.
func (f *OnboardingFunction) Process(ctx context.Context, req *models.OnboardingRequest) (*models.ImmigrationProcess, error) {
	logCtx := f.logger.With(zap.String("country", req.Country), zap.String("visa", req.Visa))

	if err := validateOnboarding(req); err != nil {
		return nil, err
	}
	logCtx.Info("Generating process configuration.")

	// --- 1. Ask the generator for requirements and roadmap ---
	generated := f.gen.GenerateOnboardingConfig(ctx, req.Country, req.Visa, req.Profession)
	if generated == nil {
		logCtx.Error("Onboarding configuration could not be generated.")
		return nil, ErrConfigGeneration
	}

	process := models.ImmigrationProcess{
		Country:           req.Country,
		VisaType:          req.Visa,
		Profession:        req.Profession,
		Status:            models.ProcessPlanning,
		Config:            generated.Config,
		ActiveRoadmap:     generated.ActiveRoadmap,
		UploadedDocuments: models.DocumentsFromConfig(generated.Config),
		StudyState:        models.StudyState{WeakTopics: []string{}},
	}

	// --- 2. Merge into the persisted state ---
	_, err := f.store.UpsertGlobalState(ctx, func(st *models.GlobalState) error {
		if st.UserIdentity.Name == "" {
			st.UserIdentity = models.UserIdentity{
				Name:  strings.TrimSpace(req.Name),
				Email: strings.TrimSpace(req.Email),
				Token: demoToken,
			}
		}
		process.ID = uniqueProcessID(st, processID(req.Country, f.now().UnixMilli()))
		st.Processes = append(st.Processes, process)
		st.ActiveProcessID = process.ID
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save onboarding state: %w", err)
	}

	// --- 3. Drop the legacy key and the chat log ---
	if err := f.store.RemoveLegacyState(ctx); err != nil {
		logCtx.Warn("Failed to remove legacy user state.", zap.Error(err))
	}
	if err := f.store.ClearChatHistory(ctx); err != nil {
		return nil, fmt.Errorf("failed to clear chat history: %w", err)
	}

	logCtx.Info("Process created.", zap.String("processId", process.ID), zap.Int("steps", len(process.ActiveRoadmap.Steps)))
	return &process, nil
}

func validateOnboarding(req *models.OnboardingRequest) error {
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Email) == "" {
		return fmt.Errorf("%w: name and email are required", ErrInvalidOnboarding)
	}
	country, ok := models.FindCountry(req.Country)
	if !ok {
		return fmt.Errorf("%w: unknown country %q", ErrInvalidOnboarding, req.Country)
	}
	if !country.OffersVisa(req.Visa) {
		return fmt.Errorf("%w: visa %q is not offered for %s", ErrInvalidOnboarding, req.Visa, req.Country)
	}
	if !models.IsProfession(req.Profession) {
		return fmt.Errorf("%w: unknown profession %q", ErrInvalidOnboarding, req.Profession)
	}
	return nil
}

// processID builds proc_<first three letters of the country>_<unix ms>.
func processID(country string, ms int64) string {
	prefix := strings.ToLower(country)
	if utf8.RuneCountInString(prefix) > 3 {
		prefix = string([]rune(prefix)[:3])
	}
	return fmt.Sprintf("proc_%s_%d", prefix, ms)
}

func uniqueProcessID(st *models.GlobalState, id string) string {
	if !st.HasProcess(id) {
		return id
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s_%d", id, n)
		if !st.HasProcess(candidate) {
			return candidate
		}
	}
}
