package services

import (
	"context"
	"errors"
	"time"

	"github.com/Lllllllleong/imigraflow/internal/gateway"
	"github.com/Lllllllleong/imigraflow/internal/models"
)

var (
	ErrInvalidOnboarding    = errors.New("invalid onboarding request")
	ErrConfigGeneration     = errors.New("failed to generate process configuration")
	ErrNoActiveProcess      = errors.New("no active process")
	ErrProcessNotFound      = errors.New("process not found")
	ErrDocumentNotFound     = errors.New("document not found in active process")
	ErrInvalidStatus        = errors.New("invalid document status")
	ErrEmptyMessage         = errors.New("message has no text and no attachment")
	ErrTurnInFlight         = errors.New("a reply is already being generated")
	ErrNoStudyMaterial      = errors.New("no study material loaded")
	ErrEmptyDocument        = errors.New("document has no pages")
	ErrQuizGeneration       = errors.New("failed to generate quiz")
	ErrInvalidSafetyRate    = errors.New("safety rate must be greater than zero")
	ErrPlanGeneration       = errors.New("failed to generate financial plan")
	ErrUnsupportedMediaType = errors.New("unsupported media type")
)

// Generator is the subset of the generation gateway the services call. Every
// method degrades to a fallback string or nil instead of returning an error.
type Generator interface {
	Reply(ctx context.Context, in gateway.ReplyInput) string
	AnalyzeDocumentImage(ctx context.Context, imageData, mimeType, docType string) string
	GenerateQuiz(ctx context.Context, content, language string) *models.Quiz
	GenerateFinancialPlan(ctx context.Context, in gateway.FinancialInput) *models.FinancialPlan
	GenerateOnboardingConfig(ctx context.Context, country, visa, profession string) *models.OnboardingConfig
}

var _ Generator = (*gateway.Gateway)(nil)

// Clock is swapped in tests.
type Clock func() time.Time

func orNow(c Clock) Clock {
	if c == nil {
		return time.Now
	}
	return c
}
