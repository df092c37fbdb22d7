package services

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/Lllllllleong/imigraflow/internal/gcp"
	"github.com/Lllllllleong/imigraflow/internal/models"
	"github.com/Lllllllleong/imigraflow/internal/pdftext"
	"github.com/Lllllllleong/imigraflow/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// extractConcurrency bounds concurrent page decoding.
const extractConcurrency = 4

// PageSource is a paginated document. Pages are numbered from 1.
type PageSource interface {
	PageCount() int
	PageText(ctx context.Context, n int) (string, error)
}

var _ PageSource = (*pdftext.Document)(nil)

// ClampRange corrects a requested page range instead of rejecting it: start is
// clamped to [1, pageCount] and end to [start, pageCount].
func ClampRange(start, end, pageCount int) (int, int) {
	start = min(max(start, 1), pageCount)
	end = min(max(end, start), pageCount)
	return start, end
}

// PageMarker precedes the text of page n in extracted material.
func PageMarker(n int) string {
	return fmt.Sprintf("\n--- Página %d ---\n", n)
}

// ExtractRange concatenates the text of the clamped inclusive range, each page
// preceded by its marker.
func ExtractRange(ctx context.Context, src PageSource, start, end int) (string, error) {
	count := src.PageCount()
	if count < 1 {
		return "", ErrEmptyDocument
	}
	start, end = ClampRange(start, end, count)

	pages := make([]string, end-start+1)
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(extractConcurrency)
	for i := start; i <= end; i++ {
		pageNumber := i
		eg.Go(func() error {
			text, err := src.PageText(gctx, pageNumber)
			if err != nil {
				return fmt.Errorf("page %d: %w", pageNumber, err)
			}
			pages[pageNumber-start] = text
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return "", err
	}

	var b strings.Builder
	for i, text := range pages {
		b.WriteString(PageMarker(start + i))
		b.WriteString(text)
	}
	return b.String(), nil
}

// OpenStudySource opens a PDF from gs://bucket/object or a local path and
// returns it with its file name. client may be nil for local paths.
func OpenStudySource(ctx context.Context, client *storage.Client, location string) (PageSource, string, error) {
	if !gcp.IsGCSURI(location) {
		doc, err := pdftext.OpenFile(location)
		if err != nil {
			return nil, "", err
		}
		return doc, path.Base(location), nil
	}
	if client == nil {
		return nil, "", fmt.Errorf("no storage client for %s", location)
	}
	bucket, object, err := gcp.ParseGCSURI(location)
	if err != nil {
		return nil, "", err
	}
	data, err := gcp.ReadObject(ctx, client, bucket, object)
	if err != nil {
		return nil, "", err
	}
	doc, err := pdftext.Open(bytes.NewReader(data))
	if err != nil {
		return nil, "", err
	}
	return doc, path.Base(object), nil
}

// StudyFunction runs the study material pipeline on the active process.
type StudyFunction struct {
	store  *store.Store
	gen    Generator
	logger *zap.Logger
}

func NewStudy(s *store.Store, gen Generator, logger *zap.Logger) *StudyFunction {
	return &StudyFunction{store: s, gen: gen, logger: logger}
}

// LoadMaterial extracts the page range and stores it, with the file name, in
// the active process's study state. It returns the stored text.
func (f *StudyFunction) LoadMaterial(ctx context.Context, filename string, src PageSource, start, end int) (string, error) {
	logCtx := f.logger.With(zap.String("material", filename), zap.Int("startPage", start), zap.Int("endPage", end))

	text, err := ExtractRange(ctx, src, start, end)
	if err != nil {
		logCtx.Error("Failed to extract study material.", zap.Error(err))
		return "", fmt.Errorf("failed to extract study material: %w", err)
	}
	if err := f.StoreMaterial(ctx, filename, text); err != nil {
		return "", err
	}
	logCtx.Info("Study material loaded.", zap.Int("chars", len(text)))
	return text, nil
}

// StoreMaterial writes already extracted text into the active study state.
func (f *StudyFunction) StoreMaterial(ctx context.Context, filename, text string) error {
	_, err := f.store.UpdateGlobalState(ctx, func(st *models.GlobalState) error {
		active := st.ActiveProcess()
		if active == nil {
			return ErrNoActiveProcess
		}
		active.StudyState.CurrentMaterial = &filename
		active.StudyState.MaterialContentChunk = &text
		return nil
	})
	return activeStateError(err)
}

// GenerateQuiz builds a quiz from the stored material chunk.
func (f *StudyFunction) GenerateQuiz(ctx context.Context, language string) (*models.Quiz, error) {
	state, err := f.store.LoadGlobalState(ctx)
	if err != nil {
		return nil, activeStateError(err)
	}
	active := state.ActiveProcess()
	if active == nil {
		return nil, ErrNoActiveProcess
	}
	chunk := active.StudyState.MaterialContentChunk
	if chunk == nil || strings.TrimSpace(*chunk) == "" {
		return nil, ErrNoStudyMaterial
	}

	quiz := f.gen.GenerateQuiz(ctx, *chunk, language)
	if quiz == nil {
		f.logger.Error("Quiz generation failed.", zap.String("processId", active.ID))
		return nil, ErrQuizGeneration
	}
	return quiz, nil
}

// RecordQuizResult scores answers (question id -> chosen option index) and
// stores the score and the prompts of missed questions as weak topics.
func (f *StudyFunction) RecordQuizResult(ctx context.Context, quiz *models.Quiz, answers map[int]int) (*models.QuizResult, error) {
	result := ScoreQuiz(quiz, answers)
	_, err := f.store.UpdateGlobalState(ctx, func(st *models.GlobalState) error {
		active := st.ActiveProcess()
		if active == nil {
			return ErrNoActiveProcess
		}
		score := result.Score
		active.StudyState.LastQuizScore = &score
		active.StudyState.WeakTopics = result.WeakTopics
		return nil
	})
	if err != nil {
		return nil, activeStateError(err)
	}
	return result, nil
}

// ScoreQuiz counts correct answers. Unanswered questions count as missed.
func ScoreQuiz(quiz *models.Quiz, answers map[int]int) *models.QuizResult {
	result := &models.QuizResult{WeakTopics: []string{}}
	if quiz == nil {
		result.Score = "0/0"
		return result
	}
	for _, q := range quiz.Questions {
		result.Total++
		if chosen, ok := answers[q.ID]; ok && chosen == q.CorrectAnswerIndex {
			result.Correct++
			continue
		}
		result.WeakTopics = append(result.WeakTopics, q.Question)
	}
	result.Score = fmt.Sprintf("%d/%d", result.Correct, result.Total)
	return result
}
