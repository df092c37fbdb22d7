// Package gateway is the only component that talks to the hosted language
// model. Every operation converts failures into a fallback value.
package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/Lllllllleong/imigraflow/internal/llm"
	"github.com/Lllllllleong/imigraflow/internal/models"
)

type Gateway struct {
	connect llm.Connector
	schemas *schemas
	logger  *zap.Logger
}

func New(connect llm.Connector, logger *zap.Logger) (*Gateway, error) {
	s, err := compileSchemas()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{connect: connect, schemas: s, logger: logger}, nil
}

// ReplyInput carries one conversational turn. Attachments hold base64 data,
// optionally as data URLs; only the first one is sent.
type ReplyInput struct {
	History       []models.Message
	Text          string
	State         *models.GlobalState
	Attachments   []models.Attachment
	HiddenTrigger string
}

// FinancialInput describes the household being planned for.
type FinancialInput struct {
	Country    string
	Visa       string
	Family     string
	SafetyRate float64
}

// generate runs one request against a freshly connected provider.
func (g *Gateway) generate(ctx context.Context, op string, req llm.Request) (string, error) {
	provider, err := g.connect(ctx)
	if err != nil {
		if errors.Is(err, llm.ErrMissingCredential) {
			g.logger.Error("llm credential missing", zap.String("operation", op))
		} else {
			g.logger.Error("failed to connect to llm", zap.String("operation", op), zap.Error(err))
		}
		return "", err
	}
	defer provider.Close()

	text, err := provider.Generate(ctx, req)
	if err != nil {
		g.logger.Error("llm call failed", zap.String("operation", op), zap.Error(err))
		return "", err
	}
	return text, nil
}

// Reply answers a chat turn. It never fails: problems become a message that
// is shown in the conversation.
func (g *Gateway) Reply(ctx context.Context, in ReplyInput) string {
	turns := make([]llm.Turn, 0, len(in.History)+2)
	for _, m := range in.History {
		role := llm.RoleUser
		if m.Role == models.RoleModel {
			role = llm.RoleModel
		}
		turns = append(turns, llm.Turn{Role: role, Text: m.Content})
	}
	if in.HiddenTrigger != "" {
		turns = append(turns, llm.Turn{Role: llm.RoleSystem, Text: fmt.Sprintf(SystemTriggerFmt, in.HiddenTrigger)})
	}

	req := llm.Request{
		System:          BuildSystemInstruction(in.State),
		Temperature:     ChatTemperature,
		MaxOutputTokens: ChatMaxOutputTokens,
		Tier:            llm.TierFast,
	}

	if in.Text != "" || len(in.Attachments) > 0 {
		current := llm.Turn{Role: llm.RoleUser, Text: in.Text}
		if len(in.Attachments) > 0 {
			if current.Text == "" {
				current.Text = DefaultAttachmentPrompt
			}
			a := in.Attachments[0]
			data, err := decodeBase64Payload(a.Data)
			if err != nil {
				g.logger.Warn("dropping undecodable attachment", zap.String("name", a.Name), zap.Error(err))
			} else {
				current.Attachments = []llm.Attachment{{MIMEType: a.Type, Data: data}}
				req.Tier = llm.TierVision
			}
		}
		turns = append(turns, current)
	}
	if len(turns) == 0 {
		return MsgEmptyReply
	}
	req.Turns = turns

	text, err := g.generate(ctx, "reply", req)
	switch {
	case errors.Is(err, llm.ErrMissingCredential):
		return MsgMissingCredential
	case errors.Is(err, llm.ErrEmptyResponse):
		return MsgEmptyReply
	case err != nil:
		return fmt.Sprintf(MsgConnectionFailed, err.Error())
	}
	return text
}

// AnalyzeDocumentImage asks the vision model to check an uploaded document
// image and returns markdown.
func (g *Gateway) AnalyzeDocumentImage(ctx context.Context, imageData, mimeType, docType string) string {
	data, err := decodeBase64Payload(imageData)
	if err != nil {
		g.logger.Error("invalid document image", zap.String("docType", docType), zap.Error(err))
		return MsgAnalysisFailed
	}

	text, err := g.generate(ctx, "analyze_document", llm.Request{
		Turns: []llm.Turn{{
			Role:        llm.RoleUser,
			Text:        fmt.Sprintf(documentAnalysisPrompt, docType),
			Attachments: []llm.Attachment{{MIMEType: mimeType, Data: data}},
		}},
		Temperature:     JSONTemperature,
		MaxOutputTokens: ChatMaxOutputTokens,
		Tier:            llm.TierVision,
	})
	switch {
	case errors.Is(err, llm.ErrMissingCredential):
		return MsgAnalysisMissingCredential
	case errors.Is(err, llm.ErrEmptyResponse):
		return MsgAnalysisEmpty
	case err != nil:
		return MsgAnalysisFailed
	}
	return text
}

// GenerateQuiz builds a quiz from study text. nil means generation failed.
func (g *Gateway) GenerateQuiz(ctx context.Context, content, language string) *models.Quiz {
	if language == "" {
		language = DefaultQuizLanguage
	}
	text, err := g.generate(ctx, "generate_quiz", jsonRequest(fmt.Sprintf(quizPrompt, truncateRunes(content, QuizContentLimit), language)))
	if err != nil {
		return nil
	}

	var quiz models.Quiz
	if err := decodeStructured(text, g.schemas.quiz, &quiz); err != nil {
		g.rejected("generate_quiz", text, err)
		return nil
	}
	if err := checkQuiz(&quiz); err != nil {
		g.rejected("generate_quiz", text, err)
		return nil
	}
	return &quiz
}

// GenerateFinancialPlan estimates process costs. nil means generation failed
// or the answer broke the cost rules.
func (g *Gateway) GenerateFinancialPlan(ctx context.Context, in FinancialInput) *models.FinancialPlan {
	prompt := fmt.Sprintf(financialPrompt, in.Country, in.Visa, in.Family, in.SafetyRate)
	text, err := g.generate(ctx, "generate_financial_plan", jsonRequest(prompt))
	if err != nil {
		return nil
	}

	var plan models.FinancialPlan
	if err := decodeStructured(text, g.schemas.financial, &plan); err != nil {
		g.rejected("generate_financial_plan", text, err)
		return nil
	}
	if err := checkFinancialPlan(&plan); err != nil {
		g.rejected("generate_financial_plan", text, err)
		return nil
	}
	return &plan
}

// GenerateOnboardingConfig produces the requirement snapshot and initial
// roadmap for a new process. nil means no process may be created.
func (g *Gateway) GenerateOnboardingConfig(ctx context.Context, country, visa, profession string) *models.OnboardingConfig {
	prompt := fmt.Sprintf(onboardingPrompt, country, visa, profession)
	text, err := g.generate(ctx, "generate_onboarding_config", jsonRequest(prompt))
	if err != nil {
		return nil
	}

	var cfg models.OnboardingConfig
	if err := decodeStructured(text, g.schemas.onboarding, &cfg); err != nil {
		g.rejected("generate_onboarding_config", text, err)
		return nil
	}
	if err := checkOnboarding(&cfg); err != nil {
		g.rejected("generate_onboarding_config", text, err)
		return nil
	}
	cfg.ActiveRoadmap.CurrentPhase = 0
	cfg.ActiveRoadmap.NextActionID = cfg.ActiveRoadmap.Steps[0].ID
	return &cfg
}

func (g *Gateway) rejected(op, text string, err error) {
	g.logger.Error("rejected llm response",
		zap.String("operation", op),
		zap.Error(err),
		zap.Int("responseLength", len(text)))
}

func jsonRequest(prompt string) llm.Request {
	return llm.Request{
		Turns:           []llm.Turn{{Role: llm.RoleUser, Text: prompt}},
		Temperature:     JSONTemperature,
		MaxOutputTokens: JSONMaxOutputTokens,
		JSON:            true,
		Tier:            llm.TierFast,
	}
}

type processContext struct {
	User    string                    `json:"user"`
	Country string                    `json:"country"`
	Visa    string                    `json:"visa"`
	Roadmap models.Roadmap            `json:"roadmap"`
	Status  []models.UploadedDocument `json:"status"`
}

// BuildSystemInstruction fills the assistant template with the active process,
// or with explicit "no context" markers when none resolves.
func BuildSystemInstruction(state *models.GlobalState) string {
	active := state.ActiveProcess()
	if active == nil {
		return strings.NewReplacer(
			placeholderContext, NoContextMarker,
			placeholderCountry, NoCountryMarker,
			placeholderVisa, NoVisaMarker,
		).Replace(SystemPrompt)
	}

	ctxJSON, err := json.MarshalIndent(processContext{
		User:    state.UserIdentity.Name,
		Country: active.Country,
		Visa:    active.VisaType,
		Roadmap: active.ActiveRoadmap,
		Status:  active.UploadedDocuments,
	}, "", "  ")
	if err != nil {
		ctxJSON = []byte("{}")
	}

	return strings.NewReplacer(
		placeholderContext, "CONTEXTO ATUAL:\n```json\n"+string(ctxJSON)+"\n```",
		placeholderCountry, active.Country,
		placeholderVisa, active.VisaType,
	).Replace(SystemPrompt)
}

// decodeBase64Payload accepts raw base64 or a data URL.
func decodeBase64Payload(s string) ([]byte, error) {
	s = StripDataURL(s)
	if s == "" {
		return nil, fmt.Errorf("empty payload")
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 payload: %w", err)
	}
	return data, nil
}

// StripDataURL drops a "data:<mime>;base64," header if present.
func StripDataURL(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		if i := strings.IndexByte(s, ','); i >= 0 {
			return s[i+1:]
		}
	}
	return s
}

// truncateRunes keeps at most n characters of s.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
