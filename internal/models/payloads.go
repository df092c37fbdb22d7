package models

// These structs define the JSON payloads exchanged with the HTTP functions.

type OnboardingRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Country    string `json:"country"`
	Visa       string `json:"visa"`
	Profession string `json:"profession"`
}

type OnboardingResponse struct {
	Namespace string              `json:"namespace"`
	ProcessID string              `json:"processId"`
	Process   *ImmigrationProcess `json:"process"`
}

type ChatRequest struct {
	Text        string       `json:"text"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

type ChatResponse struct {
	Reply    Message   `json:"reply"`
	Messages []Message `json:"messages"`
}

type SwitchProcessRequest struct {
	ProcessID string `json:"processId"`
}

type CompleteStepRequest struct {
	StepID string `json:"stepId"`
}

type DocumentStatusRequest struct {
	DocName string         `json:"docName"`
	Status  DocumentStatus `json:"status"`
}

type AnalyzeDocumentRequest struct {
	DocType  string `json:"docType"`
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type AnalyzeDocumentResponse struct {
	Analysis string `json:"analysis"`
}

type FinancialPlanRequest struct {
	Country    string  `json:"country"`
	Visa       string  `json:"visa"`
	Family     string  `json:"family"`
	SafetyRate float64 `json:"safetyRate"`
}

type QuizRequest struct {
	Language string `json:"language"`
}

type QuizResultRequest struct {
	Quiz    Quiz        `json:"quiz"`
	Answers map[int]int `json:"answers"`
}

type QuizResult struct {
	Correct    int      `json:"correct"`
	Total      int      `json:"total"`
	Score      string   `json:"score"`
	WeakTopics []string `json:"weakTopics"`
}

// RedirectResponse tells the caller to navigate to Target instead.
type RedirectResponse struct {
	Redirect string `json:"redirect"`
	Reason   string `json:"reason,omitempty"`
}

// DashboardView is the read-only projection shown on the home screen.
type DashboardView struct {
	FirstName      string           `json:"firstName"`
	ProcessID      string           `json:"processId"`
	ProcessLabel   string           `json:"processLabel"`
	CurrentStep    *RoadmapStep     `json:"currentStep"`
	Documents      DocumentProgress `json:"documents"`
	BlockingUpload bool             `json:"blockingUpload"`
	Notification   string           `json:"notification,omitempty"`
}

type ProcessListResponse struct {
	ActiveProcessID string               `json:"activeProcessId"`
	Processes       []ImmigrationProcess `json:"processes"`
}

// StudyMaterialRequest points at a PDF by gs:// URI or local path.
type StudyMaterialRequest struct {
	Location  string `json:"location"`
	StartPage int    `json:"startPage"`
	EndPage   int    `json:"endPage"`
}

type StudyMaterialResponse struct {
	Material string `json:"material"`
	Content  string `json:"content"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
