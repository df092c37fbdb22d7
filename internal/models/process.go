package models

// ProcessStatus is advisory; no transition rules are enforced on it.
type ProcessStatus string

const (
	ProcessPlanning   ProcessStatus = "Planning"
	ProcessInProgress ProcessStatus = "In Progress"
	ProcessCompleted  ProcessStatus = "Completed"
)

// ImmigrationProcess is one tracked case: country + visa + profession with its own
// roadmap, document checklist and study state.
type ImmigrationProcess struct {
	ID         string        `json:"id"`
	Country    string        `json:"country"`
	VisaType   string        `json:"visa_type"`
	Profession string        `json:"profession"`
	Status     ProcessStatus `json:"status"`

	// Config is the static requirement snapshot produced at onboarding.
	Config        ProcessConfig `json:"config"`
	ActiveRoadmap Roadmap       `json:"active_roadmap"`

	UploadedDocuments []UploadedDocument `json:"uploaded_documents"`
	StudyState        StudyState         `json:"study_state"`
}

// Label is the short "country - visa" name shown for a process.
func (p *ImmigrationProcess) Label() string {
	return p.Country + " - " + p.VisaType
}

// ProcessConfig holds the requirements the generator produced for a process.
type ProcessConfig struct {
	Requirements      Requirements      `json:"requirements"`
	FinancialBaseline FinancialBaseline `json:"financial_baseline"`
}

type Requirements struct {
	DocumentsList       []RequiredDocument `json:"documents_list"`
	ExamsList           []Exam             `json:"exams_list"`
	MedicalRequirements []string           `json:"medical_requirements"`
}

type RequiredDocument struct {
	Name        string `json:"name"`
	Required    bool   `json:"required"`
	Category    string `json:"category"`
	Description string `json:"description,omitempty"`
}

type ExamType string

const (
	ExamLanguage  ExamType = "Language"
	ExamTechnical ExamType = "Technical"
	ExamLegal     ExamType = "Legal"
)

type Exam struct {
	Name        string   `json:"name"`
	TargetScore string   `json:"target_score"`
	Type        ExamType `json:"type"`
}

type FinancialBaseline struct {
	Currency               string  `json:"currency"`
	EstimatedGovFees       float64 `json:"estimated_gov_fees"`
	ProofOfFundsIndividual float64 `json:"proof_of_funds_individual"`
}

// StudyState is mutated by the study material pipeline.
type StudyState struct {
	CurrentMaterial      *string  `json:"current_material"`
	MaterialContentChunk *string  `json:"material_content_chunk"`
	LastQuizScore        *string  `json:"last_quiz_score"`
	WeakTopics           []string `json:"weak_topics"`
}

// OnboardingConfig is the generator output used to create a new process.
type OnboardingConfig struct {
	Config        ProcessConfig `json:"config"`
	ActiveRoadmap Roadmap       `json:"active_roadmap"`
}
