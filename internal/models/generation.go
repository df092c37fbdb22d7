package models

// FinancialPlan is produced fresh on every calculator run and never persisted.
type FinancialPlan struct {
	Summary        FinancialSummary `json:"summary"`
	Comparison     CostComparison   `json:"comparison"`
	Timeline       []TimelinePhase  `json:"timeline"`
	CurrencySymbol string           `json:"currency_symbol"`
}

type FinancialSummary struct {
	TotalTargetCurrency float64 `json:"total_target_currency"`
	TotalBRL            float64 `json:"total_brl"`
	ProcessCostTarget   float64 `json:"process_cost_target"`
	ProofOfFundsTarget  float64 `json:"proof_of_funds_target"`
}

// CostComparison contrasts the advisory-firm path with the self-service path.
type CostComparison struct {
	TraditionalCost float64 `json:"traditional_cost"`
	ImigraCost      float64 `json:"imigra_cost"`
	Savings         float64 `json:"savings"`
}

type TimelinePhase struct {
	Phase      string  `json:"phase"`
	CostTarget float64 `json:"cost_target"`
	Desc       string  `json:"desc"`
}

// Quiz is generated from study material.
type Quiz struct {
	Questions []QuizQuestion `json:"questions"`
}

type QuizQuestion struct {
	ID                 int      `json:"id"`
	Question           string   `json:"question"`
	Options            []string `json:"options"`
	CorrectAnswerIndex int      `json:"correctAnswerIndex"`
	Explanation        string   `json:"explanation"`
}
