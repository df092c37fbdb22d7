package gateway

import (
	"fmt"
	"math"

	"github.com/Lllllllleong/imigraflow/internal/models"
)

const moneyTolerance = 0.01

func checkQuiz(q *models.Quiz) error {
	if len(q.Questions) == 0 {
		return fmt.Errorf("%w: quiz has no questions", errSemantic)
	}
	for i, question := range q.Questions {
		if question.CorrectAnswerIndex < 0 || question.CorrectAnswerIndex >= len(question.Options) {
			return fmt.Errorf("%w: question %d answer index %d out of %d options",
				errSemantic, i, question.CorrectAnswerIndex, len(question.Options))
		}
	}
	return nil
}

// checkFinancialPlan enforces that the self-service path never costs more than
// the advisory path and that savings is their difference.
func checkFinancialPlan(p *models.FinancialPlan) error {
	c := p.Comparison
	if c.ImigraCost > c.TraditionalCost {
		return fmt.Errorf("%w: imigra_cost %.2f exceeds traditional_cost %.2f",
			errSemantic, c.ImigraCost, c.TraditionalCost)
	}
	if math.Abs(c.Savings-(c.TraditionalCost-c.ImigraCost)) > moneyTolerance {
		return fmt.Errorf("%w: savings %.2f != %.2f - %.2f",
			errSemantic, c.Savings, c.TraditionalCost, c.ImigraCost)
	}
	return nil
}

// checkOnboarding requires exactly the first step PENDING and every other step
// LOCKED, with unique ids.
func checkOnboarding(cfg *models.OnboardingConfig) error {
	steps := cfg.ActiveRoadmap.Steps
	if len(steps) < 3 || len(steps) > 5 {
		return fmt.Errorf("%w: roadmap has %d steps", errSemantic, len(steps))
	}
	seen := make(map[string]bool, len(steps))
	for i, s := range steps {
		if seen[s.ID] {
			return fmt.Errorf("%w: duplicate step id %q", errSemantic, s.ID)
		}
		seen[s.ID] = true

		want := models.StepLocked
		if i == 0 {
			want = models.StepPending
		}
		if s.Status != want {
			return fmt.Errorf("%w: step %d is %s, want %s", errSemantic, i, s.Status, want)
		}
	}
	return nil
}
