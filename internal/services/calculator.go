package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/Lllllllleong/imigraflow/internal/gateway"
	"github.com/Lllllllleong/imigraflow/internal/models"
	"github.com/Lllllllleong/imigraflow/internal/store"
	"go.uber.org/zap"
)

// CalculatorFunction produces cost estimates. Plans are never persisted.
type CalculatorFunction struct {
	store  *store.Store
	gen    Generator
	logger *zap.Logger
}

func NewCalculator(s *store.Store, gen Generator, logger *zap.Logger) *CalculatorFunction {
	return &CalculatorFunction{store: s, gen: gen, logger: logger}
}

// Plan estimates the cost of a move. Country and visa default to the active
// process when left empty.
func (f *CalculatorFunction) Plan(ctx context.Context, req models.FinancialPlanRequest) (*models.FinancialPlan, error) {
	if req.SafetyRate <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSafetyRate, req.SafetyRate)
	}
	if req.Country == "" || req.Visa == "" {
		state, err := f.store.LoadGlobalState(ctx)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		if active := state.ActiveProcess(); active != nil {
			if req.Country == "" {
				req.Country = active.Country
			}
			if req.Visa == "" {
				req.Visa = active.VisaType
			}
		}
	}
	if req.Country == "" || req.Visa == "" {
		return nil, ErrNoActiveProcess
	}

	plan := f.gen.GenerateFinancialPlan(ctx, gateway.FinancialInput{
		Country:    req.Country,
		Visa:       req.Visa,
		Family:     req.Family,
		SafetyRate: req.SafetyRate,
	})
	if plan == nil {
		f.logger.Error("Financial plan generation failed.", zap.String("country", req.Country), zap.String("visa", req.Visa))
		return nil, ErrPlanGeneration
	}
	return plan, nil
}
