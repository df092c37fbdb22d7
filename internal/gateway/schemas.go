package gateway

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

const quizSchema = `{
  "type": "object",
  "required": ["questions"],
  "properties": {
    "questions": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["id", "question", "options", "correctAnswerIndex", "explanation"],
        "properties": {
          "id": {"type": "integer"},
          "question": {"type": "string", "minLength": 1},
          "options": {"type": "array", "minItems": 2, "items": {"type": "string"}},
          "correctAnswerIndex": {"type": "integer", "minimum": 0},
          "explanation": {"type": "string"}
        }
      }
    }
  }
}`

const financialPlanSchema = `{
  "type": "object",
  "required": ["summary", "comparison", "timeline", "currency_symbol"],
  "properties": {
    "summary": {
      "type": "object",
      "required": ["total_target_currency", "total_brl", "process_cost_target", "proof_of_funds_target"],
      "properties": {
        "total_target_currency": {"type": "number", "minimum": 0},
        "total_brl": {"type": "number", "minimum": 0},
        "process_cost_target": {"type": "number", "minimum": 0},
        "proof_of_funds_target": {"type": "number", "minimum": 0}
      }
    },
    "comparison": {
      "type": "object",
      "required": ["traditional_cost", "imigra_cost", "savings"],
      "properties": {
        "traditional_cost": {"type": "number", "minimum": 0},
        "imigra_cost": {"type": "number", "minimum": 0},
        "savings": {"type": "number"}
      }
    },
    "timeline": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["phase", "cost_target", "desc"],
        "properties": {
          "phase": {"type": "string", "minLength": 1},
          "cost_target": {"type": "number", "minimum": 0},
          "desc": {"type": "string"}
        }
      }
    },
    "currency_symbol": {"type": "string", "minLength": 1}
  }
}`

const onboardingSchema = `{
  "type": "object",
  "required": ["config", "active_roadmap"],
  "properties": {
    "config": {
      "type": "object",
      "required": ["requirements", "financial_baseline"],
      "properties": {
        "requirements": {
          "type": "object",
          "required": ["documents_list", "exams_list", "medical_requirements"],
          "properties": {
            "documents_list": {
              "type": "array",
              "items": {
                "type": "object",
                "required": ["name", "required", "category"],
                "properties": {
                  "name": {"type": "string", "minLength": 1},
                  "required": {"type": "boolean"},
                  "category": {"type": "string"},
                  "description": {"type": "string"}
                }
              }
            },
            "exams_list": {
              "type": "array",
              "items": {
                "type": "object",
                "required": ["name", "type"],
                "properties": {
                  "name": {"type": "string", "minLength": 1},
                  "target_score": {"type": "string"},
                  "type": {"enum": ["Language", "Technical", "Legal"]}
                }
              }
            },
            "medical_requirements": {"type": "array", "items": {"type": "string"}}
          }
        },
        "financial_baseline": {
          "type": "object",
          "required": ["currency", "estimated_gov_fees", "proof_of_funds_individual"],
          "properties": {
            "currency": {"type": "string", "minLength": 1},
            "estimated_gov_fees": {"type": "number", "minimum": 0},
            "proof_of_funds_individual": {"type": "number", "minimum": 0}
          }
        }
      }
    },
    "active_roadmap": {
      "type": "object",
      "required": ["steps"],
      "properties": {
        "current_phase": {"type": "integer", "minimum": 0},
        "next_action_id": {"type": "string"},
        "steps": {
          "type": "array",
          "minItems": 3,
          "maxItems": 5,
          "items": {
            "type": "object",
            "required": ["id", "title", "status"],
            "properties": {
              "id": {"type": "string", "minLength": 1},
              "title": {"type": "string", "minLength": 1},
              "description": {"type": "string"},
              "status": {"enum": ["PENDING", "LOCKED"]},
              "action_type": {"enum": ["", "AI_GENERATION", "UPLOAD", "FORM_FILL", "EXTERNAL_LINK", "GENERAL"]},
              "external_link": {"type": "string"}
            }
          }
        }
      }
    }
  }
}`

type schemas struct {
	quiz       *gojsonschema.Schema
	financial  *gojsonschema.Schema
	onboarding *gojsonschema.Schema
}

func compileSchemas() (*schemas, error) {
	compile := func(name, src string) (*gojsonschema.Schema, error) {
		s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
		if err != nil {
			return nil, fmt.Errorf("failed to compile %s schema: %w", name, err)
		}
		return s, nil
	}

	quiz, err := compile("quiz", quizSchema)
	if err != nil {
		return nil, err
	}
	financial, err := compile("financial plan", financialPlanSchema)
	if err != nil {
		return nil, err
	}
	onboarding, err := compile("onboarding", onboardingSchema)
	if err != nil {
		return nil, err
	}
	return &schemas{quiz: quiz, financial: financial, onboarding: onboarding}, nil
}

// validateDocument checks doc against schema and folds all violations into one error.
func validateDocument(schema *gojsonschema.Schema, doc []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("data validation failed: %v", errs)
	}
	return nil
}
