package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

var (
	errRefusal  = errors.New("model refused the task")
	errNotJSON  = errors.New("response is not a JSON object")
	errSemantic = errors.New("response violates business rules")
)

// StripCodeFences removes a surrounding markdown code fence (with or without a
// language tag). When the text still does not start with an object, it falls
// back to the span between the first '{' and the last '}'.
func StripCodeFences(text string) string {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			// Drop the info string, e.g. "json".
			if !strings.Contains(s[:nl], "{") {
				s = s[nl+1:]
			}
		}
		s = strings.TrimSpace(s)
		s = strings.TrimSuffix(s, "```")
		s = strings.TrimSpace(s)
	}
	if !strings.HasPrefix(s, "{") {
		start := strings.IndexByte(s, '{')
		end := strings.LastIndexByte(s, '}')
		if start >= 0 && end > start {
			s = s[start : end+1]
		}
	}
	return s
}

func isRefusal(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range refusalPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// decodeStructured strips fences, validates the document against schema and
// decodes it into out. Refusal phrases only matter when no JSON object came back;
// generated content may quote them.
func decodeStructured(text string, schema *gojsonschema.Schema, out any) error {
	doc := []byte(StripCodeFences(text))
	if !json.Valid(doc) || len(doc) == 0 || doc[0] != '{' {
		if isRefusal(text) {
			return errRefusal
		}
		return errNotJSON
	}
	if err := validateDocument(schema, doc); err != nil {
		return err
	}
	if err := json.Unmarshal(doc, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
