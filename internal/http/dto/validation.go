package dto

import (
	"fmt"
	"strings"

	"github.com/cesargomez89/flixetl/internal/normalize"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) ToMap() map[string]string {
	return map[string]string{e.Field: e.Message}
}

func ToMap(errs []ValidationError) map[string]string {
	result := make(map[string]string)
	for _, e := range errs {
		result[e.Field] = e.Message
	}
	return result
}

func ToResponse(errs []ValidationError) string {
	var msgs []string
	for _, e := range errs {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

// CategoryRulesRequest is the body of a category vocabulary update.
type CategoryRulesRequest []normalize.CategoryRule

func (req CategoryRulesRequest) Validate() []ValidationError {
	if len(req) == 0 {
		return []ValidationError{{Field: "rules", Message: "at least one rule is required"}}
	}

	var errs []ValidationError
	seen := make(map[string]bool)
	for i, rule := range req {
		errs = append(errs, validateCategory(i, rule.Category, seen)...)
		errs = append(errs, validateKeywords(i, rule.Keywords)...)
	}
	return errs
}

func validateCategory(i int, category string, seen map[string]bool) []ValidationError {
	var errs []ValidationError
	field := fmt.Sprintf("rules[%d].category", i)
	name := strings.TrimSpace(category)
	switch {
	case name == "":
		errs = append(errs, ValidationError{Field: field, Message: "is required"})
	case strings.Contains(name, ","):
		errs = append(errs, ValidationError{Field: field, Message: "must not contain a comma"})
	case seen[strings.ToLower(name)]:
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("duplicate category %q", name)})
	}
	seen[strings.ToLower(name)] = true
	return errs
}

func validateKeywords(i int, keywords []string) []ValidationError {
	var errs []ValidationError
	field := fmt.Sprintf("rules[%d].keywords", i)
	if len(keywords) == 0 {
		errs = append(errs, ValidationError{Field: field, Message: "at least one keyword is required"})
	}
	for _, kw := range keywords {
		if strings.TrimSpace(kw) == "" {
			errs = append(errs, ValidationError{Field: field, Message: "keywords must not be blank"})
			break
		}
	}
	return errs
}
