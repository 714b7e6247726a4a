// Package schema checks inbound account payloads against a declarative
// per-field rule table.
package schema

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/igor322/account-service/internal/core/domain"
)

// Mode selects which rules apply.
type Mode int

const (
	// ModeCreate makes every Required field mandatory.
	ModeCreate Mode = iota
	// ModeUpdate validates only the fields present in the payload.
	ModeUpdate
)

func (m Mode) String() string {
	if m == ModeUpdate {
		return "update"
	}
	return "create"
}

// FieldRule is the rule set of one payload field.
type FieldRule struct {
	Field     string
	Required  bool
	MinLength int
	// Format is a validator tag such as "email"; empty means free text.
	Format string
	// RequiredWith names a field whose presence makes this one mandatory.
	RequiredWith string
	// Trim strips surrounding whitespace before the rules run.
	Trim bool
}

// tag builds the validator tag applied to a present value.
func (r FieldRule) tag() string {
	parts := []string{"required"}
	if r.MinLength > 0 {
		parts = append(parts, "min="+strconv.Itoa(r.MinLength))
	}
	if r.Format != "" {
		parts = append(parts, r.Format)
	}
	return strings.Join(parts, ",")
}

// AccountRules is the rule table for account payloads, in reporting order.
var AccountRules = []FieldRule{
	{Field: "name", Required: true, MinLength: 3, Trim: true},
	{Field: "email", Required: true, Format: "email", Trim: true},
	{Field: "password", Required: true},
	{Field: "confirmPassword", Required: true, RequiredWith: "password"},
}

// Validator evaluates a rule table against account payloads.
type Validator struct {
	v     *validator.Validate
	rules []FieldRule
}

// New returns a Validator for AccountRules.
func New() *Validator {
	return &Validator{v: validator.New(), rules: AccountRules}
}

// Validate checks in under mode and returns the sanitized payload. Only fields
// present in the payload are present in the result. On failure the returned
// error is a *domain.ValidationError listing every failing field.
func (sv *Validator) Validate(in domain.AccountInput, mode Mode) (domain.AccountInput, error) {
	values := map[string]*string{
		"name":            in.Name,
		"email":           in.Email,
		"password":        in.Password,
		"confirmPassword": in.ConfirmPassword,
	}

	out := make(map[string]*string, len(values))
	var failures []domain.FieldError

	for _, rule := range sv.rules {
		val := values[rule.Field]
		if val == nil {
			if rule.Required && mode == ModeCreate {
				failures = append(failures, missing(rule.Field, "required"))
			} else if rule.RequiredWith != "" && values[rule.RequiredWith] != nil {
				failures = append(failures, missing(rule.Field, "required_with"))
			}
			continue
		}

		s := *val
		if rule.Trim {
			s = strings.TrimSpace(s)
		}
		if err := sv.v.Var(s, rule.tag()); err != nil {
			failures = append(failures, toFieldErrors(rule.Field, err)...)
			continue
		}
		out[rule.Field] = &s
	}

	if len(failures) > 0 {
		return domain.AccountInput{}, &domain.ValidationError{Fields: failures}
	}

	return domain.AccountInput{
		Name:            out["name"],
		Email:           out["email"],
		Password:        out["password"],
		ConfirmPassword: out["confirmPassword"],
	}, nil
}

func missing(field, rule string) domain.FieldError {
	return domain.FieldError{Field: field, Rule: rule, Message: field + " is required"}
}

func toFieldErrors(field string, err error) []domain.FieldError {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return []domain.FieldError{{Field: field, Rule: "invalid", Message: field + " is invalid"}}
	}
	out := make([]domain.FieldError, 0, len(ve))
	for _, fe := range ve {
		out = append(out, domain.FieldError{
			Field:   field,
			Rule:    fe.Tag(),
			Message: message(field, fe),
		})
	}
	return out
}

// message converts a single validator failure into a human-readable message.
func message(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return field + " must not be empty"
	case "email":
		return field + " must be a valid email"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters long", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed validation (%s)", field, fe.Tag())
	}
}
