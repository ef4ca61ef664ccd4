package validation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"userhub/internal/models"
)

// FieldErrors maps a form field to its validation message. An empty map means
// the form is valid.
type FieldErrors map[string]string

// Empty reports whether the form passed every field check.
func (e FieldErrors) Empty() bool {
	return len(e) == 0
}

// ValidateName checks the name field: trimmed non-empty, 2-50 characters,
// letters and spaces only.
func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return errors.New("name is required")
	}
	if n := utf8.RuneCountInString(trimmed); n < 2 || n > 50 {
		return errors.New("name must be between 2 and 50 characters")
	}
	for _, r := range trimmed {
		if !unicode.IsLetter(r) && r != ' ' {
			return errors.New("name can only contain letters and spaces")
		}
	}
	return nil
}

// ValidateEmail checks the email field against a single-@, dotted-domain
// shape. It intentionally stays simpler than full RFC parsing; the mail
// transport is the final authority.
func ValidateEmail(email string) error {
	trimmed := strings.TrimSpace(email)
	if trimmed == "" {
		return errors.New("email is required")
	}
	at := strings.Index(trimmed, "@")
	if at <= 0 || at != strings.LastIndex(trimmed, "@") {
		return errors.New("email must contain a single @")
	}
	domain := trimmed[at+1:]
	if !strings.Contains(domain, ".") ||
		strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return errors.New("email domain is invalid")
	}
	return nil
}

// ValidateAge checks the string-encoded age field: numeric and within 1-120.
func ValidateAge(age string) error {
	trimmed := strings.TrimSpace(age)
	if trimmed == "" {
		return errors.New("age is required")
	}
	n, err := strconv.Atoi(trimmed)
	if err != nil {
		return errors.New("age must be a number")
	}
	if n < 1 || n > 120 {
		return errors.New("age must be between 1 and 120")
	}
	return nil
}

// FormValidator aggregates the field validators and backs the struct-tag
// rules used on request payloads.
type FormValidator struct {
	validate *validator.Validate
}

// New builds a FormValidator with the custom field rules registered, so the
// same constraints apply whether callers validate a form or a tagged struct.
func New() *FormValidator {
	v := validator.New()
	// Registration only fails for an empty tag name.
	_ = v.RegisterValidation("person_name", func(fl validator.FieldLevel) bool {
		return ValidateName(fl.Field().String()) == nil
	})
	_ = v.RegisterValidation("simple_email", func(fl validator.FieldLevel) bool {
		return ValidateEmail(fl.Field().String()) == nil
	})
	_ = v.RegisterValidation("age_range", func(fl validator.FieldLevel) bool {
		return ValidateAge(fl.Field().String()) == nil
	})
	return &FormValidator{validate: v}
}

// ValidateForm runs all three field validators and returns the aggregate
// error set. The form is submittable iff the returned set is empty.
func (fv *FormValidator) ValidateForm(form models.UserForm) FieldErrors {
	errs := FieldErrors{}
	if err := ValidateName(form.Name); err != nil {
		errs["name"] = err.Error()
	}
	if err := ValidateEmail(form.Email); err != nil {
		errs["email"] = err.Error()
	}
	if err := ValidateAge(form.Age); err != nil {
		errs["age"] = err.Error()
	}
	return errs
}

// Struct validates any tagged struct, mirroring how handlers check bound
// request bodies.
func (fv *FormValidator) Struct(s interface{}) error {
	return fv.validate.Struct(s)
}

// MessagesFor flattens validator.ValidationErrors into a field->message map
// for HTTP responses.
func MessagesFor(err error) map[string]string {
	messages := make(map[string]string)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, e := range verrs {
			messages[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
		}
	}
	return messages
}
