package service

import (
	"errors"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"

	orgdomain "github.com/MatanSaban/GhostPostWebsite-sub000/internal/organization/domain"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/registration/domain"
)

const (
	minPasswordLength = 8
	// bcrypt ignores input past 72 bytes.
	maxPasswordLength = 72
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns the shared validator with the onboarding tags registered
// (password, slug, otpcode). Field errors are keyed by json name.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
		_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
			return ValidPassword(fl.Field().String())
		})
		_ = v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
			return orgdomain.ValidateSlug(fl.Field().String()) == nil
		})
		_ = v.RegisterValidation("otpcode", func(fl validator.FieldLevel) bool {
			code := fl.Field().String()
			if len(code) < 4 || len(code) > 8 {
				return false
			}
			for _, c := range code {
				if c < '0' || c > '9' {
					return false
				}
			}
			return true
		})
		validate = v
	})
	return validate
}

// ValidPassword enforces the password policy: 8 to 72 bytes with at least one letter and one digit.
func ValidPassword(p string) bool {
	if len(p) < minPasswordLength || len(p) > maxPasswordLength {
		return false
	}
	var letter, digit bool
	for _, c := range p {
		switch {
		case unicode.IsLetter(c):
			letter = true
		case unicode.IsDigit(c):
			digit = true
		}
	}
	return letter && digit
}

// validateStruct runs the struct tags and converts failures into a domain.ValidationError.
func validateStruct(in any) error {
	err := Validator().Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return domain.NewValidationError("body", err.Error())
	}
	out := &domain.ValidationError{}
	for _, fe := range verrs {
		out.Add(fe.Field(), fieldMessage(fe))
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		if fe.Kind() == reflect.Bool {
			return "must be accepted"
		}
		return "is required"
	case "email":
		return "must be a valid email address"
	case "e164":
		return "must be an E.164 phone number (e.g. +15551234567)"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "password":
		return "must be " + strconv.Itoa(minPasswordLength) + "-" + strconv.Itoa(maxPasswordLength) + " characters and contain a letter and a digit"
	case "slug":
		return orgdomain.ErrInvalidSlug.Error()
	case "otpcode":
		return "must be a numeric code"
	case "oneof":
		return "must be one of " + fe.Param()
	}
	return "is invalid"
}
