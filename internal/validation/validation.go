// Package validation はgo-playground/validatorによる入力検証と、model.APIErrorへの変換を提供する。
package validation

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/salonlink/internal/model"
)

// Validator は構造体タグに基づく入力検証を行う。並行利用可能。
type Validator struct {
	validate *validator.Validate
}

// New はjsonタグ名をフィールド名として報告するValidatorを生成する。
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return strings.ToLower(f.Name)
		}
		return name
	})
	return &Validator{validate: v}
}

// Struct はsを検証し、最初に違反したフィールドをmodel.APIError（validation）として返す。
// 違反がない場合はnilを返す。
func (v *Validator) Struct(s any) *model.APIError {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return model.NewValidationError(fe.Field(), reason(fe))
	}
	return model.NewInvalidRequestError()
}

// Var は単一の値をtagで検証する。
func (v *Validator) Var(field string, value any, tag string) *model.APIError {
	err := v.validate.Var(value, tag)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return model.NewValidationError(field, reason(verrs[0]))
	}
	return model.NewValidationError(field, "is invalid")
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "len":
		return "must be exactly " + fe.Param() + " characters"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "numeric":
		return "must contain digits only"
	case "uuid", "uuid4":
		return "must be a valid UUID"
	case "url", "http_url":
		return "must be a valid URL"
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "lte":
		return "must be less than or equal to " + fe.Param()
	default:
		return "is invalid"
	}
}
