package httputil

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/platinummonkey/dernek/pkg/apierror"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns the shared struct validator. Field names in issues are the JSON names.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			if name == "" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// Validate checks the `validate` struct tags of v and returns an
// *apierror.ValidationError listing every failing field
func Validate(v interface{}) error {
	err := Validator().Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate: %w", err)
	}

	verr := &apierror.ValidationError{}
	for _, fe := range fieldErrs {
		verr.Add(fieldPath(fe), issueMessage(fe))
	}
	return verr
}

// fieldPath drops the top-level struct name from the namespace
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

func issueMessage(fe validator.FieldError) string {
	isString := fe.Kind() == reflect.String
	switch fe.Tag() {
	case "required":
		return "Bu alan zorunludur"
	case "email":
		return "Geçerli bir e-posta adresi giriniz"
	case "min":
		if isString {
			return fmt.Sprintf("En az %s karakter olmalıdır", fe.Param())
		}
		return fmt.Sprintf("En az %s olmalıdır", fe.Param())
	case "max":
		if isString {
			return fmt.Sprintf("En fazla %s karakter olmalıdır", fe.Param())
		}
		return fmt.Sprintf("En fazla %s olmalıdır", fe.Param())
	case "gt":
		return fmt.Sprintf("%s değerinden büyük olmalıdır", fe.Param())
	case "gte":
		return fmt.Sprintf("En az %s olmalıdır", fe.Param())
	case "oneof":
		return fmt.Sprintf("Şunlardan biri olmalıdır: %s", fe.Param())
	case "len":
		return fmt.Sprintf("Tam olarak %s karakter olmalıdır", fe.Param())
	case "numeric":
		return "Sayısal bir değer olmalıdır"
	case "datetime":
		return fmt.Sprintf("Tarih formatı %s olmalıdır", fe.Param())
	}
	return fmt.Sprintf("Geçersiz değer (%s)", fe.Tag())
}
