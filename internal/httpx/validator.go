package httpx

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"bookshelf/internal/apperr"
)

var (
	validate = newValidator()

	messagesMu sync.RWMutex
	messages   = map[string]func(field, param string) string{}
)

// newValidator reports fields by their json name when they have one.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// RegisterValidation adds a custom tag. msg renders the failure message;
// nil falls back to "<field> is invalid".
func RegisterValidation(tag string, fn validator.Func, msg func(field, param string) string) {
	if err := validate.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register validation %q: %v", tag, err))
	}
	if msg != nil {
		messagesMu.Lock()
		messages[tag] = msg
		messagesMu.Unlock()
	}
}

// ValidateStruct checks s against its validate tags and returns one detail
// per failing field.
func ValidateStruct(s interface{}) []apperr.Detail {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []apperr.Detail{{Field: "", Message: err.Error()}}
	}

	details := make([]apperr.Detail, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		fieldName := strings.ToLower(field[:1]) + field[1:]
		details = append(details, apperr.Detail{
			Field:   fieldName,
			Message: message(fieldName, fe.Tag(), fe.Param()),
		})
	}
	return details
}

func message(field, tag, param string) string {
	messagesMu.RLock()
	custom := messages[tag]
	messagesMu.RUnlock()
	if custom != nil {
		return custom(field, param)
	}

	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, param)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, param)
	case "uuid", "uuid4":
		return fmt.Sprintf("%s must be a valid id", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(param, " ", ", "))
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
