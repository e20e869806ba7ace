package validators

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"insightforge.com/insightforge/internal/constants"
	dto "insightforge.com/insightforge/internal/data_models"
)

// Validator adapts go-playground/validator to echo and reports failures as
// 422 responses keyed by JSON field name.
type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("json_payload", func(fl validator.FieldLevel) bool {
		raw, ok := fl.Field().Interface().(json.RawMessage)
		if !ok {
			return false
		}
		_, err := NormalizeJSONPayload(raw)
		return err == nil
	})

	_ = v.RegisterValidation("task_type", func(fl validator.FieldLevel) bool {
		return constants.IsSupportedTaskType(constants.TaskType(fl.Field().String()))
	})

	v.RegisterStructValidation(resultCallbackRules, dto.ResultCallbackRequest{})

	return &Validator{validate: v}
}

func (v *Validator) Validate(i interface{}) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = describe(fe)
	}

	return echo.NewHTTPError(http.StatusUnprocessableEntity, echo.Map{
		"message": "the given data was invalid",
		"errors":  fields,
	})
}

func resultCallbackRules(sl validator.StructLevel) {
	req := sl.Current().Interface().(dto.ResultCallbackRequest)

	if req.Status == string(constants.StatusCompleted) && isNull(req.Result) {
		sl.ReportError(req.Result, "result", "Result", "required_if_completed", "")
	}
	if len(req.Result) > 0 && !json.Valid(req.Result) {
		sl.ReportError(req.Result, "result", "Result", "json", "")
	}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("the %s field is required", fe.Field())
	case "required_if_completed":
		return "the result field is required when status is completed"
	case "json_payload", "json":
		return fmt.Sprintf("the %s field must be valid JSON", fe.Field())
	case "task_type":
		return fmt.Sprintf("the selected %s is invalid", fe.Field())
	case "oneof":
		return fmt.Sprintf("the %s field must be one of: %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("the %s field must not be greater than %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("the %s field is invalid", fe.Field())
	}
}

// NormalizeJSONPayload accepts either a JSON value or a JSON string whose
// contents are themselves JSON, and returns the decoded value. null is
// rejected.
func NormalizeJSONPayload(raw json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if isNull(trimmed) {
		return nil, errors.New("payload is empty")
	}
	if !json.Valid(trimmed) {
		return nil, errors.New("payload is not valid JSON")
	}

	if trimmed[0] != '"' {
		return json.RawMessage(trimmed), nil
	}

	var encoded string
	if err := json.Unmarshal(trimmed, &encoded); err != nil {
		return nil, err
	}
	inner := bytes.TrimSpace([]byte(encoded))
	if isNull(inner) || !json.Valid(inner) {
		return nil, errors.New("payload string does not contain valid JSON")
	}
	return json.RawMessage(inner), nil
}

func isNull(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
