package validators

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dto "insightforge.com/insightforge/internal/data_models"
)

func TestNormalizeJSONPayload(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "object", raw: `{"text":"great product"}`, want: `{"text":"great product"}`},
		{name: "array", raw: `[1,2,3]`, want: `[1,2,3]`},
		{name: "encoded object", raw: `"{\"text\":\"hi\"}"`, want: `{"text":"hi"}`},
		{name: "string without json", raw: `"just text"`, wantErr: true},
		{name: "null", raw: `null`, wantErr: true},
		{name: "encoded null", raw: `"null"`, wantErr: true},
		{name: "empty", raw: ``, wantErr: true},
		{name: "broken", raw: `{"text":`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeJSONPayload(json.RawMessage(tt.raw))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func validationFields(t *testing.T, err error) map[string]string {
	t.Helper()

	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnprocessableEntity, httpErr.Code)

	body, ok := httpErr.Message.(echo.Map)
	require.True(t, ok)
	fields, ok := body["errors"].(map[string]string)
	require.True(t, ok)
	return fields
}

func TestValidate_UploadRequest(t *testing.T) {
	v := New()

	valid := dto.UploadRequest{
		Data:         json.RawMessage(`{"text":"great product"}`),
		TaskType:     "sentiment_analysis",
		ModelVersion: "v1",
	}
	assert.NoError(t, v.Validate(&valid))

	fields := validationFields(t, v.Validate(&dto.UploadRequest{}))
	assert.Contains(t, fields, "data")
	assert.Contains(t, fields, "task_type")
	assert.Contains(t, fields, "model_version")

	unknownType := valid
	unknownType.TaskType = "image_captioning"
	fields = validationFields(t, v.Validate(&unknownType))
	assert.Equal(t, "the selected task_type is invalid", fields["task_type"])

	nullData := valid
	nullData.Data = json.RawMessage(`null`)
	fields = validationFields(t, v.Validate(&nullData))
	assert.Contains(t, fields, "data")
}

func TestValidate_ResultCallbackRequest(t *testing.T) {
	v := New()

	completed := dto.ResultCallbackRequest{
		TaskID: "abc",
		Status: "completed",
		Result: json.RawMessage(`{"sentiment":"positive"}`),
	}
	assert.NoError(t, v.Validate(&completed))

	failed := dto.ResultCallbackRequest{TaskID: "abc", Status: "failed"}
	assert.NoError(t, v.Validate(&failed))

	missingResult := dto.ResultCallbackRequest{TaskID: "abc", Status: "completed", Result: json.RawMessage(`null`)}
	fields := validationFields(t, v.Validate(&missingResult))
	assert.Equal(t, "the result field is required when status is completed", fields["result"])

	badStatus := dto.ResultCallbackRequest{TaskID: "abc", Status: "processing"}
	fields = validationFields(t, v.Validate(&badStatus))
	assert.Contains(t, fields, "status")

	fields = validationFields(t, v.Validate(&dto.ResultCallbackRequest{}))
	assert.Contains(t, fields, "task_id")
	assert.Contains(t, fields, "status")
}
