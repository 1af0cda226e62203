package nlu

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseIntent_ValidJSON(t *testing.T) {
	raw := `{
		"intent": "create_task",
		"project": "حملة التسويق",
		"inputs": {"query": "أضف مهام المراجعة"},
		"outputFormat": "markdown",
		"priority": "high",
		"confidence": 0.92
	}`

	intent := ParseIntent([]byte(raw), "أضف مهام المراجعة")
	assert.Equal(t, IntentCreateTask, intent.Kind)
	assert.Equal(t, "حملة التسويق", intent.Project)
	assert.Equal(t, "high", intent.Priority)
	assert.InDelta(t, 0.92, intent.Confidence, 0.001)
}

func TestParseIntent_MalformedJSONFallsBack(t *testing.T) {
	intent := ParseIntent([]byte(`{not json`), "original message")
	assert.Equal(t, IntentGeneralQuery, intent.Kind)
	assert.Equal(t, "original message", intent.Inputs.Query)
	assert.InDelta(t, 0.3, intent.Confidence, 0.001)
}

func TestParseIntent_UnknownKindFallsBack(t *testing.T) {
	intent := ParseIntent([]byte(`{"intent":"launch_rocket","confidence":0.99}`), "msg")
	assert.Equal(t, IntentGeneralQuery, intent.Kind)
	assert.Equal(t, "msg", intent.Inputs.Query)
}

func TestParseIntent_NormalizesLooseFields(t *testing.T) {
	raw := `{"intent":"summarize","outputFormat":"docx","priority":"ASAP","confidence":7}`
	intent := ParseIntent([]byte(raw), "msg")

	assert.Equal(t, IntentSummarize, intent.Kind)
	assert.Equal(t, "markdown", intent.OutputFormat)
	assert.Equal(t, "normal", intent.Priority)
	assert.InDelta(t, 0.5, intent.Confidence, 0.001)
}

func TestParseIntent_MissingConfidenceDefaults(t *testing.T) {
	intent := ParseIntent([]byte(`{"intent":"general_query"}`), "msg")
	assert.InDelta(t, 0.5, intent.Confidence, 0.001)
}

func TestFallback(t *testing.T) {
	intent := Fallback("ما حالة مشروعي؟")
	assert.Equal(t, IntentGeneralQuery, intent.Kind)
	assert.Equal(t, "ما حالة مشروعي؟", intent.Inputs.Query)
	assert.InDelta(t, 0.3, intent.Confidence, 0.001)
}

func TestIntentKind_Valid(t *testing.T) {
	assert.True(t, IntentCreateProject.Valid())
	assert.True(t, IntentGeneralQuery.Valid())
	assert.False(t, IntentKind("").Valid())
	assert.False(t, IntentKind("delete_everything").Valid())
}

func TestNormalizePriority(t *testing.T) {
	assert.Equal(t, "urgent", NormalizePriority("urgent"))
	assert.Equal(t, "low", NormalizePriority("low"))
	assert.Equal(t, "normal", NormalizePriority(""))
	assert.Equal(t, "normal", NormalizePriority("critical"))
}
