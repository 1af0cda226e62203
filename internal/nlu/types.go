// Package nlu defines the structured intent model and the language-model
// collaborator interfaces consumed by the chat dispatcher.
package nlu

import (
	"context"
	"encoding/json"
)

// IntentKind is a closed enum of recognized user intents.
type IntentKind string

const (
	IntentAnalyzeData   IntentKind = "analyze_data"
	IntentCreateReport  IntentKind = "create_report"
	IntentSummarize     IntentKind = "summarize"
	IntentSearchFiles   IntentKind = "search_files"
	IntentCreateProject IntentKind = "create_project"
	IntentCreateTask    IntentKind = "create_task"
	IntentGeneralQuery  IntentKind = "general_query"
)

// Valid reports whether k is a recognized intent kind.
func (k IntentKind) Valid() bool {
	switch k {
	case IntentAnalyzeData, IntentCreateReport, IntentSummarize,
		IntentSearchFiles, IntentCreateProject, IntentCreateTask,
		IntentGeneralQuery:
		return true
	}
	return false
}

// IntentInputs carries optional parameters extracted from the user's text.
type IntentInputs struct {
	Files     []string `json:"files,omitempty"`
	TimeRange string   `json:"timeRange,omitempty"`
	Query     string   `json:"query,omitempty"`
}

// Intent is a validated classification of one user message. Classification
// is advisory: every field except Kind and Confidence may be empty.
type Intent struct {
	Kind         IntentKind   `json:"intent"`
	Project      string       `json:"project,omitempty"`
	Inputs       IntentInputs `json:"inputs,omitempty"`
	OutputFormat string       `json:"outputFormat,omitempty"`
	Priority     string       `json:"priority,omitempty"`
	Confidence   float64      `json:"confidence"`
}

// TaskDraft is a proposed task produced by the task generator.
type TaskDraft struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
}

// TaskBrief is a compact task reference used as reply context.
type TaskBrief struct {
	Title  string `json:"title"`
	Status string `json:"status"`
}

// ReplyContext carries contextual hints for reply generation.
type ReplyContext struct {
	ProjectName string
	RecentTasks []TaskBrief
	FileNames   []string
}

// Classifier turns free text into an Intent. Implementations never surface
// errors: internal failures degrade to a low-confidence general query.
type Classifier interface {
	Classify(ctx context.Context, text string) Intent
}

// TaskGenerator proposes tasks for an intent. Empty on failure.
type TaskGenerator interface {
	GenerateTasks(ctx context.Context, intent Intent, projectID string) []TaskDraft
}

// ReplyGenerator produces a conversational reply.
type ReplyGenerator interface {
	GenerateReply(ctx context.Context, message string, rc *ReplyContext) (string, error)
}

// DocumentAnalyzer summarizes document content.
type DocumentAnalyzer interface {
	Analyze(ctx context.Context, content string) (string, error)
}

const fallbackConfidence = 0.3

// Fallback returns the degraded intent used when classification fails or
// produces an unusable result.
func Fallback(message string) Intent {
	return Intent{
		Kind:       IntentGeneralQuery,
		Inputs:     IntentInputs{Query: message},
		Confidence: fallbackConfidence,
	}
}

var validOutputFormats = map[string]bool{
	"markdown": true, "json": true, "pdf": true, "html": true,
}

var validPriorities = map[string]bool{
	"low": true, "normal": true, "high": true, "urgent": true,
}

// NormalizePriority maps an arbitrary priority string onto the closed set,
// defaulting to "normal".
func NormalizePriority(p string) string {
	if validPriorities[p] {
		return p
	}
	return "normal"
}

// ParseIntent validates raw classifier JSON against the intent schema.
// External model output is never trusted: unknown kinds, out-of-range
// confidence and malformed JSON all degrade to Fallback(message).
func ParseIntent(raw []byte, message string) Intent {
	var in Intent
	if err := json.Unmarshal(raw, &in); err != nil {
		return Fallback(message)
	}

	if !in.Kind.Valid() {
		return Fallback(message)
	}

	if !validOutputFormats[in.OutputFormat] {
		in.OutputFormat = "markdown"
	}
	in.Priority = NormalizePriority(in.Priority)

	if in.Confidence < 0 || in.Confidence > 1 {
		in.Confidence = 0.5
	}
	if in.Confidence == 0 {
		in.Confidence = 0.5
	}

	return in
}
