// Package chat routes classified user messages to project mutations or
// conversational replies.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/nabdhq/nabd/internal/nlu"
	"github.com/nabdhq/nabd/internal/store"
)

// ErrProjectNotFound is returned when a project-scoped dispatch names an
// unknown project.
var ErrProjectNotFound = errors.New("project not found")

// failureReply is returned when reply generation fails. The user's message is
// already persisted at that point, so the conversation stays consistent.
const failureReply = "عذراً، حدث خطأ أثناء معالجة طلبك. يرجى المحاولة مرة أخرى."

const recentTaskLimit = 5

// Result is the outcome of one dispatched message.
type Result struct {
	Reply        string          `json:"message"`
	Intent       nlu.Intent      `json:"intent"`
	CreatedTasks []nlu.TaskDraft `json:"createdTasks"`
}

// messageMetadata is persisted on the assistant message.
type messageMetadata struct {
	Intent       nlu.Intent      `json:"intent"`
	CreatedTasks []nlu.TaskDraft `json:"createdTasks"`
}

// Dispatcher persists the conversation and acts on classified intents.
type Dispatcher struct {
	store      *store.Store
	classifier nlu.Classifier
	tasks      nlu.TaskGenerator
	replies    nlu.ReplyGenerator
	logger     zerolog.Logger
}

// NewDispatcher constructs a dispatcher over the given store and model
// collaborators.
func NewDispatcher(st *store.Store, classifier nlu.Classifier, tasks nlu.TaskGenerator, replies nlu.ReplyGenerator, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		store:      st,
		classifier: classifier,
		tasks:      tasks,
		replies:    replies,
		logger:     logger.With().Str("component", "chat").Logger(),
	}
}

// Dispatch handles one user message. The message is persisted before any
// classification or generation so it survives downstream failures. When
// projectID is non-empty the conversation and any created tasks are scoped
// to that project.
func (d *Dispatcher) Dispatch(ctx context.Context, userID, projectID, message string) (*Result, error) {
	var scoped *store.Project
	if projectID != "" {
		p, err := d.store.GetProject(projectID)
		if err != nil {
			return nil, fmt.Errorf("failed to load project: %w", err)
		}
		if p == nil {
			return nil, ErrProjectNotFound
		}
		scoped = p
	}

	if _, err := d.store.CreateMessage(&store.Message{
		UserID:    userID,
		ProjectID: projectID,
		Role:      store.RoleUser,
		Content:   message,
	}); err != nil {
		return nil, fmt.Errorf("failed to save user message: %w", err)
	}

	intent := d.classifier.Classify(ctx, message)
	d.logger.Debug().
		Str("user_id", userID).
		Str("intent", string(intent.Kind)).
		Float64("confidence", intent.Confidence).
		Msg("message classified")

	var (
		result *Result
		err    error
	)
	if scoped != nil {
		result, err = d.dispatchScoped(ctx, userID, scoped, message, intent)
	} else {
		result, err = d.dispatchGlobal(ctx, userID, message, intent)
	}
	if err != nil {
		return nil, err
	}

	meta, err := json.Marshal(messageMetadata{Intent: result.Intent, CreatedTasks: result.CreatedTasks})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message metadata: %w", err)
	}
	if _, err := d.store.CreateMessage(&store.Message{
		UserID:    userID,
		ProjectID: projectID,
		Role:      store.RoleAssistant,
		Content:   result.Reply,
		Metadata:  string(meta),
	}); err != nil {
		return nil, fmt.Errorf("failed to save assistant message: %w", err)
	}

	return result, nil
}

func (d *Dispatcher) dispatchGlobal(ctx context.Context, userID, message string, intent nlu.Intent) (*Result, error) {
	result := &Result{Intent: intent, CreatedTasks: []nlu.TaskDraft{}}

	switch {
	case intent.Kind == nlu.IntentCreateProject && intent.Inputs.Query != "":
		project, err := d.store.CreateProject(userID, intent.Inputs.Query, "")
		if err != nil {
			return nil, fmt.Errorf("failed to create project: %w", err)
		}
		result.Reply = fmt.Sprintf("تم إنشاء المشروع \"%s\" بنجاح. يمكنك الآن إضافة المهام إليه.", project.Name)

	case intent.Kind == nlu.IntentCreateTask && intent.Project != "":
		project, err := d.resolveProject(userID, intent.Project)
		if err != nil {
			return nil, err
		}
		if project == nil {
			result.Reply = d.generate(ctx, message, nil)
			break
		}
		created, err := d.createTasks(ctx, intent, project)
		if err != nil {
			return nil, err
		}
		result.CreatedTasks = created
		result.Reply = fmt.Sprintf("تم إنشاء %d مهام في مشروع \"%s\".", len(created), project.Name)

	default:
		rc, err := d.recentTaskContext(userID)
		if err != nil {
			return nil, err
		}
		result.Reply = d.generate(ctx, message, rc)
	}

	return result, nil
}

func (d *Dispatcher) dispatchScoped(ctx context.Context, userID string, project *store.Project, message string, intent nlu.Intent) (*Result, error) {
	result := &Result{Intent: intent, CreatedTasks: []nlu.TaskDraft{}}

	if intent.Kind == nlu.IntentCreateTask {
		created, err := d.createTasks(ctx, intent, project)
		if err != nil {
			return nil, err
		}
		result.CreatedTasks = created
		if len(created) > 0 {
			result.Reply = fmt.Sprintf("تم إنشاء %d مهام جديدة.", len(created))
		} else {
			result.Reply = d.generate(ctx, message, &nlu.ReplyContext{ProjectName: project.Name})
		}
		return result, nil
	}

	rc, err := d.projectContext(project)
	if err != nil {
		return nil, err
	}
	result.Reply = d.generate(ctx, message, rc)
	return result, nil
}

// resolveProject matches a model-extracted project reference against the
// caller's projects by case-insensitive substring containment in either
// direction, first match wins. The heuristic is deliberately loose: model
// output rarely reproduces a project name exactly.
func (d *Dispatcher) resolveProject(userID, ref string) (*store.Project, error) {
	projects, err := d.store.ListProjects(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	needle := strings.ToLower(ref)
	for _, p := range projects {
		name := strings.ToLower(p.Name)
		if strings.Contains(name, needle) || strings.Contains(needle, name) {
			return p, nil
		}
	}
	return nil, nil
}

// createTasks generates drafts for the intent and persists each one. Task
// inserts recompute the project's progress as a side effect.
func (d *Dispatcher) createTasks(ctx context.Context, intent nlu.Intent, project *store.Project) ([]nlu.TaskDraft, error) {
	drafts := d.tasks.GenerateTasks(ctx, intent, project.ID)
	for _, draft := range drafts {
		if _, err := d.store.CreateTask(&store.Task{
			ProjectID:   project.ID,
			Title:       draft.Title,
			Description: draft.Description,
			Priority:    draft.Priority,
		}); err != nil {
			return nil, fmt.Errorf("failed to create task: %w", err)
		}
	}
	return drafts, nil
}

func (d *Dispatcher) recentTaskContext(userID string) (*nlu.ReplyContext, error) {
	tasks, err := d.store.GetRecentTasks(userID, recentTaskLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent tasks: %w", err)
	}
	rc := &nlu.ReplyContext{}
	for _, t := range tasks {
		rc.RecentTasks = append(rc.RecentTasks, nlu.TaskBrief{Title: t.Title, Status: t.Status})
	}
	return rc, nil
}

func (d *Dispatcher) projectContext(project *store.Project) (*nlu.ReplyContext, error) {
	tasks, err := d.store.ListTasks(project.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load project tasks: %w", err)
	}
	files, err := d.store.ListProjectFiles(project.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load project files: %w", err)
	}

	rc := &nlu.ReplyContext{ProjectName: project.Name}
	for i, t := range tasks {
		if i == recentTaskLimit {
			break
		}
		rc.RecentTasks = append(rc.RecentTasks, nlu.TaskBrief{Title: t.Title, Status: t.Status})
	}
	for _, f := range files {
		rc.FileNames = append(rc.FileNames, f.Name)
	}
	return rc, nil
}

// generate wraps reply generation with the generic failure reply so a model
// outage never aborts the dispatch.
func (d *Dispatcher) generate(ctx context.Context, message string, rc *nlu.ReplyContext) string {
	reply, err := d.replies.GenerateReply(ctx, message, rc)
	if err != nil {
		d.logger.Warn().Err(err).Msg("reply generation failed")
		return failureReply
	}
	return reply
}
