package nlu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	openAIAPIBase    = "https://api.openai.com/v1"
	defaultModel     = "gpt-4o"
	defaultMaxTokens = 1000
)

const classifySystemPrompt = `أنت مساعد ذكي لمنصة نبض لإدارة المشاريع. حلل طلب المستخدم وحدد النية (intent) والتفاصيل المطلوبة.

أنواع النوايا المتاحة:
- analyze_data: تحليل بيانات من ملفات أو مصادر
- create_report: إنشاء تقرير جديد
- summarize: تلخيص محتوى أو ملف
- search_files: البحث في الملفات
- create_project: إنشاء مشروع جديد
- create_task: إنشاء مهمة جديدة
- general_query: استفسار عام

أجب بصيغة JSON فقط:
{
  "intent": "نوع_النية",
  "project": "اسم المشروع إن وجد",
  "inputs": {
    "files": ["قائمة الملفات إن وجدت"],
    "timeRange": "الفترة الزمنية إن وجدت",
    "query": "نص الاستفسار"
  },
  "outputFormat": "markdown|json|pdf|html",
  "priority": "low|normal|high",
  "confidence": 0.0-1.0
}`

const generateTasksSystemPrompt = `بناءً على النية المحللة، أنشئ قائمة مهام مفصلة لتنفيذ الطلب.
أجب بصيغة JSON كائن يحتوي على مصفوفة المهام:
{
  "tasks": [
    {
      "title": "عنوان المهمة",
      "description": "وصف المهمة بالتفصيل",
      "priority": "low|normal|high|urgent"
    }
  ]
}`

const analyzeSystemPrompt = `أنت محلل مستندات خبير. حلل المحتوى التالي وقدم ملخصاً شاملاً يتضمن:
1. النقاط الرئيسية
2. البيانات المهمة (أرقام، تواريخ، إحصائيات)
3. الاستنتاجات
4. التوصيات إن وجدت

أجب باللغة العربية.`

// Client talks to the OpenAI chat-completions API. It implements Classifier,
// TaskGenerator, ReplyGenerator and DocumentAnalyzer.
type Client struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
	logger  zerolog.Logger
}

// Option configures the client.
type Option func(*Client)

// WithModel overrides the default model.
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

// WithBaseURL overrides the API base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(url, "/") }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// NewClient constructs a new OpenAI client.
func NewClient(apiKey string, logger zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: openAIAPIBase,
		model:   defaultModel,
		client:  &http.Client{Timeout: 120 * time.Second},
		logger:  logger.With().Str("component", "nlu").Logger(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ---- OpenAI wire types ----

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// complete sends a single system+user completion and returns the raw text.
func (c *Client) complete(ctx context.Context, system, user string, temperature float64, maxTokens int, jsonMode bool) (string, error) {
	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
	if jsonMode {
		req.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("openai http: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	var cr chatResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if cr.Error != nil {
		return "", fmt.Errorf("openai api error %s: %s", cr.Error.Type, cr.Error.Message)
	}
	if len(cr.Choices) == 0 {
		return "", fmt.Errorf("openai: empty choices")
	}

	return cr.Choices[0].Message.Content, nil
}

// Classify turns free text into a validated Intent. Failures degrade to the
// low-confidence general query rather than surfacing an error.
func (c *Client) Classify(ctx context.Context, text string) Intent {
	out, err := c.complete(ctx, classifySystemPrompt, text, 0.3, 0, true)
	if err != nil {
		c.logger.Warn().Err(err).Msg("intent classification failed, using fallback")
		return Fallback(text)
	}

	intent := ParseIntent([]byte(out), text)
	c.logger.Debug().
		Str("intent", string(intent.Kind)).
		Float64("confidence", intent.Confidence).
		Msg("intent classified")
	return intent
}

// GenerateTasks asks the model for a task list matching the intent. Returns
// an empty slice on any failure.
func (c *Client) GenerateTasks(ctx context.Context, intent Intent, projectID string) []TaskDraft {
	payload, err := json.Marshal(intent)
	if err != nil {
		return nil
	}

	out, err := c.complete(ctx, generateTasksSystemPrompt, string(payload), 0.5, 0, true)
	if err != nil {
		c.logger.Warn().Err(err).Str("project_id", projectID).Msg("task generation failed")
		return nil
	}

	var result struct {
		Tasks []TaskDraft `json:"tasks"`
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		c.logger.Warn().Err(err).Msg("task generation returned malformed JSON")
		return nil
	}

	drafts := make([]TaskDraft, 0, len(result.Tasks))
	for _, d := range result.Tasks {
		if d.Title == "" {
			continue
		}
		d.Priority = NormalizePriority(d.Priority)
		drafts = append(drafts, d)
	}
	return drafts
}

// GenerateReply produces a conversational Arabic reply, optionally seeded
// with project context.
func (c *Client) GenerateReply(ctx context.Context, message string, rc *ReplyContext) (string, error) {
	system := "أنت نبض، مساعد ذكي لإدارة المشاريع. أجب باللغة العربية بطريقة ودية ومختصرة."

	if rc != nil {
		var sb strings.Builder
		sb.WriteString(system)
		if rc.ProjectName != "" {
			sb.WriteString("\n\nأنت تعمل على مشروع: " + rc.ProjectName)
		}
		if len(rc.RecentTasks) > 0 {
			sb.WriteString("\n\nالمهام الأخيرة:")
			for _, task := range rc.RecentTasks {
				sb.WriteString(fmt.Sprintf("\n- %s (%s)", task.Title, task.Status))
			}
		}
		if len(rc.FileNames) > 0 {
			sb.WriteString("\n\nالملفات المتاحة:\n" + strings.Join(rc.FileNames, ", "))
		}
		system = sb.String()
	}

	out, err := c.complete(ctx, system, message, 0.7, defaultMaxTokens, false)
	if err != nil {
		return "", err
	}
	if out == "" {
		return "عذراً، لم أتمكن من معالجة طلبك.", nil
	}
	return out, nil
}

// Analyze summarizes document content in Arabic.
func (c *Client) Analyze(ctx context.Context, content string) (string, error) {
	out, err := c.complete(ctx, analyzeSystemPrompt, content, 0.3, 2000, false)
	if err != nil {
		return "", err
	}
	if out == "" {
		return "لم يتم العثور على محتوى للتحليل.", nil
	}
	return out, nil
}
