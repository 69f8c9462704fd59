// Package grading runs a one-shot assessment of the finished sketch and the
// conversation that produced it, using the non-streaming generateContent
// endpoint rather than the live session.
package grading

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/sketchmentor/internal/transcript"
)

const (
	defaultModel   = "gemini-2.0-flash"
	defaultBaseURL = "https://generativelanguage.googleapis.com"

	// Placeholders used when the model response omits or garbles a field.
	PlaceholderGrade    = "ungraded"
	PlaceholderFeedback = "No feedback provided."
)

// Report is the structured grading outcome.
type Report struct {
	Grade    string `json:"grade"`
	Feedback string `json:"feedback"`
}

// Grader assesses a session against a rubric.
type Grader struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// Option configures a Grader.
type Option func(*Grader)

// WithModel overrides the grading model.
func WithModel(model string) Option {
	return func(g *Grader) {
		if model != "" {
			g.model = model
		}
	}
}

// WithBaseURL overrides the API base URL, mainly for tests.
func WithBaseURL(baseURL string) Option {
	return func(g *Grader) {
		if baseURL != "" {
			g.baseURL = strings.TrimSuffix(baseURL, "/")
		}
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Grader) {
		if c != nil {
			g.httpClient = c
		}
	}
}

// New creates a Grader with the given API key.
func New(apiKey string, opts ...Option) *Grader {
	g := &Grader{
		apiKey:     apiKey,
		model:      defaultModel,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// BuildPrompt renders the grading instruction: the rubric, then the
// conversation as one "role: text" line per entry. An empty rubric falls back
// to a generic criterion; an empty history is stated explicitly so the model
// does not hallucinate a conversation.
func BuildPrompt(history []transcript.Entry, rubric string) string {
	var sb strings.Builder
	sb.WriteString("You are grading a student's sketch and the tutoring conversation around it.\n")
	sb.WriteString("Assess how well the drawing satisfies this exercise:\n")
	if strings.TrimSpace(rubric) == "" {
		sb.WriteString("Evaluate the overall clarity and correctness of the drawing.\n")
	} else {
		sb.WriteString(strings.TrimSpace(rubric))
		sb.WriteString("\n")
	}
	sb.WriteString("\nConversation during the session:\n")
	if len(history) == 0 {
		sb.WriteString("(no conversation was recorded)\n")
	}
	for _, e := range history {
		sb.WriteString(string(e.Role))
		sb.WriteString(": ")
		sb.WriteString(e.Text)
		sb.WriteString("\n")
	}
	sb.WriteString("\nReply with a short letter or word grade and one paragraph of feedback.")
	return sb.String()
}

// ── Wire types ────────────────────────────────────────────────────────────────

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generationConfig struct {
	ResponseMIMEType string          `json:"responseMimeType,omitempty"`
	ResponseSchema   json.RawMessage `json:"responseSchema,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

var reportSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"grade": {"type": "string"},
		"feedback": {"type": "string"}
	},
	"required": ["grade", "feedback"]
}`)

// Grade submits the final board image and conversation history for
// assessment. Transport and HTTP failures are returned as errors; a reply the
// model structured badly degrades to placeholder fields instead.
func (g *Grader) Grade(ctx context.Context, boardJPEG []byte, history []transcript.Entry, rubric string) (Report, error) {
	parts := []part{{Text: BuildPrompt(history, rubric)}}
	if len(boardJPEG) > 0 {
		parts = append(parts, part{InlineData: &inlineData{
			MIMEType: "image/jpeg",
			Data:     base64.StdEncoding.EncodeToString(boardJPEG),
		}})
	}
	reqBody := generateRequest{
		Contents: []content{{Role: "user", Parts: parts}},
		GenerationConfig: &generationConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   reportSchema,
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return Report{}, fmt.Errorf("grading: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", g.baseURL, g.model, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return Report{}, fmt.Errorf("grading: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return Report{}, fmt.Errorf("grading: request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Report{}, fmt.Errorf("grading: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Report{}, fmt.Errorf("grading: API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var gr generateResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return Report{}, fmt.Errorf("grading: decode response: %w", err)
	}
	return parseReport(gr), nil
}

// parseReport extracts the structured report, substituting placeholders for
// anything missing or malformed.
func parseReport(gr generateResponse) Report {
	report := Report{Grade: PlaceholderGrade, Feedback: PlaceholderFeedback}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return report
	}
	var parsed Report
	if err := json.Unmarshal([]byte(gr.Candidates[0].Content.Parts[0].Text), &parsed); err != nil {
		return report
	}
	if strings.TrimSpace(parsed.Grade) != "" {
		report.Grade = parsed.Grade
	}
	if strings.TrimSpace(parsed.Feedback) != "" {
		report.Feedback = parsed.Feedback
	}
	return report
}
