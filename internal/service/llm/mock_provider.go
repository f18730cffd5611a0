package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MockProvider returns canned responses chosen by a marker contained in
// the prompt. Used in development and tests.
type MockProvider struct {
	mu        sync.Mutex
	available bool
	responses []cannedResponse
	fallback  string
	err       error
	calls     int
	prompts   []string
}

type cannedResponse struct {
	marker string
	text   string
}

// NewMockProvider creates a mock seeded with plausible responses for every
// prompt the generation services build.
func NewMockProvider() *MockProvider {
	m := &MockProvider{available: true}
	m.SetResponse("Syllabus analysis", "```json\n"+`{
  "topics": [
    {"title": "Introduction", "subtopics": ["Course overview", "Tooling"]},
    {"title": "Core concepts", "subtopics": ["Variables", "Control flow"]}
  ],
  "totalDuration": 6,
  "objectives": ["Understand the fundamentals"],
  "prerequisites": []
}`+"\n```")
	m.SetResponse("Lecture content", `{"title": "Lecture", "content": "An overview of the topic.", "keyPoints": ["First idea", "Second idea"], "examples": []}`)
	m.SetResponse("Slide deck", `{"title": "Slides", "slides": [{"title": "Overview", "bullets": ["What we cover"]}]}`)
	m.SetResponse("Learning resources", `[{"title": "Official documentation", "type": "documentation"}]`)
	return m
}

// SetResponse makes prompts containing marker return text. Later markers
// are checked after earlier ones.
func (m *MockProvider) SetResponse(marker, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.responses {
		if m.responses[i].marker == marker {
			m.responses[i].text = text
			return
		}
	}
	m.responses = append(m.responses, cannedResponse{marker: marker, text: text})
}

// SetFallback sets the response for prompts that match no marker.
func (m *MockProvider) SetFallback(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = text
}

// SetError makes every call fail with err. nil clears it.
func (m *MockProvider) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetAvailable controls whether the mock provider is available (for testing)
func (m *MockProvider) SetAvailable(available bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.available = available
}

// Calls returns how many completions were requested.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Prompts returns the prompts received so far.
func (m *MockProvider) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

func (m *MockProvider) IsAvailable() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.available
}

func (m *MockProvider) Complete(ctx context.Context, prompt string, _ CompletionOptions) (string, error) {
	m.mu.Lock()
	m.calls++
	m.prompts = append(m.prompts, prompt)
	available, err := m.available, m.err
	text, matched := m.match(prompt)
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !available {
		return "", fmt.Errorf("mock provider is not available")
	}
	if err != nil {
		return "", err
	}
	if !matched {
		return m.fallback, nil
	}
	return text, nil
}

func (m *MockProvider) match(prompt string) (string, bool) {
	for _, r := range m.responses {
		if strings.Contains(prompt, r.marker) {
			return r.text, true
		}
	}
	return "", false
}
