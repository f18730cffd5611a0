package recovery

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"coursecraft-backend/internal/domain"
)

type tierCounter struct {
	mu     sync.Mutex
	counts map[domain.Tier]int
}

func (c *tierCounter) RecordRecovery(_ domain.Kind, tier domain.Tier) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = make(map[domain.Tier]int)
	}
	c.counts[tier]++
}

func newTestPipeline(t *testing.T, opts ...Option) *Pipeline {
	t.Helper()
	return NewPipeline(append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)...)
}

func TestRecoverConcreteScenario(t *testing.T) {
	p := newTestPipeline(t)
	raw := "Here is your result:\n```json\n{title: \"Intro\", subtopics: [\"A\",\"B\",],}\n```"

	obj := p.Recover(raw, domain.KindTopic)

	assert.Equal(t, domain.TierRepaired, obj.Tier)
	assert.False(t, obj.Approximate)
	topic, ok := obj.Topic()
	require.True(t, ok)
	assert.Equal(t, &domain.Topic{Title: "Intro", Subtopics: domain.StringList{"A", "B"}}, topic)
}

func TestRecoverExactRoundTrip(t *testing.T) {
	p := newTestPipeline(t)

	tests := []struct {
		name string
		kind domain.Kind
		json string
	}{
		{"topic", domain.KindTopic, `{"title":"Intro","subtopics":["A","B"]}`},
		{"syllabus", domain.KindSyllabusAnalysis, `{"topics":[{"title":"Basics","subtopics":["vars","loops"]}],"totalDuration":12.5,"objectives":["write programs"],"prerequisites":[]}`},
		{"content", domain.KindContentDraft, `{"title":"Loops","content":"Loops repeat work.","keyPoints":["for","while"],"examples":["for i := 0; i < 3; i++ {}"]}`},
		{"slides", domain.KindSlideOutline, `{"title":"Deck","slides":[{"title":"One","bullets":["a","b"],"notes":"say hi"}]}`},
		{"resources", domain.KindResourceList, `[{"id":"r-1","title":"Go Tour","url":"https://go.dev/tour","type":"tutorial","description":"interactive"}]`},
	}

	for _, tt := range tests {
		for _, wrap := range []struct {
			name string
			fn   func(string) string
		}{
			{"bare", func(s string) string { return s }},
			{"fenced", func(s string) string { return "Sure thing!\n```json\n" + s + "\n```\nAnything else?" }},
			{"pretty", func(s string) string {
				var v any
				require.NoError(t, json.Unmarshal([]byte(s), &v))
				out, err := json.MarshalIndent(v, "", "  ")
				require.NoError(t, err)
				return string(out)
			}},
		} {
			t.Run(tt.name+"/"+wrap.name, func(t *testing.T) {
				obj := p.Recover(wrap.fn(tt.json), tt.kind)
				require.Equal(t, domain.TierExact, obj.Tier)
				assert.Equal(t, tt.kind, obj.Kind)

				out, err := json.Marshal(obj.Payload)
				require.NoError(t, err)
				assert.JSONEq(t, tt.json, string(out))
			})
		}
	}
}

func TestRecoverSingleDefectIsRepaired(t *testing.T) {
	p := newTestPipeline(t)

	tests := []struct {
		name string
		kind domain.Kind
		raw  string
	}{
		{"trailing comma in list", domain.KindTopic, `{"title": "Intro", "subtopics": ["A", "B",]}`},
		{"trailing comma in object", domain.KindContentDraft, `{"title": "T", "content": "c", "keyPoints": ["k"],}`},
		{"unquoted key", domain.KindTopic, `{title: "Intro", "subtopics": ["A"]}`},
		{"unquoted nested key", domain.KindSlideOutline, `{"title": "Deck", "slides": [{title: "One", "bullets": []}]}`},
		{"unterminated trailing string", domain.KindTopic, `{"title": "Intro", "subtopics": ["A", "B"], "summary": "the model stopped mid sent`},
		{"unterminated string in list", domain.KindTopic, `{"title": "Intro", "subtopics": ["A", "B`},
		{"missing comma", domain.KindTopic, `{"title": "Intro" "subtopics": ["A"]}`},
		{"missing closers", domain.KindSyllabusAnalysis, `{"topics": [{"title": "Basics", "subtopics": []}], "totalDuration": 3, "objectives": [], "prerequisites": [`},
		{"resource list trailing comma", domain.KindResourceList, `[{"title": "Go Tour"},]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj := p.Recover(tt.raw, tt.kind)
			assert.Equal(t, domain.TierRepaired, obj.Tier)
			assert.False(t, obj.Approximate)
			assert.NoError(t, p.Validator().ValidatePayload(obj.Payload))
		})
	}
}

func TestRecoverProseIsHeuristic(t *testing.T) {
	p := newTestPipeline(t)
	prose := "Loops let a program repeat work. They are everywhere.\n\nKey points:\n- for loops\n- while loops\n"

	for _, kind := range domain.AllKinds() {
		t.Run(string(kind), func(t *testing.T) {
			obj := p.Recover(prose, kind)
			assert.Equal(t, domain.TierHeuristic, obj.Tier)
			assert.True(t, obj.Approximate)
			assert.Equal(t, kind, obj.Kind)
			assert.NoError(t, p.Validator().ValidatePayload(obj.Payload))
		})
	}
}

func TestRecoverEmptyInputSatisfiesContracts(t *testing.T) {
	p := newTestPipeline(t)
	for _, kind := range domain.AllKinds() {
		for _, raw := range []string{"", "   ", "{", "```json\n```", "[]", "null"} {
			obj := p.Recover(raw, kind)
			assert.Equal(t, domain.TierHeuristic, obj.Tier, "kind=%s raw=%q", kind, raw)
			assert.NoError(t, p.Validator().ValidatePayload(obj.Payload), "kind=%s raw=%q", kind, raw)
		}
	}
}

func TestRecoverUnrepairableFallsBackToHeuristic(t *testing.T) {
	p := newTestPipeline(t)
	obj := p.Recover(`{"title": "Partial Topic", "subtopics": 42}`, domain.KindTopic)

	assert.Equal(t, domain.TierHeuristic, obj.Tier)
	topic, ok := obj.Topic()
	require.True(t, ok)
	assert.Equal(t, "Partial Topic", topic.Title)
	assert.NotNil(t, topic.Subtopics)
}

func TestRecoverUnknownKind(t *testing.T) {
	p := newTestPipeline(t)
	obj := p.Recover(`{"title":"x"}`, domain.Kind("poem"))

	assert.Equal(t, domain.TierHeuristic, obj.Tier)
	assert.NotNil(t, obj.Payload)
}

func TestRecoverReportsTierToObserver(t *testing.T) {
	counter := &tierCounter{}
	p := newTestPipeline(t, WithObserver(counter))

	p.Recover(`{"title":"a","subtopics":[]}`, domain.KindTopic)
	p.Recover(`{"title":"a","subtopics":[],}`, domain.KindTopic)
	p.Recover(`no structure here`, domain.KindTopic)

	assert.Equal(t, map[domain.Tier]int{
		domain.TierExact:     1,
		domain.TierRepaired:  1,
		domain.TierHeuristic: 1,
	}, counter.counts)
}

func TestRecoverWithCustomRepairs(t *testing.T) {
	singleQuotes := Repair{Name: "single_quotes", Apply: func(s string) string {
		return strings.ReplaceAll(s, "'", `"`)
	}}
	p := newTestPipeline(t, WithRepairs(singleQuotes))

	obj := p.Recover(`{'title': 'Intro', 'subtopics': ['A']}`, domain.KindTopic)
	assert.Equal(t, domain.TierRepaired, obj.Tier)
}

func TestRecoverResponse(t *testing.T) {
	p := newTestPipeline(t)
	obj := p.RecoverResponse(domain.RawModelResponse{
		Prompt:     "Generate a topic",
		Text:       `{"title":"Intro","subtopics":["A"]}`,
		ReceivedAt: time.Now(),
	}, domain.KindTopic)

	want := domain.NewRecoveredObject(&domain.Topic{Title: "Intro", Subtopics: domain.StringList{"A"}}, domain.TierExact)
	if diff := cmp.Diff(want, obj); diff != "" {
		t.Errorf("unexpected object (-want +got):\n%s", diff)
	}
}
