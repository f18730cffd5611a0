package generation

import (
	"fmt"
	"strings"
)

func buildSyllabusPrompt(syllabus string) string {
	return fmt.Sprintf(`Syllabus analysis. You are an experienced curriculum designer. Read the syllabus below and extract its structure.

Syllabus:
%s

Return a JSON object with this structure:
{
  "topics": [{"title": "Topic title", "subtopics": ["Subtopic", "Subtopic"]}],
  "totalDuration": 12,
  "objectives": ["Learning objective"],
  "prerequisites": ["Prerequisite"]
}

Rules:
1. totalDuration is the total course length in hours
2. Use empty lists when the syllabus names no objectives or prerequisites
3. Return only the JSON object`, strings.TrimSpace(syllabus))
}

func buildContentPrompt(req ContentRequest) string {
	audience := req.Audience
	if audience == "" {
		audience = "undergraduate students"
	}
	return fmt.Sprintf(`Lecture content. Write lecture material on "%s" for %s.

Cover these subtopics:
%s

Return a JSON object with this structure:
{
  "title": "Lecture title",
  "content": "Full lecture text",
  "keyPoints": ["Key point"],
  "examples": ["Worked example"]
}

Return only the JSON object.`, req.Topic, audience, bulletList(req.Subtopics))
}

func buildSlidesPrompt(req SlideRequest) string {
	count := req.SlideCount
	if count <= 0 {
		count = defaultSlideCount
	}
	return fmt.Sprintf(`Slide deck. Create an outline of %d slides on "%s".

Source material:
%s

Return a JSON object with this structure:
{
  "title": "Deck title",
  "slides": [{"title": "Slide title", "bullets": ["Bullet"], "notes": "Speaker notes"}]
}

Return only the JSON object.`, count, req.Topic, strings.TrimSpace(req.Content))
}

func buildResourcePrompt(topicID string, q ResourceQuery) string {
	var b strings.Builder
	b.WriteString("Learning resources. Suggest learning resources")
	if q.Query != "" {
		fmt.Fprintf(&b, " for %q", q.Query)
	}
	if topicID != "" {
		fmt.Fprintf(&b, " covering topic %s", topicID)
	}
	if q.ResultType != "" {
		fmt.Fprintf(&b, ". Only suggest resources of type %q", q.ResultType)
	}
	if q.Limit > 0 {
		fmt.Fprintf(&b, ". Suggest at most %d", q.Limit)
	}
	b.WriteString(`.

Return a JSON array with this structure:
[
  {"title": "Resource title", "url": "https://...", "type": "article", "description": "Why it helps"}
]

Return only the JSON array.`)
	return b.String()
}

func bulletList(items []string) string {
	if len(items) == 0 {
		return "- (choose appropriate subtopics)"
	}
	lines := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, "- "+item)
	}
	return strings.Join(lines, "\n")
}
