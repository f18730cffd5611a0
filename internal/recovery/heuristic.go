package recovery

import (
	"regexp"
	"strconv"
	"strings"

	"coursecraft-backend/internal/domain"
)

const (
	placeholderTitle   = "Untitled"
	placeholderContent = "Content is not available at the moment."
	placeholderPoint   = "Review the material for this topic."
	maxTitleLength     = 120
)

var (
	listItemPattern = regexp.MustCompile(`^\s*(?:[-*•+]|\d+[.)])\s+(.+)$`)
	headingPattern  = regexp.MustCompile(`^\s*#{1,6}\s+(.+)$`)
	slidePattern    = regexp.MustCompile(`(?i)^\s*(?:#{1,6}\s*)?slide\s*\d+\s*[:.\-]?\s*(.*)$`)
	durationPattern = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:hours?|hrs?|h)\b`)
	urlPattern      = regexp.MustCompile(`https?://[^\s)\]>"']+`)
	sentenceSplit   = regexp.MustCompile(`[.!?]+\s+`)

	// a "title" key left behind in JSON too damaged to parse
	titleFieldPattern = regexp.MustCompile(`"?title"?\s*:\s*"([^"\n]+)`)
)

// Reconstructor derives a best-effort payload from unstructured prose. It
// never fails: required fields that cannot be found get placeholders.
type Reconstructor struct{}

// NewReconstructor creates a Reconstructor.
func NewReconstructor() *Reconstructor {
	return &Reconstructor{}
}

// Reconstruct builds a payload of kind from raw. Unknown kinds yield nil.
func (r *Reconstructor) Reconstruct(raw string, kind domain.Kind) domain.Payload {
	doc := newProse(raw)
	switch kind {
	case domain.KindTopic:
		return r.topic(doc)
	case domain.KindSyllabusAnalysis:
		return r.syllabus(doc)
	case domain.KindContentDraft:
		return r.contentDraft(doc)
	case domain.KindSlideOutline:
		return r.slides(doc)
	case domain.KindResourceList:
		return r.resources(doc)
	}
	return nil
}

func (r *Reconstructor) topic(doc *prose) domain.Payload {
	subtopics := doc.section("subtopics", "topics", "key points", "outline")
	if len(subtopics) == 0 {
		subtopics = doc.listItems()
	}
	return &domain.Topic{
		Title:     doc.title(),
		Subtopics: nonNil(subtopics),
	}
}

func (r *Reconstructor) syllabus(doc *prose) domain.Payload {
	var topics []domain.Topic
	for _, item := range doc.section("topics", "modules", "units", "weeks", "schedule", "course outline") {
		topics = append(topics, domain.Topic{Title: item, Subtopics: domain.StringList{}})
	}
	if len(topics) == 0 {
		for _, heading := range doc.headings() {
			if isKnownLabel(heading) {
				continue
			}
			topics = append(topics, domain.Topic{Title: heading, Subtopics: domain.StringList{}})
		}
	}
	if len(topics) == 0 {
		topics = []domain.Topic{{Title: doc.title(), Subtopics: domain.StringList{}}}
	}

	duration := doc.totalDuration()
	return &domain.SyllabusAnalysis{
		Topics:        topics,
		TotalDuration: &duration,
		Objectives:    nonNil(doc.section("learning objectives", "objectives", "learning outcomes", "outcomes", "goals")),
		Prerequisites: nonNil(doc.section("prerequisites", "requirements", "prior knowledge")),
	}
}

func (r *Reconstructor) contentDraft(doc *prose) domain.Payload {
	keyPoints := doc.section("key points", "key takeaways", "main points", "takeaways", "summary")
	if len(keyPoints) == 0 {
		keyPoints = doc.listItems()
	}
	if len(keyPoints) == 0 {
		keyPoints = doc.sentences(3)
	}
	if len(keyPoints) == 0 {
		keyPoints = []string{placeholderPoint}
	}

	content := doc.body()
	if content == "" {
		content = placeholderContent
	}
	return &domain.ContentDraft{
		Title:     doc.title(),
		Content:   content,
		KeyPoints: keyPoints,
		Examples:  doc.section("examples", "example"),
	}
}

func (r *Reconstructor) slides(doc *prose) domain.Payload {
	var slides []domain.Slide
	var current *domain.Slide
	flush := func() {
		if current != nil {
			slides = append(slides, *current)
		}
	}
	for _, line := range doc.lines {
		if m := slidePattern.FindStringSubmatch(line); m != nil {
			flush()
			title := cleanItem(m[1])
			if title == "" {
				title = "Slide " + strconv.Itoa(len(slides)+1)
			}
			current = &domain.Slide{Title: title, Bullets: domain.StringList{}}
			continue
		}
		if m := headingPattern.FindStringSubmatch(line); m != nil {
			if current == nil && len(slides) == 0 && doc.isTitleLine(line) {
				continue
			}
			flush()
			current = &domain.Slide{Title: cleanItem(m[1]), Bullets: domain.StringList{}}
			continue
		}
		if current == nil {
			continue
		}
		if m := listItemPattern.FindStringSubmatch(line); m != nil {
			current.Bullets = append(current.Bullets, cleanItem(m[1]))
		} else if text := strings.TrimSpace(line); text != "" && len(current.Bullets) == 0 {
			current.Notes = strings.TrimSpace(current.Notes + " " + text)
		}
	}
	flush()

	title := doc.title()
	if len(slides) == 0 {
		bullets := doc.listItems()
		if len(bullets) == 0 {
			bullets = doc.sentences(4)
		}
		slides = []domain.Slide{{Title: title, Bullets: nonNil(bullets)}}
	}
	return &domain.SlideOutline{Title: title, Slides: slides}
}

func (r *Reconstructor) resources(doc *prose) domain.Payload {
	var items []domain.ResourceSuggestion
	for _, line := range doc.lines {
		url := urlPattern.FindString(line)
		if url == "" {
			continue
		}
		title := cleanItem(strings.Replace(line, url, "", 1))
		title = strings.Trim(title, " -:–()[]")
		if title == "" {
			title = url
		}
		items = append(items, domain.ResourceSuggestion{Title: title, URL: url, Type: "link"})
	}
	if len(items) == 0 {
		for _, item := range doc.listItems() {
			items = append(items, domain.ResourceSuggestion{Title: item})
		}
	}
	if len(items) == 0 {
		items = []domain.ResourceSuggestion{{Title: doc.titleOr("Suggested reading"), Type: "placeholder"}}
	}
	return &domain.ResourceList{Resources: items}
}

// DefaultPayload returns the minimal valid object for kind.
func DefaultPayload(kind domain.Kind) domain.Payload {
	switch kind {
	case domain.KindSyllabusAnalysis:
		return &domain.SyllabusAnalysis{
			Topics:        []domain.Topic{{Title: placeholderTitle, Subtopics: domain.StringList{}}},
			TotalDuration: domain.Float64(0),
			Objectives:    domain.StringList{},
			Prerequisites: domain.StringList{},
		}
	case domain.KindContentDraft:
		return &domain.ContentDraft{
			Title:     placeholderTitle,
			Content:   placeholderContent,
			KeyPoints: domain.StringList{placeholderPoint},
		}
	case domain.KindSlideOutline:
		return &domain.SlideOutline{
			Title:  placeholderTitle,
			Slides: []domain.Slide{{Title: placeholderTitle, Bullets: domain.StringList{}}},
		}
	case domain.KindResourceList:
		return &domain.ResourceList{Resources: []domain.ResourceSuggestion{{Title: "Suggested reading", Type: "placeholder"}}}
	default:
		return &domain.Topic{Title: placeholderTitle, Subtopics: domain.StringList{}}
	}
}

// prose is raw model text split into lines.
type prose struct {
	raw   string
	lines []string
}

func newProse(raw string) *prose {
	text := strings.ReplaceAll(raw, "\r\n", "\n")
	text = strings.ReplaceAll(text, fence, "")
	return &prose{raw: strings.TrimSpace(text), lines: strings.Split(text, "\n")}
}

// title prefers a "title" field left in broken JSON, then the first
// heading, then the first plain line.
func (p *prose) title() string {
	return p.titleOr(placeholderTitle)
}

func (p *prose) titleOr(fallback string) string {
	if v := jsonTitle(p.raw); v != "" {
		return truncate(v)
	}
	if hs := p.headings(); len(hs) > 0 {
		return truncate(hs[0])
	}
	for _, line := range p.lines {
		text := strings.TrimSpace(line)
		if text == "" || listItemPattern.MatchString(line) || strings.ContainsAny(text[:1], "{}[]") {
			continue
		}
		if label, rest, ok := strings.Cut(text, ":"); ok && strings.EqualFold(strings.TrimSpace(label), "title") {
			text = rest
		}
		if t := cleanItem(text); t != "" {
			return truncate(t)
		}
	}
	return fallback
}

func (p *prose) isTitleLine(line string) bool {
	hs := p.headings()
	m := headingPattern.FindStringSubmatch(line)
	return len(hs) > 0 && m != nil && cleanItem(m[1]) == hs[0]
}

func (p *prose) headings() []string {
	var out []string
	for _, line := range p.lines {
		if m := headingPattern.FindStringSubmatch(line); m != nil {
			if h := cleanItem(m[1]); h != "" {
				out = append(out, h)
			}
		}
	}
	return out
}

// listItems returns every bulleted or numbered line.
func (p *prose) listItems() []string {
	var out []string
	for _, line := range p.lines {
		if m := listItemPattern.FindStringSubmatch(line); m != nil {
			if item := cleanItem(m[1]); item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}

// section finds a line labelled with one of labels and returns the list
// items that follow it, or the comma-separated values on the label line.
func (p *prose) section(labels ...string) []string {
	for i, line := range p.lines {
		_, inline, ok := matchLabel(line, labels)
		if !ok {
			continue
		}
		if inline != "" {
			return splitInline(inline)
		}

		var items []string
		for _, next := range p.lines[i+1:] {
			text := strings.TrimSpace(next)
			if text == "" {
				if len(items) > 0 {
					break
				}
				continue
			}
			m := listItemPattern.FindStringSubmatch(next)
			if m == nil {
				break
			}
			if item := cleanItem(m[1]); item != "" {
				items = append(items, item)
			}
		}
		if len(items) > 0 {
			return items
		}
	}
	return nil
}

// totalDuration prefers a line mentioning a total, otherwise sums every
// duration found in the text.
func (p *prose) totalDuration() float64 {
	for _, line := range p.lines {
		if !strings.Contains(strings.ToLower(line), "total") {
			continue
		}
		if m := durationPattern.FindStringSubmatch(line); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				return v
			}
		}
	}
	var sum float64
	for _, m := range durationPattern.FindAllStringSubmatch(p.raw, -1) {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			sum += v
		}
	}
	return sum
}

// body is the prose without headings and list items.
func (p *prose) body() string {
	var parts []string
	for _, line := range p.lines {
		text := strings.TrimSpace(line)
		if text == "" || headingPattern.MatchString(line) || listItemPattern.MatchString(line) {
			continue
		}
		if _, _, ok := matchLabel(line, knownLabels); ok {
			continue
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n")
}

func (p *prose) sentences(limit int) []string {
	var out []string
	for _, s := range sentenceSplit.Split(p.body(), -1) {
		if s = cleanItem(s); s != "" {
			out = append(out, s)
		}
		if len(out) == limit {
			break
		}
	}
	return out
}

var knownLabels = []string{
	"title", "subtopics", "topics", "key points", "key takeaways", "main points", "takeaways", "summary",
	"examples", "example", "objectives", "learning objectives", "learning outcomes", "outcomes", "goals",
	"prerequisites", "requirements", "prior knowledge", "modules", "units", "weeks", "schedule",
	"course outline", "outline", "resources",
}

func isKnownLabel(text string) bool {
	_, _, ok := matchLabel(text, knownLabels)
	return ok
}

// matchLabel recognises "Key Points:", "## Key points", "**Objectives**".
func matchLabel(line string, labels []string) (string, string, bool) {
	text := strings.TrimSpace(line)
	text = strings.TrimLeft(text, "#* ")
	head, rest, hasColon := strings.Cut(text, ":")
	head = strings.ToLower(strings.Trim(head, "*_ "))
	for _, label := range labels {
		if head == label {
			if hasColon {
				return label, strings.TrimSpace(strings.Trim(rest, "*_ ")), true
			}
			return label, "", true
		}
	}
	return "", "", false
}

func splitInline(s string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' }) {
		if item := cleanItem(part); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func jsonTitle(raw string) string {
	if m := titleFieldPattern.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func cleanItem(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "*_`\"")
	return strings.TrimSpace(strings.TrimSuffix(s, ":"))
}

func truncate(s string) string {
	runes := []rune(s)
	if len(runes) <= maxTitleLength {
		return s
	}
	return strings.TrimSpace(string(runes[:maxTitleLength]))
}

func nonNil(items []string) domain.StringList {
	if items == nil {
		return domain.StringList{}
	}
	return items
}
