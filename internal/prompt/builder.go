package prompt

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"quokkaq/internal/corpus"
)

// CourseType selects the answering style template.
type CourseType string

const (
	CourseTypeCS      CourseType = "cs"
	CourseTypeMath    CourseType = "math"
	CourseTypeGeneral CourseType = "general"
)

// Course identifies the course a prompt is built for.
type Course struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// ExcerptBlock is one retrieved material with its display excerpt.
type ExcerptBlock struct {
	Material        corpus.Material
	Excerpt         string
	Relevance       float64
	MatchedKeywords []string
}

// Options tune prompt construction.
type Options struct {
	StructuredOutput bool
	MaxContextTokens int
}

// CourseContext is the assembled system prompt plus bookkeeping about what
// made it in under the token budget.
type CourseContext struct {
	CourseID        string     `json:"course_id"`
	CourseType      CourseType `json:"course_type"`
	SystemPrompt    string     `json:"system_prompt"`
	ContextText     string     `json:"context_text"`
	IncludedIDs     []string   `json:"included_ids"`
	EstimatedTokens int        `json:"estimated_tokens"`
	BuiltAt         time.Time  `json:"built_at"`
}

const (
	DefaultMaxContextTokens = 4000

	noMaterialsText = "No relevant course materials were found for this question."

	structuredOutputInstruction = `Respond with a single JSON object matching this schema, and nothing else:
{
  "answer": "direct answer to the question",
  "bullets": ["key supporting points"],
  "citations": [{"materialId": "id", "excerpt": "quoted passage", "relevance": 0}],
  "confidence": {"level": "high|medium|low", "score": 0}
}`
)

var courseTemplates = map[CourseType]string{
	CourseTypeCS: "You are a teaching assistant for %s (%s). " +
		"Answer using only the course materials below. Prefer concrete code examples and walk through " +
		"algorithm behavior step by step. Use the terminology the materials use.",
	CourseTypeMath: "You are a teaching assistant for %s (%s). " +
		"Answer using only the course materials below. Show derivations step by step, state any " +
		"assumptions, and define notation before using it.",
	CourseTypeGeneral: "You are a teaching assistant for %s (%s). " +
		"Answer using only the course materials below. Be concise, cite the materials you draw from, " +
		"and say so plainly when the materials do not cover the question.",
}

var (
	csCodePrefixes   = []string{"cs", "cse", "comp", "ece", "se", "swe", "it"}
	mathCodePrefixes = []string{"math", "stat", "calc", "alg"}

	csNameHints   = []string{"programming", "computer", "software", "algorithm", "data structure"}
	mathNameHints = []string{"math", "calculus", "statistics", "algebra", "probability"}
)

// DetectCourseType classifies a course from its code and name.
func DetectCourseType(course Course) CourseType {
	code := strings.ToLower(course.Code)
	name := strings.ToLower(course.Name)

	for _, prefix := range csCodePrefixes {
		if strings.HasPrefix(code, prefix) {
			return CourseTypeCS
		}
	}
	for _, prefix := range mathCodePrefixes {
		if strings.HasPrefix(code, prefix) {
			return CourseTypeMath
		}
	}
	for _, hint := range csNameHints {
		if strings.Contains(name, hint) {
			return CourseTypeCS
		}
	}
	for _, hint := range mathNameHints {
		if strings.Contains(name, hint) {
			return CourseTypeMath
		}
	}
	return CourseTypeGeneral
}

// EstimateTokens approximates the token count of text. Four characters per
// token is a rough average for English prose.
func EstimateTokens(text string) int {
	return len(text) / 4
}

// Build assembles the system prompt for a question. Blocks are included in
// relevance order; when the estimate exceeds the token budget, whole
// lowest-relevance blocks are dropped rather than truncating excerpts
// mid-sentence.
func Build(course Course, blocks []ExcerptBlock, opts Options) CourseContext {
	if opts.MaxContextTokens <= 0 {
		opts.MaxContextTokens = DefaultMaxContextTokens
	}

	courseType := DetectCourseType(course)
	header := fmt.Sprintf(courseTemplates[courseType], course.Name, course.Code)

	ordered := make([]ExcerptBlock, len(blocks))
	copy(ordered, blocks)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Relevance > ordered[j].Relevance
	})

	fixed := header
	if opts.StructuredOutput {
		fixed += "\n\n" + structuredOutputInstruction
	}
	budget := opts.MaxContextTokens - EstimateTokens(fixed)

	var (
		included []string
		sections []string
		used     int
	)
	for i, block := range ordered {
		section := formatBlock(i+1, block)
		cost := EstimateTokens(section)
		if used+cost > budget && len(sections) > 0 {
			continue
		}
		if used+cost > budget {
			break
		}
		sections = append(sections, section)
		included = append(included, block.Material.ID)
		used += cost
	}

	contextText := noMaterialsText
	if len(sections) > 0 {
		contextText = strings.Join(sections, "\n\n")
	}

	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n\n## Course Materials\n\n")
	b.WriteString(contextText)
	if opts.StructuredOutput {
		b.WriteString("\n\n")
		b.WriteString(structuredOutputInstruction)
	}
	system := b.String()

	return CourseContext{
		CourseID:        course.ID,
		CourseType:      courseType,
		SystemPrompt:    system,
		ContextText:     contextText,
		IncludedIDs:     included,
		EstimatedTokens: EstimateTokens(system),
		BuiltAt:         time.Now(),
	}
}

func formatBlock(position int, block ExcerptBlock) string {
	m := block.Material
	label := fmt.Sprintf("[%d] %s: %s", position, materialTypeLabel(m.Type), m.Title)
	if m.Week > 0 {
		label += fmt.Sprintf(" (week %d)", m.Week)
	} else if !m.Date.IsZero() {
		label += fmt.Sprintf(" (%s)", m.Date.Format("2006-01-02"))
	}
	label += fmt.Sprintf(" [relevance %.0f]", block.Relevance)
	if len(block.MatchedKeywords) > 0 {
		label += fmt.Sprintf(" [matches: %s]", strings.Join(block.MatchedKeywords, ", "))
	}
	return label + "\n" + block.Excerpt
}

func materialTypeLabel(t corpus.MaterialType) string {
	switch t {
	case corpus.TypeLecture:
		return "Lecture"
	case corpus.TypeReading:
		return "Reading"
	case corpus.TypeHomework:
		return "Homework"
	case corpus.TypeExam:
		return "Exam"
	case corpus.TypeProject:
		return "Project"
	case corpus.TypeSyllabus:
		return "Syllabus"
	case corpus.TypeAnnouncement:
		return "Announcement"
	case corpus.TypeVideo:
		return "Video"
	case corpus.TypeCode:
		return "Code"
	default:
		return "Material"
	}
}
