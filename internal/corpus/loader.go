package corpus

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

const maxKeywordsPerMaterial = 16

var weekFilenameRegex = regexp.MustCompile(`(?i)week[-_ ]?(\d{1,2})`)

// typePrefixes maps filename prefixes to material types.
var typePrefixes = []struct {
	prefix string
	typ    MaterialType
}{
	{"lecture", TypeLecture},
	{"reading", TypeReading},
	{"homework", TypeHomework},
	{"hw", TypeHomework},
	{"exam", TypeExam},
	{"midterm", TypeExam},
	{"final", TypeExam},
	{"project", TypeProject},
	{"syllabus", TypeSyllabus},
	{"announcement", TypeAnnouncement},
	{"video", TypeVideo},
	{"code", TypeCode},
	{"lab", TypeCode},
}

// Loader reads markdown course materials from disk into Material values.
type Loader struct {
	parser goldmark.Markdown
}

// NewLoader creates a markdown corpus loader.
func NewLoader() *Loader {
	return &Loader{
		parser: goldmark.New(
			goldmark.WithExtensions(extension.Table),
		),
	}
}

// LoadDirectory loads all courses under root. Each immediate subdirectory is
// treated as one course (directory name = course code), and each markdown
// file inside it becomes one material.
func (l *Loader) LoadDirectory(root string) ([]Material, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus directory: %w", err)
	}

	var materials []Material
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		courseMaterials, err := l.LoadCourse(filepath.Join(root, entry.Name()), entry.Name())
		if err != nil {
			return nil, err
		}
		materials = append(materials, courseMaterials...)
	}
	return materials, nil
}

// LoadCourse loads the markdown files of one course directory.
// Files are loaded in lexical filename order so the corpus order is stable
// across restarts.
func (l *Loader) LoadCourse(dir, courseID string) ([]Material, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read course directory %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(entry.Name()), ".md") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	materials := make([]Material, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read material %s: %w", path, err)
		}
		materials = append(materials, l.parseMaterial(content, name, courseID))
	}
	return materials, nil
}

// parseMaterial converts one markdown file into a Material.
func (l *Loader) parseMaterial(content []byte, filename, courseID string) Material {
	title, plain := l.extractTitleAndText(content, filename)

	m := Material{
		ID:       uuid.NewString(),
		CourseID: courseID,
		Title:    title,
		Type:     typeFromFilename(filename),
		Content:  plain,
		Keywords: ExtractKeywords(plain, maxKeywordsPerMaterial),
	}
	if match := weekFilenameRegex.FindStringSubmatch(filename); match != nil {
		var week int
		_, _ = fmt.Sscanf(match[1], "%d", &week)
		m.Week = week
	}
	return m
}

// extractTitleAndText parses markdown and returns the document title
// (first level-1 heading, else filename) and the plain text body.
func (l *Loader) extractTitleAndText(content []byte, filename string) (string, string) {
	if len(content) == 0 {
		return titleFromFilename(filename), ""
	}

	reader := text.NewReader(content)
	doc := l.parser.Parser().Parse(reader)

	var title string
	var textBuilder strings.Builder

	_ = ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := node.(type) {
		case *ast.Heading:
			if v.Level == 1 && title == "" {
				title = nodeText(v, content)
				return ast.WalkSkipChildren, nil
			}
		case *ast.Text:
			textBuilder.Write(v.Segment.Value(content))
			textBuilder.WriteByte(' ')
		case *ast.String:
			textBuilder.Write(v.Value)
			textBuilder.WriteByte(' ')
		case *ast.FencedCodeBlock:
			lines := v.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				textBuilder.Write(seg.Value(content))
			}
		}
		return ast.WalkContinue, nil
	})

	if title == "" {
		title = titleFromFilename(filename)
	}
	return title, strings.TrimSpace(textBuilder.String())
}

// nodeText collects the text content of a node's subtree.
func nodeText(n ast.Node, content []byte) string {
	var builder strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := node.(type) {
		case *ast.Text:
			builder.Write(v.Segment.Value(content))
		case *ast.String:
			builder.Write(v.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(builder.String())
}

func typeFromFilename(filename string) MaterialType {
	lower := strings.ToLower(filename)
	for _, tp := range typePrefixes {
		if strings.HasPrefix(lower, tp.prefix) {
			return tp.typ
		}
	}
	return TypeOther
}

func titleFromFilename(filename string) string {
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	base = strings.ReplaceAll(base, "-", " ")
	base = strings.ReplaceAll(base, "_", " ")
	words := strings.Fields(base)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
