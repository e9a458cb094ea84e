package corpus

import (
	"sort"
	"strings"
)

// Store holds the full material corpus grouped by course.
// It is built once at seed time and is read-only afterwards, so it is safe
// for concurrent use without synchronization.
type Store struct {
	byCourse map[string][]Material
	keywords map[string]map[string]struct{}
}

// NewStore builds a store from the given materials.
// Materials keep their input order within each course; retrievers rely on
// that order for stable tie-breaking.
func NewStore(materials []Material) *Store {
	s := &Store{
		byCourse: make(map[string][]Material),
		keywords: make(map[string]map[string]struct{}),
	}
	for _, m := range materials {
		s.byCourse[m.CourseID] = append(s.byCourse[m.CourseID], m)
		set, ok := s.keywords[m.CourseID]
		if !ok {
			set = make(map[string]struct{})
			s.keywords[m.CourseID] = set
		}
		for _, kw := range m.Keywords {
			set[strings.ToLower(kw)] = struct{}{}
		}
	}
	return s
}

// ForCourse returns the materials of a course in corpus order.
// The returned slice must not be modified.
func (s *Store) ForCourse(courseID string) []Material {
	return s.byCourse[courseID]
}

// KeywordSet returns the lowercased keyword vocabulary of a course.
// The returned map must not be modified.
func (s *Store) KeywordSet(courseID string) map[string]struct{} {
	return s.keywords[courseID]
}

// Courses returns the known course IDs, sorted.
func (s *Store) Courses() []string {
	ids := make([]string, 0, len(s.byCourse))
	for id := range s.byCourse {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
