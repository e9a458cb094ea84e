package corpus

import "time"

// MaterialType classifies a course material.
type MaterialType string

const (
	TypeLecture      MaterialType = "lecture"
	TypeReading      MaterialType = "reading"
	TypeHomework     MaterialType = "homework"
	TypeExam         MaterialType = "exam"
	TypeProject      MaterialType = "project"
	TypeSyllabus     MaterialType = "syllabus"
	TypeAnnouncement MaterialType = "announcement"
	TypeVideo        MaterialType = "video"
	TypeCode         MaterialType = "code"
	TypeOther        MaterialType = "other"
)

// Material is a unit of retrievable course content.
// Materials are created at corpus-seed time and are immutable thereafter;
// the retrieval layer treats them as read-only input.
type Material struct {
	// ID is the stable identifier of the material.
	ID string `json:"id"`
	// CourseID is the owning course.
	CourseID string `json:"course_id"`
	// Title is the human-readable title.
	Title string `json:"title"`
	// Type classifies the material (lecture, reading, homework, ...).
	Type MaterialType `json:"type"`
	// Content is the free-text body used for retrieval and excerpting.
	Content string `json:"content"`
	// Keywords are precomputed or extracted index terms.
	Keywords []string `json:"keywords"`
	// Week is the course week the material belongs to. Zero means unset.
	Week int `json:"week,omitempty"`
	// Date is the publication date. Zero value means unset.
	Date time.Time `json:"date,omitempty"`
}
