package cpalms

import (
	"fldoe-standards/lib/htmlutil"
	"strings"
)

type ResourceType string

const (
	LessonPlan              ResourceType = "Lesson Plan"
	FormativeAssessment     ResourceType = "Formative Assessment"
	OriginalStudentTutorial ResourceType = "Original Student Tutorial"
	ProblemSolvingTask      ResourceType = "Problem-Solving Task"
	TeachingIdea            ResourceType = "Teaching Idea"
	TextResource            ResourceType = "Text Resource"
	VirtualManipulative     ResourceType = "Virtual Manipulative"
	EducationalSoftware     ResourceType = "Educational Software"
	PerspectivesVideo       ResourceType = "Perspectives Video"
	UnitLessonSequence      ResourceType = "Unit/Lesson Sequence"
	StudentCenterActivity   ResourceType = "Student Center Activity"
	Tutorial                ResourceType = "Tutorial"
)

// ResourceTypes lists every label cpalms uses for a resource.
var ResourceTypes = []ResourceType{
	LessonPlan,
	FormativeAssessment,
	OriginalStudentTutorial,
	ProblemSolvingTask,
	TeachingIdea,
	TextResource,
	VirtualManipulative,
	EducationalSoftware,
	PerspectivesVideo,
	UnitLessonSequence,
	StudentCenterActivity,
	Tutorial,
}

// ParseResourceType matches a label case-insensitively.
func ParseResourceType(label string) (ResourceType, bool) {
	label = htmlutil.CleanText(label)
	for _, t := range ResourceTypes {
		if strings.EqualFold(label, string(t)) {
			return t, true
		}
	}
	return "", false
}

// ClassifyLabel finds the label that occurs earliest in `text`, on ties the
// longer label wins so "Original Student Tutorial" is not read as "Tutorial".
func ClassifyLabel(text string) (ResourceType, bool) {
	lower := strings.ToLower(text)
	best := ResourceType("")
	bestIdx := -1
	for _, t := range ResourceTypes {
		idx := strings.Index(lower, strings.ToLower(string(t)))
		if idx < 0 {
			continue
		}
		if bestIdx < 0 || idx < bestIdx || (idx == bestIdx && len(t) > len(best)) {
			best = t
			bestIdx = idx
		}
	}
	return best, bestIdx >= 0
}

var urlMarkers = []struct {
	marker string
	t      ResourceType
}{
	{"LessonPlan", LessonPlan},
	{"ResourceLesson", LessonPlan},
	{"FormativeAssessment", FormativeAssessment},
	{"ResourceAssessment", FormativeAssessment},
	{"StudentTutorial", OriginalStudentTutorial},
	{"ProblemSolvingTask", ProblemSolvingTask},
	{"PerspectivesVideo", PerspectivesVideo},
}

func classifyUrl(rawUrl string) (ResourceType, bool) {
	lower := strings.ToLower(rawUrl)
	for _, m := range urlMarkers {
		if strings.Contains(lower, strings.ToLower(m.marker)) {
			return m.t, true
		}
	}
	return "", false
}

type Resource struct {
	Title       string
	Url         string
	Type        ResourceType
	Description string
}

type AccessPoint struct {
	ID          string
	Description string
}

type Extraction struct {
	Resources    []Resource
	AccessPoints []AccessPoint
	// names of the strategies that produced each section, empty if none matched
	ResourceStrategy    string
	AccessPointStrategy string
}

func stripTrailingColons(s string) string {
	return strings.TrimRight(htmlutil.CleanText(s), ": ")
}

// NormalizeTitle cleans whitespace and strips trailing colons.
func NormalizeTitle(title string) string {
	return stripTrailingColons(title)
}

// NormalizeAccessPointID cleans whitespace and strips trailing colons.
func NormalizeAccessPointID(id string) string {
	return strings.ReplaceAll(stripTrailingColons(id), " ", "")
}
