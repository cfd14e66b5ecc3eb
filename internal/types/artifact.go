package types

// =============================================================================
// ARTIFACT KINDS - CLOSED SET
// =============================================================================

// ArtifactKind names one of the closed set of structured-response schemas.
type ArtifactKind string

const (
	KindTable             ArtifactKind = "table"
	KindChart             ArtifactKind = "chart"
	KindReport            ArtifactKind = "report"
	KindNewsSummary       ArtifactKind = "news_summary"
	KindArticleReview     ArtifactKind = "article_review"
	KindResume            ArtifactKind = "resume"
	KindCodeProject       ArtifactKind = "code_project"
	KindStudyExplanation  ArtifactKind = "study_explanation"
	KindStudyReview       ArtifactKind = "study_review"
	KindStudyQuiz         ArtifactKind = "study_quiz"
	KindVideoSearch       ArtifactKind = "video_search_results"

	// KindImage is constructed by the engine for /image commands. It is not
	// part of the classifier's accepted set: image generation is an external
	// collaborator, not a model text payload.
	KindImage ArtifactKind = "image"
)

// DefaultResumeTemplate is applied when a resume artifact arrives without a
// template tag.
const DefaultResumeTemplate = "classic"

// classifierKinds is the closed set the response classifier accepts.
var classifierKinds = map[ArtifactKind]bool{
	KindTable:            true,
	KindChart:            true,
	KindReport:           true,
	KindNewsSummary:      true,
	KindArticleReview:    true,
	KindResume:           true,
	KindCodeProject:      true,
	KindStudyExplanation: true,
	KindStudyReview:      true,
	KindStudyQuiz:        true,
	KindVideoSearch:      true,
}

// IsClassifierKind reports whether k is one of the kinds the classifier may
// accept from a streamed payload.
func IsClassifierKind(k ArtifactKind) bool {
	return classifierKinds[k]
}

// ClassifierKinds returns the accepted kinds in a stable order, for the
// task-formatting rules section of the assembled directive.
func ClassifierKinds() []ArtifactKind {
	return []ArtifactKind{
		KindTable,
		KindChart,
		KindReport,
		KindNewsSummary,
		KindArticleReview,
		KindResume,
		KindCodeProject,
		KindStudyExplanation,
		KindStudyReview,
		KindStudyQuiz,
		KindVideoSearch,
	}
}

// KindFieldHints documents the expected shape per kind. These feed the
// directive's formatting rules; extra fields on an incoming artifact are
// preserved without validation.
var KindFieldHints = map[ArtifactKind]string{
	KindTable:            `"title", "headers", "rows"`,
	KindChart:            `"title", "chart_type", "labels", "series"`,
	KindReport:           `"title", "sections" (each with "heading" and "body")`,
	KindNewsSummary:      `"topic", "items" (each with "headline", "summary", "source")`,
	KindArticleReview:    `"title", "summary", "strengths", "weaknesses", "verdict"`,
	KindResume:           `"name", "summary", "experience", "education", "skills", optional "template"`,
	KindCodeProject:      `"name", "description", "files" (each with "path", "content")`,
	KindStudyExplanation: `"topic", "explanation", "key_points"`,
	KindStudyReview:      `"topic", "flashcards" (each with "front", "back")`,
	KindStudyQuiz:        `"topic", "questions" (each with "question", "options", "answer")`,
	KindVideoSearch:      `"query", "results" (each with "title", "channel", "url")`,
}
