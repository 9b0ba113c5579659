package normalize

// Field names a canonical RawScoringRow column.
type Field string

// Canonical fields.
const (
	FieldApplicationID    Field = "application_id"
	FieldApplicationSlug  Field = "application_slug"
	FieldApplicationTitle Field = "application_title"
	FieldCategory         Field = "category"
	FieldReviewerEmail    Field = "reviewer_email"
	FieldReviewerFirst    Field = "reviewer_first"
	FieldReviewerLast     Field = "reviewer_last"
	FieldScoringCriterion Field = "scoring_criterion"
	FieldScore            Field = "score"
	FieldMaxScore         Field = "max_score"
	FieldWeightedScore    Field = "weighted_score"
	FieldWeightedMaxScore Field = "weighted_max_score"
	FieldScoreSetName     Field = "score_set_name"
	FieldScoreSetSlug     Field = "score_set_slug"
	FieldApplicantFirst   Field = "applicant_first"
	FieldApplicantLast    Field = "applicant_last"
	FieldApplicantEmail   Field = "applicant_email"
)

// Fields lists every canonical field in column order.
var Fields = []Field{
	FieldApplicationID, FieldApplicationSlug, FieldApplicationTitle, FieldCategory,
	FieldReviewerEmail, FieldReviewerFirst, FieldReviewerLast, FieldScoringCriterion,
	FieldScore, FieldMaxScore, FieldWeightedScore, FieldWeightedMaxScore,
	FieldScoreSetName, FieldScoreSetSlug,
	FieldApplicantFirst, FieldApplicantLast, FieldApplicantEmail,
}

// AliasTable maps each canonical field to the export headers accepted for it,
// in probe order.
type AliasTable map[Field][]string

// Default returns a fresh copy of the built-in alias table.
func Default() AliasTable {
	return AliasTable{
		FieldApplicationID:    {"Application ID", "Application Id", "Application id", "ID", "Id", "application_id"},
		FieldApplicationSlug:  {"Application slug", "Application Slug", "Slug", "application_slug"},
		FieldApplicationTitle: {"Application title", "Application Title", "Application name", "Application Name", "Title", "application_title"},
		FieldCategory:         {"Category", "Category name", "Category Name", "category"},
		FieldReviewerEmail:    {"Reviewer email", "Reviewer Email", "Email", "reviewer_email"},
		FieldReviewerFirst:    {"Reviewer first name", "Reviewer First Name", "First name", "First Name", "reviewer_first"},
		FieldReviewerLast:     {"Reviewer last name", "Reviewer Last Name", "Last name", "Last Name", "reviewer_last"},
		FieldScoringCriterion: {"Scoring criterion", "Scoring Criterion", "Criterion", "Criteria", "scoring_criterion"},
		FieldScore:            {"Score", "Raw score", "Raw Score", "score"},
		FieldMaxScore:         {"Max score", "Max Score", "Maximum score", "Maximum Score", "max_score"},
		FieldWeightedScore:    {"Weighted score", "Weighted Score", "weighted_score"},
		FieldWeightedMaxScore: {"Weighted max score", "Weighted Max Score", "Weighted maximum score", "weighted_max_score"},
		FieldScoreSetName:     {"Score set", "Score Set", "Score set name", "Score Set Name", "score_set_name"},
		FieldScoreSetSlug:     {"Score set slug", "Score Set Slug", "score_set_slug"},
		FieldApplicantFirst:   {"Applicant first name", "Applicant First Name", "applicant_first"},
		FieldApplicantLast:    {"Applicant last name", "Applicant Last Name", "applicant_last"},
		FieldApplicantEmail:   {"Applicant email", "Applicant Email", "applicant_email"},
	}
}

// Clone returns a deep copy of t.
func (t AliasTable) Clone() AliasTable {
	out := make(AliasTable, len(t))
	for f, aliases := range t {
		out[f] = append([]string(nil), aliases...)
	}
	return out
}

func isKnownField(f Field) bool {
	for _, known := range Fields {
		if f == known {
			return true
		}
	}
	return false
}
