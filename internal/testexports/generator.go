package testexports

import (
	"encoding/csv"
	"fmt"
	"io"
	"math/rand/v2"
	"strconv"

	"github.com/okian/reviewrank/internal/domain/scheme"
)

const weightedMax = 5

var (
	firstNames = []string{"Ada", "Grace", "Alan", "Edsger", "Barbara", "Ken", "Frances", "Donald"}
	lastNames  = []string{"Lovelace", "Hopper", "Turing", "Dijkstra", "Liskov", "Thompson", "Allen", "Knuth"}
	titleWords = []string{"Community", "Solar", "Garden", "Bike", "Library", "River", "Youth", "Heritage", "Food", "Transit"}
	titleNouns = []string{"Project", "Initiative", "Network", "Hub", "Programme", "Trail"}
)

// Generate builds records keyed by Headers. Scores and weights are drawn from
// a PCG source seeded by cfg.Seed.
func Generate(cfg Config) []map[string]any {
	if cfg.Reviewers < 1 {
		cfg.Reviewers = 1
	}
	if cfg.ReviewersPerApp < 1 || cfg.ReviewersPerApp > cfg.Reviewers {
		cfg.ReviewersPerApp = cfg.Reviewers
	}
	if len(cfg.Criteria) == 0 {
		cfg.Criteria = []string{"Overall"}
	}
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))

	maxScore := float64(weightedMax)
	if cfg.ScoreSet == scheme.EligibilityScoreSet {
		maxScore = scheme.EligibilityMax
	}

	out := make([]map[string]any, 0, cfg.Apps*cfg.ReviewersPerApp*len(cfg.Criteria))
	var prevTitle, prevApplicant string
	row := 0
	for a := 0; a < cfg.Apps; a++ {
		id := fmt.Sprintf("APP-%05d", a+1)
		title := pick(rng, titleWords) + " " + pick(rng, titleWords) + " " + pick(rng, titleNouns)
		applicantFirst, applicantLast := pick(rng, firstNames), pick(rng, lastNames)
		applicant := fmt.Sprintf("applicant%d@example.org", a+1)
		if cfg.DuplicateEvery > 0 && a > 0 && a%cfg.DuplicateEvery == 0 {
			title, applicant = prevTitle+"s", prevApplicant
		}
		prevTitle, prevApplicant = title, applicant

		category := ""
		if len(cfg.Categories) > 0 {
			category = cfg.Categories[a%len(cfg.Categories)]
		}

		// consecutive reviewers from a rotating offset
		offset := rng.IntN(cfg.Reviewers)
		quality := rng.Float64()
		for r := 0; r < cfg.ReviewersPerApp; r++ {
			reviewer := (offset + r) % cfg.Reviewers
			for _, criterion := range cfg.Criteria {
				row++
				email := fmt.Sprintf("reviewer%d@example.org", reviewer+1)
				if cfg.BlankReviewerEvery > 0 && row%cfg.BlankReviewerEvery == 0 {
					email = ""
				}
				score := clamp(quality*maxScore+rng.NormFloat64()*0.75, 0, maxScore)
				score = float64(int(score*2+0.5)) / 2
				weight := float64(1 + rng.IntN(3))
				out = append(out, map[string]any{
					"Application ID":       id,
					"Application slug":     fmt.Sprintf("app-%d", a+1),
					"Application title":    title,
					"Category":             category,
					"Reviewer email":       email,
					"Reviewer first name":  firstNames[reviewer%len(firstNames)],
					"Reviewer last name":   lastNames[reviewer%len(lastNames)],
					"Scoring criterion":    criterion,
					"Score":                score,
					"Max score":            maxScore,
					"Weighted score":       score * weight,
					"Weighted max score":   maxScore * weight,
					"Score set":            cfg.ScoreSet,
					"Applicant first name": applicantFirst,
					"Applicant last name":  applicantLast,
					"Applicant email":      applicant,
				})
			}
		}
	}
	return out
}

// WriteCSV writes records as a CSV export with a Headers row.
func WriteCSV(w io.Writer, records []map[string]any) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Headers); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	line := make([]string, len(Headers))
	for _, rec := range records {
		for i, h := range Headers {
			line[i] = cell(rec[h])
		}
		if err := cw.Write(line); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

func pick(rng *rand.Rand, from []string) string { return from[rng.IntN(len(from))] }

func clamp(x, lo, hi float64) float64 {
	return max(lo, min(hi, x))
}
