// Package normalize maps heterogeneous export records onto RawScoringRow.
package normalize

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/okian/reviewrank/internal/domain/model"
	"gopkg.in/yaml.v3"
)

// Normalizer resolves export headers through a fixed alias table.
type Normalizer struct {
	aliases AliasTable
}

// Option applies a configuration option to the Normalizer.
type Option func(*Normalizer)

// WithAliases replaces the alias lists of the fields present in t.
func WithAliases(t AliasTable) Option {
	return func(n *Normalizer) {
		for f, aliases := range t {
			if len(aliases) > 0 {
				n.aliases[f] = append([]string(nil), aliases...)
			}
		}
	}
}

// New creates a Normalizer over the default alias table.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{aliases: Default()}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Aliases returns a copy of the table in use.
func (n *Normalizer) Aliases() AliasTable {
	return n.aliases.Clone()
}

var defaultNormalizer = New()

// NormalizeRow normalizes record with the default alias table.
func NormalizeRow(record map[string]any) model.RawScoringRow {
	return defaultNormalizer.Row(record)
}

// Row maps one export record onto a RawScoringRow. It never fails: missing
// text reads as "" and missing or unparsable numbers read as 0.
func (n *Normalizer) Row(record map[string]any) model.RawScoringRow {
	return model.RawScoringRow{
		ApplicationID:    n.text(record, FieldApplicationID),
		ApplicationSlug:  n.text(record, FieldApplicationSlug),
		ApplicationTitle: n.text(record, FieldApplicationTitle),
		Category:         n.text(record, FieldCategory),
		ReviewerEmail:    strings.ToLower(n.text(record, FieldReviewerEmail)),
		ReviewerFirst:    n.text(record, FieldReviewerFirst),
		ReviewerLast:     n.text(record, FieldReviewerLast),
		ScoringCriterion: n.text(record, FieldScoringCriterion),
		Score:            n.number(record, FieldScore),
		MaxScore:         n.number(record, FieldMaxScore),
		WeightedScore:    n.number(record, FieldWeightedScore),
		WeightedMaxScore: n.number(record, FieldWeightedMaxScore),
		ScoreSetName:     n.text(record, FieldScoreSetName),
		ScoreSetSlug:     n.text(record, FieldScoreSetSlug),
		ApplicantFirst:   n.text(record, FieldApplicantFirst),
		ApplicantLast:    n.text(record, FieldApplicantLast),
		ApplicantEmail:   n.text(record, FieldApplicantEmail),
	}
}

// Rows normalizes a batch of records.
func (n *Normalizer) Rows(records []map[string]any) []model.RawScoringRow {
	out := make([]model.RawScoringRow, 0, len(records))
	for _, rec := range records {
		out = append(out, n.Row(rec))
	}
	return out
}

// lookup returns the first present, non-nil value among f's aliases.
func (n *Normalizer) lookup(record map[string]any, f Field) (any, bool) {
	for _, alias := range n.aliases[f] {
		if v, ok := record[alias]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func (n *Normalizer) text(record map[string]any, f Field) string {
	v, ok := n.lookup(record, f)
	if !ok {
		return ""
	}
	return strings.TrimSpace(Text(v))
}

func (n *Normalizer) number(record map[string]any, f Field) float64 {
	v, ok := n.lookup(record, f)
	if !ok {
		return 0
	}
	return Number(v)
}

// Text renders an arbitrary scalar as a string.
func Text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case json.Number:
		return t.String()
	default:
		// fmt recovers from nil-receiver String methods.
		return fmt.Sprint(t)
	}
}

// thousandsSeparators are removed from numeric strings before parsing.
var thousandsSeparators = strings.NewReplacer(",", "", " ", "", " ", "", " ", "", "'", "", "_", "")

// Number coerces v to a float64. Strings lose thousands separators before
// parsing; anything unparsable, NaN or infinite yields 0.
func Number(v any) float64 {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case int32:
		f = float64(t)
	case uint:
		f = float64(t)
	case uint64:
		f = float64(t)
	case uint32:
		f = float64(t)
	case json.Number:
		f = parseDecimal(t.String())
	case string:
		f = parseDecimal(t)
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func parseDecimal(s string) float64 {
	s = thousandsSeparators.Replace(strings.TrimSpace(s))
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// LoadAliasTable reads YAML alias overrides ("field: [alias, ...]") and merges
// them over the default table. Fields not named keep their default aliases.
func LoadAliasTable(r io.Reader) (AliasTable, error) {
	var raw map[string][]string
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode alias table: %w", err)
	}
	table := Default()
	for name, aliases := range raw {
		f := Field(name)
		if !isKnownField(f) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownField, name)
		}
		if len(aliases) == 0 {
			return nil, fmt.Errorf("%w: %q", ErrEmptyAliases, name)
		}
		table[f] = aliases
	}
	return table, nil
}

// LoadAliasFile is LoadAliasTable over the file at path.
func LoadAliasFile(path string) (AliasTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open alias table: %w", err)
	}
	defer f.Close()
	return LoadAliasTable(f)
}
