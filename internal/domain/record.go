package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxTags caps tag arrays to keep records compact for storage and filtering.
const MaxTags = 12

// Validation guard rails for ingest payloads.
const (
	MaxSummaryChars = 640
	MaxBodyChars    = 16_000
)

// Kind classifies a context record. The set is closed except for KindOther,
// which carries a free-text label.
type Kind string

const (
	KindCodeSnippet    Kind = "code_snippet"
	KindFixHistory     Kind = "fix_history"
	KindProjectSummary Kind = "project_summary"
	KindDiscussion     Kind = "discussion"
	KindToolLog        Kind = "tool_log"
	KindOther          Kind = "other"
)

// ContextKind is a record's kind plus the label required by KindOther.
type ContextKind struct {
	Kind  Kind   `json:"kind"`
	Label string `json:"label,omitempty"`
}

// Validate rejects unknown kinds and KindOther without a label. An empty
// label on "other" is an error, not a default.
func (k ContextKind) Validate() error {
	switch k.Kind {
	case KindCodeSnippet, KindFixHistory, KindProjectSummary, KindDiscussion, KindToolLog:
		if k.Label != "" {
			return fmt.Errorf("%w: kind %q does not carry a label", ErrValidation, k.Kind)
		}
		return nil
	case KindOther:
		if strings.TrimSpace(k.Label) == "" {
			return fmt.Errorf("%w: kind \"other\" requires a non-empty label", ErrValidation)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrValidation, k.Kind)
	}
}

// Equal reports whether two kinds match exactly, label included.
func (k ContextKind) Equal(other ContextKind) bool {
	return k.Kind == other.Kind && k.Label == other.Label
}

// Embedding is the vector representation of a record, tagged with the model
// that produced it. Vectors are immutable once written; switching the active
// backend never re-embeds existing records.
type Embedding struct {
	Model  string    `json:"model"`
	Vector []float32 `json:"vector"`
}

// Dimensions returns the vector length.
func (e Embedding) Dimensions() int { return len(e.Vector) }

// ContextRecord is one captured unit of developer context. Records are
// created only via ingest and never mutated in place.
type ContextRecord struct {
	ID        uuid.UUID   `json:"id"`
	Project   string      `json:"project"`
	IDE       string      `json:"ide"`
	FilePath  string      `json:"file_path,omitempty"`
	Language  string      `json:"language,omitempty"`
	Summary   string      `json:"summary"`
	Body      string      `json:"body"`
	Tags      []string    `json:"tags"`
	Kind      ContextKind `json:"kind"`
	Embedding Embedding   `json:"embedding"`
	CreatedAt time.Time   `json:"created_at"`
}

// NewContextRecord assembles a record with a fresh id and timestamp.
// Inputs are sanitized; callers validate limits beforehand.
func NewContextRecord(project, ide, filePath, language, summary, body string, tags []string, kind ContextKind, embedding Embedding) ContextRecord {
	return ContextRecord{
		ID:        uuid.New(),
		Project:   SanitizeProject(project),
		IDE:       sanitizeSingleLine(ide),
		FilePath:  strings.TrimSpace(filePath),
		Language:  strings.TrimSpace(language),
		Summary:   strings.TrimSpace(summary),
		Body:      strings.TrimSpace(body),
		Tags:      NormalizeTags(tags),
		Kind:      kind,
		Embedding: embedding,
		CreatedAt: time.Now().UTC(),
	}
}

// Summary projection for listings where the full payload is unnecessary.
func (r ContextRecord) AsSummary() ContextSummary {
	return ContextSummary{
		ID:        r.ID,
		Project:   r.Project,
		Summary:   r.Summary,
		Kind:      r.Kind,
		Tags:      r.Tags,
		CreatedAt: r.CreatedAt,
	}
}

// MatchesFilters reports whether the record passes every set filter field.
// Unset fields match anything; set fields are ANDed equality checks.
func (r ContextRecord) MatchesFilters(f QueryFilters) bool {
	if f.Project != "" && r.Project != f.Project {
		return false
	}
	if f.Kind != nil && !r.Kind.Equal(*f.Kind) {
		return false
	}
	if f.Tag != "" {
		found := false
		for _, t := range r.Tags {
			if t == f.Tag {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.IDE != "" && r.IDE != f.IDE {
		return false
	}
	return true
}

// ContextSummary omits body, ide, file path, language, and embedding.
type ContextSummary struct {
	ID        uuid.UUID   `json:"id"`
	Project   string      `json:"project"`
	Summary   string      `json:"summary"`
	Kind      ContextKind `json:"kind"`
	Tags      []string    `json:"tags"`
	CreatedAt time.Time   `json:"created_at"`
}

// QueryFilters narrow search results. All fields optional, ANDed.
type QueryFilters struct {
	Project string       `json:"project,omitempty"`
	Kind    *ContextKind `json:"kind,omitempty"`
	Tag     string       `json:"tag,omitempty"`
	IDE     string       `json:"ide,omitempty"`
}

// SearchResult is a full record annotated with its similarity score in [0,1].
type SearchResult struct {
	ID        uuid.UUID   `json:"id"`
	Project   string      `json:"project"`
	Summary   string      `json:"summary"`
	Body      string      `json:"body"`
	Tags      []string    `json:"tags"`
	Kind      ContextKind `json:"kind"`
	Score     float32     `json:"score"`
	CreatedAt time.Time   `json:"created_at"`
}

// SanitizeProject collapses the project name to a single line and replaces
// path separators so project names are safe as key prefixes.
func SanitizeProject(input string) string {
	s := sanitizeSingleLine(input)
	return strings.NewReplacer("\\", "-", "/", "-", ":", "-").Replace(s)
}

func sanitizeSingleLine(input string) string {
	line, _, _ := strings.Cut(input, "\n")
	return strings.TrimSpace(strings.TrimSuffix(line, "\r"))
}

// NormalizeTags lowercases tags, collapses whitespace runs to hyphens,
// drops empties and duplicates, preserves insertion order, and caps the
// result at MaxTags.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		normalized := strings.Join(strings.Fields(strings.ToLower(tag)), "-")
		if normalized == "" {
			continue
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
		if len(out) == MaxTags {
			break
		}
	}
	return out
}
