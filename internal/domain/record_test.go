package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTags(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "lowercases and hyphenates whitespace",
			in:   []string{"Bug Fix", "  Race   Condition "},
			want: []string{"bug-fix", "race-condition"},
		},
		{
			name: "drops empties and duplicates, keeps order",
			in:   []string{"alpha", "", "beta", "Alpha", "  "},
			want: []string{"alpha", "beta"},
		},
		{
			name: "caps at MaxTags",
			in: []string{
				"t1", "t2", "t3", "t4", "t5", "t6", "t7",
				"t8", "t9", "t10", "t11", "t12", "t13", "t14",
			},
			want: []string{
				"t1", "t2", "t3", "t4", "t5", "t6", "t7",
				"t8", "t9", "t10", "t11", "t12",
			},
		},
		{
			name: "nil input",
			in:   nil,
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeTags(tt.in))
		})
	}
}

func TestContextKindValidate(t *testing.T) {
	tests := []struct {
		name    string
		kind    ContextKind
		wantErr bool
	}{
		{name: "code snippet", kind: ContextKind{Kind: KindCodeSnippet}},
		{name: "tool log", kind: ContextKind{Kind: KindToolLog}},
		{name: "other with label", kind: ContextKind{Kind: KindOther, Label: "design-note"}},
		{name: "other with empty label", kind: ContextKind{Kind: KindOther}, wantErr: true},
		{name: "other with blank label", kind: ContextKind{Kind: KindOther, Label: "   "}, wantErr: true},
		{name: "label on closed variant", kind: ContextKind{Kind: KindDiscussion, Label: "x"}, wantErr: true},
		{name: "unknown kind", kind: ContextKind{Kind: Kind("banana")}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.kind.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, ErrValidation)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestSanitizeProject(t *testing.T) {
	assert.Equal(t, "my-project", SanitizeProject("my/project"))
	assert.Equal(t, "a-b-c", SanitizeProject("a\\b:c"))
	assert.Equal(t, "first line", SanitizeProject("first line\nsecond line"))
	assert.Equal(t, "trimmed", SanitizeProject("  trimmed \r\nrest"))
}

func TestNewContextRecord(t *testing.T) {
	emb := Embedding{Model: "test", Vector: []float32{1, 0}}
	rec := NewContextRecord("demo", "vscode", " main.go ", "go", " fix race ", " added mutex ", []string{"BugFix"}, ContextKind{Kind: KindCodeSnippet}, emb)

	assert.NotEqual(t, rec.ID.String(), "00000000-0000-0000-0000-000000000000")
	assert.Equal(t, "demo", rec.Project)
	assert.Equal(t, "fix race", rec.Summary)
	assert.Equal(t, "added mutex", rec.Body)
	assert.Equal(t, "main.go", rec.FilePath)
	assert.Equal(t, []string{"bugfix"}, rec.Tags)
	assert.WithinDuration(t, time.Now().UTC(), rec.CreatedAt, 5*time.Second)

	// Distinct records never share an id.
	other := NewContextRecord("demo", "vscode", "", "", "s", "b", nil, ContextKind{Kind: KindDiscussion}, emb)
	assert.NotEqual(t, rec.ID, other.ID)
}

func TestMatchesFilters(t *testing.T) {
	kind := ContextKind{Kind: KindCodeSnippet}
	rec := ContextRecord{
		Project: "demo",
		IDE:     "vscode",
		Tags:    []string{"bugfix", "concurrency"},
		Kind:    kind,
	}

	tests := []struct {
		name    string
		filters QueryFilters
		want    bool
	}{
		{name: "empty filters match", filters: QueryFilters{}, want: true},
		{name: "project match", filters: QueryFilters{Project: "demo"}, want: true},
		{name: "project mismatch", filters: QueryFilters{Project: "other"}, want: false},
		{name: "tag match", filters: QueryFilters{Tag: "bugfix"}, want: true},
		{name: "tag mismatch", filters: QueryFilters{Tag: "docs"}, want: false},
		{name: "ide match", filters: QueryFilters{IDE: "vscode"}, want: true},
		{name: "kind match", filters: QueryFilters{Kind: &kind}, want: true},
		{name: "kind mismatch", filters: QueryFilters{Kind: &ContextKind{Kind: KindToolLog}}, want: false},
		{
			name:    "all fields ANDed",
			filters: QueryFilters{Project: "demo", Tag: "concurrency", IDE: "vscode", Kind: &kind},
			want:    true,
		},
		{
			name:    "one mismatch fails the AND",
			filters: QueryFilters{Project: "demo", Tag: "missing"},
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rec.MatchesFilters(tt.filters))
		})
	}
}
