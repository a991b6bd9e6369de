package ai

import (
	"testing"
)

func TestUnmarshalFlexible_ObjectVariants(t *testing.T) {
	type summary struct {
		Summary  string   `json:"summary"`
		Tags     []string `json:"tags,omitempty"`
		Language string   `json:"language,omitempty"`
	}

	tests := []struct {
		name  string
		input string
		want  summary
	}{
		{
			name:  "valid json object",
			input: `{"summary":"weekly planning notes"}`,
			want:  summary{Summary: "weekly planning notes"},
		},
		{
			name:  "unquoted key and single quotes",
			input: `{summary: 'weekly planning notes'}`,
			want:  summary{Summary: "weekly planning notes"},
		},
		{
			name:  "trailing comma",
			input: `{"summary":"weekly planning notes",}`,
			want:  summary{Summary: "weekly planning notes"},
		},
		{
			name:  "missing endbracket",
			input: `{"summary":"weekly planning notes`,
			want:  summary{Summary: "weekly planning notes"},
		},
		{
			name:  "stringified invalid json object",
			input: `"{summary: 'weekly planning notes'}"`,
			want:  summary{Summary: "weekly planning notes"},
		},
		{
			name:  "duplicate leading brace",
			input: "{\n{\n  \"summary\": \"weekly planning notes\"\n}\n",
			want:  summary{Summary: "weekly planning notes"},
		},
		{
			name:  "complete payload with tags and language",
			input: `{"summary":"weekly planning notes","tags":["planning","q3"],"language":"english"}`,
			want:  summary{Summary: "weekly planning notes", Tags: []string{"planning", "q3"}, Language: "english"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got summary
			if err := UnmarshalFlexible(tc.input, &got); err != nil {
				t.Fatalf("UnmarshalFlexible() error = %v", err)
			}
			if got.Summary != tc.want.Summary || got.Language != tc.want.Language {
				t.Fatalf("UnmarshalFlexible() got = %+v, want %+v", got, tc.want)
			}
			if len(got.Tags) != len(tc.want.Tags) {
				t.Fatalf("UnmarshalFlexible() tags length got = %d, want %d", len(got.Tags), len(tc.want.Tags))
			}
			for i := range got.Tags {
				if got.Tags[i] != tc.want.Tags[i] {
					t.Fatalf("UnmarshalFlexible() tags[%d] = %q, want %q", i, got.Tags[i], tc.want.Tags[i])
				}
			}
		})
	}
}

func TestUnmarshalFlexible_ExtractionArray(t *testing.T) {
	type entity struct {
		Name string `json:"name"`
		Type string `json:"type"`
	}

	input := `[{name:'Alice',type:'person'},{name:'Acme Corp',type:'organization',}]`
	var got []entity
	if err := UnmarshalFlexible(input, &got); err != nil {
		t.Fatalf("UnmarshalFlexible() error = %v", err)
	}
	if len(got) != 2 || got[0].Name != "Alice" || got[1].Type != "organization" {
		t.Fatalf("UnmarshalFlexible() got = %+v, want Alice/person and Acme Corp/organization", got)
	}
}

func TestUnmarshalFlexible_Unrecoverable(t *testing.T) {
	type summary struct {
		Summary string `json:"summary"`
	}

	var got summary
	if err := UnmarshalFlexible("hello", &got); err == nil {
		t.Fatalf("UnmarshalFlexible() expected error for unrecoverable input")
	}
}

func TestStripDuplicateLeadingBrace(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "single brace untouched", input: `{"a":1}`, want: `{"a":1}`},
		{name: "double brace stripped", input: `{ {"a":1}`, want: `{"a":1}`},
		{name: "non object untouched", input: `[1,2]`, want: `[1,2]`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := stripDuplicateLeadingBrace(tc.input); got != tc.want {
				t.Fatalf("stripDuplicateLeadingBrace(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}
