package classify

import (
	"reflect"
	"testing"

	"parley/internal/types"
)

func TestDecode_TableWithSurroundingNoise(t *testing.T) {
	text := `noise {"kind":"table","title":"T","rows":[]} trailing`

	content := Decode(text)
	art, ok := content.(types.Artifact)
	if !ok {
		t.Fatalf("Decode() = %T, want Artifact", content)
	}
	if art.Kind != types.KindTable {
		t.Fatalf("Kind = %q, want table", art.Kind)
	}
	if got := art.Fields["title"]; got != "T" {
		t.Fatalf(`Fields["title"] = %v, want "T"`, got)
	}
	rows, ok := art.Fields["rows"].([]any)
	if !ok || len(rows) != 0 {
		t.Fatalf(`Fields["rows"] = %v, want empty array`, art.Fields["rows"])
	}
}

func TestDecode_NarrativeIsExactAccumulatedText(t *testing.T) {
	cases := []struct {
		name string
		text string
	}{
		{"plain_text", "Hello there, how can I help?"},
		{"no_closing_brace", `{"kind":"table","title":"T"`},
		{"malformed_json", "before { not json } after"},
		{"unknown_kind", `{"kind":"banana","title":"T"}`},
		{"kind_not_string", `{"kind":42}`},
		{"brace_pair_reversed", "} nothing here {"},
		{"empty", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			content := Decode(tc.text)
			n, ok := content.(types.Narrative)
			if !ok {
				t.Fatalf("Decode() = %T, want Narrative", content)
			}
			if n.Text != tc.text {
				t.Fatalf("narrative altered: %q != %q", n.Text, tc.text)
			}
		})
	}
}

func TestDecode_ResumeDefaultTemplate(t *testing.T) {
	content := Decode(`{"kind":"resume","name":"Ada"}`)
	art, ok := content.(types.Artifact)
	if !ok {
		t.Fatalf("Decode() = %T, want Artifact", content)
	}
	if got, want := art.Fields["template"], types.DefaultResumeTemplate; got != want {
		t.Fatalf("template = %v, want %v", got, want)
	}

	// A supplied template is kept.
	content = Decode(`{"kind":"resume","name":"Ada","template":"modern"}`)
	art = content.(types.Artifact)
	if got := art.Fields["template"]; got != "modern" {
		t.Fatalf("template = %v, want modern", got)
	}
}

func TestDecode_ExtraFieldsPreserved(t *testing.T) {
	content := Decode(`{"kind":"chart","title":"C","labels":[],"series":[],"custom_flag":true}`)
	art, ok := content.(types.Artifact)
	if !ok {
		t.Fatalf("Decode() = %T, want Artifact", content)
	}
	if got := art.Fields["custom_flag"]; got != true {
		t.Fatalf("custom_flag = %v, want true", got)
	}
}

func TestDecode_SingleAttemptSpansFirstToLastBrace(t *testing.T) {
	// Two valid objects back to back: the first-{ to last-} span is not valid
	// JSON, and the decoder must not retry on inner candidates.
	text := `{"kind":"table","rows":[]} {"kind":"chart"}`
	content := Decode(text)
	if _, ok := content.(types.Narrative); !ok {
		t.Fatalf("Decode() = %T, want Narrative (single parse attempt)", content)
	}
}

func TestAccumulator_AppendPublishesPartials(t *testing.T) {
	acc := NewAccumulator()
	if got := acc.Append("Hel"); got != "Hel" {
		t.Fatalf("partial = %q, want Hel", got)
	}
	if got := acc.Append("lo"); got != "Hello" {
		t.Fatalf("partial = %q, want Hello", got)
	}

	content, _ := acc.Finalize()
	n, ok := content.(types.Narrative)
	if !ok || n.Text != "Hello" {
		t.Fatalf("Finalize() = %#v, want narrative Hello", content)
	}
}

func TestAccumulator_SourceAdmissionAndDedup(t *testing.T) {
	acc := NewAccumulator()
	acc.AddSources([]types.Source{
		{URI: "https://a.example", Title: "A"},
		{URI: "", Title: "no uri"},
		{URI: "https://b.example", Title: "B"},
	})
	acc.AddSources([]types.Source{
		{URI: "https://a.example", Title: "A again"},
	})

	want := []types.Source{
		{URI: "https://a.example", Title: "A"},
		{URI: "https://b.example", Title: "B"},
	}
	if got := acc.Sources(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Sources() = %#v, want %#v", got, want)
	}
}

func TestAccumulator_FinalizeError(t *testing.T) {
	acc := NewAccumulator()
	acc.Append("partial garbage that must not surface")

	content := acc.FinalizeError()
	n, ok := content.(types.Narrative)
	if !ok || n.Text != StreamFailureNarrative {
		t.Fatalf("FinalizeError() = %#v, want fixed failure narrative", content)
	}
}
