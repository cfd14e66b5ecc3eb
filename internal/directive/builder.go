// Package directive assembles the instruction text governing the model's
// next response. Assembly is a pure function of its inputs: same inputs,
// byte-identical directive. All hidden state (persona edits, profile growth)
// lives upstream; this package only concatenates in a fixed precedence order.
package directive

import (
	"fmt"
	"strings"

	"parley/internal/retrieval"
	"parley/internal/types"
)

// Input carries everything the assembler may use. Nil/empty fields simply
// drop their sections; the section order never changes.
type Input struct {
	Settings        types.Settings
	Profile         types.UserProfile
	GeneralMemories []string
	Persona         *types.Persona
	Knowledge       []types.KnowledgeFile
	PinnedMemories  []string
	Snippets        []types.ContextSnippet
	Locale          string
}

// basePersonas are the locale-specific default persona statements. Each
// declares its primary response language, so the language guarantee does not
// re-append a directive for them.
var basePersonas = map[string]string{
	"en": "You are Parley, a helpful, knowledgeable assistant. Respond primarily in English.",
	"es": "You are Parley, a helpful, knowledgeable assistant. Respond primarily in Spanish.",
}

// genericPersona is used for locales without a built-in statement. It
// deliberately omits a language declaration so the language guarantee
// appends one matching the locale.
const genericPersona = "You are Parley, a helpful, knowledgeable assistant."

// languageMarker is the phrase that counts as a primary-language
// declaration. Checked case-insensitively against the chosen base text.
const languageMarker = "respond primarily in"

// Section labels. Verbatim in the output; tests pin them.
const (
	labelFormatRules    = "## Response format rules"
	labelProfile        = "## What you know about the user"
	labelMemories       = "## Remembered context"
	labelPinned         = "## Important user statements"
	labelKnowledge      = "## Attached knowledge"
	labelRetrieved      = "## Prior conversations"
	labelModes          = "## Active modes"
	knowledgeDelimiter  = "-----"
	sectionSeparator    = "\n\n"
)

// Build assembles the directive.
//
// Precedence: (1) an active persona's directive override replaces the default
// persona statement entirely; (2) a language directive is appended when the
// chosen base text declares no primary response language; (3) the labeled
// sections follow in fixed order, each present only when its input is
// non-empty, except the mode notes whose presence is driven solely by the
// settings flags.
func Build(in Input) string {
	sections := []string{baseText(in)}

	sections = append(sections, formatRules())

	if s := serializeProfile(in.Profile); s != "" {
		sections = append(sections, labelProfile+"\n"+s)
	}
	if len(in.GeneralMemories) > 0 {
		sections = append(sections, labelMemories+"\n"+strings.Join(in.GeneralMemories, "\n"))
	}
	if len(in.PinnedMemories) > 0 {
		var b strings.Builder
		b.WriteString(labelPinned)
		for _, m := range in.PinnedMemories {
			b.WriteString(fmt.Sprintf("\nThe user has stated: %q", m))
		}
		sections = append(sections, b.String())
	}
	if len(in.Knowledge) > 0 {
		var b strings.Builder
		b.WriteString(labelKnowledge)
		for _, k := range in.Knowledge {
			b.WriteString("\n" + knowledgeDelimiter + "\n")
			b.WriteString("File: " + k.Name + "\n")
			b.WriteString(k.Text)
			b.WriteString("\n" + knowledgeDelimiter)
		}
		sections = append(sections, b.String())
	}
	if block := retrieval.RenderBlock(in.Snippets); block != "" {
		sections = append(sections, labelRetrieved+"\n"+block)
	}
	if notes := modeNotes(in.Settings); notes != "" {
		sections = append(sections, labelModes+"\n"+notes)
	}

	return strings.Join(sections, sectionSeparator)
}

// baseText picks the persona text and applies the language guarantee.
func baseText(in Input) string {
	var base string
	if in.Persona != nil && in.Persona.DirectiveOverride != "" {
		base = in.Persona.DirectiveOverride
	} else if b, ok := basePersonas[in.Locale]; ok {
		base = b
	} else {
		base = genericPersona
	}

	if !strings.Contains(strings.ToLower(base), languageMarker) {
		base += fmt.Sprintf("\nAlways respond primarily in the language for locale %q unless the user explicitly asks otherwise.", in.Locale)
	}
	return base
}

// formatRules lists the closed set of structured-artifact kinds and when
// each applies versus free-text formatting.
func formatRules() string {
	var b strings.Builder
	b.WriteString(labelFormatRules + "\n")
	b.WriteString("When the user's request matches one of the structured response kinds below, ")
	b.WriteString("reply with a single JSON object {\"kind\": <kind>, ...} using the listed fields. ")
	b.WriteString("For every other request, reply with plain formatted text.\n")
	for _, kind := range types.ClassifierKinds() {
		b.WriteString(fmt.Sprintf("- %q: fields %s\n", kind, types.KindFieldHints[kind]))
	}
	b.WriteString("Never wrap the JSON object in code fences and never mix it with commentary.")
	return b.String()
}

func serializeProfile(p types.UserProfile) string {
	var lines []string
	if p.Name != "" {
		lines = append(lines, "Name: "+p.Name)
	}
	if p.Profession != "" {
		lines = append(lines, "Profession: "+p.Profession)
	}
	if len(p.Interests) > 0 {
		lines = append(lines, "Interests: "+strings.Join(p.Interests, ", "))
	}
	if len(p.Facts) > 0 {
		lines = append(lines, "Facts: "+strings.Join(p.Facts, "; "))
	}
	return strings.Join(lines, "\n")
}

func modeNotes(s types.Settings) string {
	var notes []string
	if s.DeepThinking {
		notes = append(notes, "Deep thinking is enabled: reason step by step and be thorough before answering.")
	}
	if s.ScientificMode {
		notes = append(notes, "Scientific mode is enabled: cite mechanisms, use precise terminology, and quantify claims where possible.")
	}
	if s.SearchEnabled {
		notes = append(notes, "Web search is enabled: ground answers in retrieved sources and cite them.")
	}
	return strings.Join(notes, "\n")
}
