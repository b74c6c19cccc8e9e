// Package prompt implements component D: a pure, deterministic function
// from (user prompt, optional AgentProfile) to the final text sent to the
// backend. There is no direct teacher analogue for persona assembly; the
// style is grounded in the teacher's provider adapters' preference for
// small, pure "build the wire payload" functions and their use of
// strings.Builder for assembly (internal/provider/ollama/ollama.go).
package prompt

import (
	"strings"

	"github.com/blueberrycongee/agentgate/pkg/types"
)

const (
	sectionDelimiter = "---"
	promptMarker     = "### USER PROMPT"
)

// MaxAssembledLength bounds the final prompt text. When the persona header
// would push the assembled prompt past this bound, context is truncated
// first, then the personality/mental-state listings — the user prompt
// itself is never truncated (spec §4.D).
const MaxAssembledLength = 8192

// Assemble composes the final prompt. With no profile, the user prompt
// passes through unchanged. With a profile, a persona header precedes the
// user prompt, separated by a marker line. Absent fields are omitted
// entirely; no synthesized defaults appear in the text, and assembly never
// depends on anything but its two inputs.
func Assemble(userPrompt string, profile *types.AgentProfile) string {
	if profile == nil {
		return userPrompt
	}

	header := buildHeader(profile)
	if header == "" {
		return userPrompt
	}

	budget := MaxAssembledLength - len(userPrompt) - len(promptMarker) - 2
	header = fitHeader(profile, budget)
	if header == "" {
		return userPrompt
	}

	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n")
	b.WriteString(promptMarker)
	b.WriteString("\n")
	b.WriteString(userPrompt)
	return b.String()
}

// buildHeader renders the full, untruncated persona header.
func buildHeader(p *types.AgentProfile) string {
	var b strings.Builder
	writeIdentity(&b, p)
	writePersonality(&b, p)
	writeMentalState(&b, p)
	writeContext(&b, p)
	return strings.TrimRight(b.String(), "\n")
}

// fitHeader rebuilds the header under budget, truncating context first and
// then the personality/mental-state sections, never the identity line or
// the user prompt (which isn't part of this function at all).
func fitHeader(p *types.AgentProfile, budget int) string {
	full := buildHeader(p)
	if budget <= 0 {
		return ""
	}
	if len(full) <= budget {
		return full
	}

	// Drop context first.
	withoutContext := copyProfile(p)
	withoutContext.Context = ""
	trimmed := buildHeader(withoutContext)
	if len(trimmed) <= budget {
		return trimmed
	}

	// Then drop personality/mental-state, keeping only identity.
	identityOnly := &types.AgentProfile{AgentID: p.AgentID, Name: p.Name, Age: p.Age, Occupation: p.Occupation}
	identity := buildHeader(identityOnly)
	if len(identity) <= budget {
		return identity
	}

	// Even the identity line doesn't fit; hard-truncate it as a last
	// resort rather than exceed the bound.
	if budget <= 0 {
		return ""
	}
	return identity[:budget]
}

func copyProfile(p *types.AgentProfile) *types.AgentProfile {
	cp := *p
	return &cp
}

func writeIdentity(b *strings.Builder, p *types.AgentProfile) {
	b.WriteString("### AGENT\n")
	if p.HasName() {
		b.WriteString("name: ")
		b.WriteString(p.Name)
		b.WriteString("\n")
	}
	if p.Age != nil {
		b.WriteString("age: ")
		b.WriteString(itoa(*p.Age))
		b.WriteString("\n")
	}
	if p.Occupation != "" {
		b.WriteString("occupation: ")
		b.WriteString(p.Occupation)
		b.WriteString("\n")
	}
	b.WriteString(sectionDelimiter)
	b.WriteString("\n")
}

func writePersonality(b *strings.Builder, p *types.AgentProfile) {
	lines := make([]string, 0, len(types.OrderedTraits))
	for _, trait := range types.OrderedTraits {
		if v, ok := p.Personality.Get(trait); ok {
			lines = append(lines, string(trait)+": "+ftoa(v))
		}
	}
	if len(lines) == 0 {
		return
	}
	b.WriteString("### PERSONALITY\n")
	for _, l := range lines {
		b.WriteString(l)
		b.WriteString("\n")
	}
	b.WriteString(sectionDelimiter)
	b.WriteString("\n")
}

func writeMentalState(b *strings.Builder, p *types.AgentProfile) {
	lines := make([]string, 0, len(types.OrderedMentalStateFields))
	for _, field := range types.OrderedMentalStateFields {
		if v, ok := p.MentalState.Get(field); ok {
			lines = append(lines, string(field)+": "+v)
		}
	}
	if len(lines) == 0 {
		return
	}
	b.WriteString("### MENTAL STATE\n")
	for _, l := range lines {
		b.WriteString(l)
		b.WriteString("\n")
	}
	b.WriteString(sectionDelimiter)
	b.WriteString("\n")
}

func writeContext(b *strings.Builder, p *types.AgentProfile) {
	if p.Context == "" {
		return
	}
	b.WriteString("### SITUATION\n")
	b.WriteString(p.Context)
	b.WriteString("\n")
	b.WriteString(sectionDelimiter)
	b.WriteString("\n")
}
