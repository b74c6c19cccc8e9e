package types

// PersonalityTrait names one of the Big Five dimensions. Kept as a fixed
// enumeration per spec §9's Open Question resolution: the gateway ships a
// conservative, documented set rather than accepting arbitrary keys, while
// still leaving an Extra bucket for future extension (see AgentProfile.Extra).
type PersonalityTrait string

const (
	TraitOpenness          PersonalityTrait = "openness"
	TraitConscientiousness PersonalityTrait = "conscientiousness"
	TraitExtraversion      PersonalityTrait = "extraversion"
	TraitAgreeableness     PersonalityTrait = "agreeableness"
	TraitNeuroticism       PersonalityTrait = "neuroticism"
)

// OrderedTraits is the canonical order traits are serialized and rendered in,
// so both the fingerprint and the prompt assembler are stable.
var OrderedTraits = []PersonalityTrait{
	TraitOpenness, TraitConscientiousness, TraitExtraversion, TraitAgreeableness, TraitNeuroticism,
}

// Personality holds Big Five trait values in [0,1]. A trait that is not in
// the map is absent, which is distinct from a value of 0.5 — see spec §9.
type Personality map[PersonalityTrait]float64

// Get reports whether trait is present and, if so, its value.
func (p Personality) Get(t PersonalityTrait) (float64, bool) {
	if p == nil {
		return 0, false
	}
	v, ok := p[t]
	return v, ok
}

// MentalStateField names a recognized mental-state key.
type MentalStateField string

const (
	FieldStressLevel     MentalStateField = "stress_level"
	FieldLifeSatisfaction MentalStateField = "life_satisfaction"
	FieldCurrentEmotion  MentalStateField = "current_emotion"
)

// OrderedMentalStateFields is the canonical rendering/fingerprint order.
var OrderedMentalStateFields = []MentalStateField{
	FieldStressLevel, FieldLifeSatisfaction, FieldCurrentEmotion,
}

// MentalState holds the recognized mental-state fields. stress_level and
// life_satisfaction are numeric strings in [0,1]; current_emotion is a short
// free-text label. All are optional and stored as strings so "absent" can be
// distinguished from a falsy numeric value without a pointer-per-field.
type MentalState map[MentalStateField]string

// Get reports whether field is present and, if so, its raw value.
func (m MentalState) Get(f MentalStateField) (string, bool) {
	if m == nil {
		return "", false
	}
	v, ok := m[f]
	return v, ok
}

// AgentProfile describes the speaker behind a request. Every field is
// optional; absence must never be synthesized into a default by the
// fingerprinter or the prompt assembler (spec §9).
type AgentProfile struct {
	AgentID    int    `json:"agent_id,omitempty"`
	Name       string `json:"name,omitempty"`
	Age        *int   `json:"age,omitempty"`
	Occupation string `json:"occupation,omitempty"`

	Personality Personality `json:"personality,omitempty"`
	MentalState MentalState `json:"mental_state,omitempty"`

	// Extra holds additional optional numeric traits beyond the Big Five,
	// the documented extension point from spec §9's Open Question. Keys are
	// free-form but participate in fingerprint/prompt assembly sorted
	// lexicographically for determinism.
	Extra map[string]float64 `json:"extra,omitempty"`

	Context string `json:"context,omitempty"`
}

// HasName reports whether a non-empty display name was supplied.
func (p *AgentProfile) HasName() bool {
	return p != nil && p.Name != ""
}
