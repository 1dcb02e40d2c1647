package models

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// DifficultyLevel is the user's preferred pacing
type DifficultyLevel string

const (
	DifficultyBeginner     DifficultyLevel = "beginner"
	DifficultyIntermediate DifficultyLevel = "intermediate"
	DifficultyAdvanced     DifficultyLevel = "advanced"
)

// ParseDifficulty normalizes a difficulty string
func ParseDifficulty(s string) (DifficultyLevel, bool) {
	switch DifficultyLevel(strings.ToLower(strings.TrimSpace(s))) {
	case DifficultyBeginner:
		return DifficultyBeginner, true
	case DifficultyIntermediate:
		return DifficultyIntermediate, true
	case DifficultyAdvanced:
		return DifficultyAdvanced, true
	}
	return "", false
}

// LearningStyle is open-ended; visual, reading and practical have resource mappings
type LearningStyle string

const (
	StyleVisual    LearningStyle = "visual"
	StyleReading   LearningStyle = "reading"
	StylePractical LearningStyle = "practical"
)

// PreferenceProfile holds a user's declared learning preferences.
// A nil pointer or nil slice means the field was never provided.
type PreferenceProfile struct {
	DifficultyPreference  *DifficultyLevel `json:"difficulty_preference,omitempty"`
	LearningStyle         *LearningStyle   `json:"learning_style,omitempty"`
	PreferredContentTypes []string         `json:"preferred_content_types,omitempty"`
	AvailableHoursPerWeek *float64         `json:"available_hours_per_week,omitempty"`
	YearsOfExperience     *float64         `json:"years_of_experience,omitempty"`
	CareerGoals           []string         `json:"career_goals,omitempty"`
	Interests             []string         `json:"interests,omitempty"`
	UpdatedAt             time.Time        `json:"updated_at,omitempty"`
}

// Difficulty returns the difficulty preference or "" when absent
func (p *PreferenceProfile) Difficulty() DifficultyLevel {
	if p == nil || p.DifficultyPreference == nil {
		return ""
	}
	return *p.DifficultyPreference
}

// Style returns the learning style or "" when absent
func (p *PreferenceProfile) Style() LearningStyle {
	if p == nil || p.LearningStyle == nil {
		return ""
	}
	return *p.LearningStyle
}

// FlexNumber accepts a JSON number or a numeric string. Unparseable input
// is recorded rather than failing the surrounding decode.
type FlexNumber struct {
	Value float64
	Set   bool
	Valid bool
	Raw   string
}

// UnmarshalJSON implements json.Unmarshaler
func (n *FlexNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = FlexNumber{}
		return nil
	}
	n.Set = true
	n.Raw = string(data)

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		n.Raw = s
		if strings.TrimSpace(s) == "" {
			n.Set = false
			return nil
		}
		data = []byte(strings.TrimSpace(s))
	}

	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		n.Valid = false
		return nil
	}
	n.Value = v
	n.Valid = true
	return nil
}

// MarshalJSON implements json.Marshaler
func (n FlexNumber) MarshalJSON() ([]byte, error) {
	if !n.Set {
		return []byte("null"), nil
	}
	if !n.Valid {
		return json.Marshal(n.Raw)
	}
	return json.Marshal(n.Value)
}

// FlexStrings accepts a JSON array of strings, a JSON-encoded array inside
// a string, or a comma separated string.
type FlexStrings struct {
	Values []string
	Set    bool
	Valid  bool
	Raw    string
}

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexStrings) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = FlexStrings{}
		return nil
	}
	f.Set = true
	f.Raw = string(data)

	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		f.Values = cleanList(list)
		f.Valid = true
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		f.Valid = false
		return nil
	}
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") {
		if err := json.Unmarshal([]byte(s), &list); err != nil {
			f.Valid = false
			return nil
		}
		f.Values = cleanList(list)
		f.Valid = true
		return nil
	}
	f.Values = cleanList(strings.Split(s, ","))
	f.Valid = true
	return nil
}

// MarshalJSON implements json.Marshaler
func (f FlexStrings) MarshalJSON() ([]byte, error) {
	if !f.Set || !f.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(f.Values)
}

// PreferenceInput is the loosely typed preference payload accepted from
// clients. Normalize converts it into a PreferenceProfile.
type PreferenceInput struct {
	DifficultyPreference  string      `json:"difficulty_preference"`
	LearningStyle         string      `json:"learning_style"`
	PreferredContentTypes FlexStrings `json:"preferred_content_types"`
	AvailableHoursPerWeek FlexNumber  `json:"available_hours_per_week"`
	YearsOfExperience     FlexNumber  `json:"years_of_experience"`
	CareerGoals           FlexStrings `json:"career_goals"`
	Interests             FlexStrings `json:"interests"`
}

// Normalize builds a PreferenceProfile. Fields that fail to parse are left
// absent and reported as errors wrapping ErrMalformedPreferenceData; the
// remaining fields are still applied.
func (in PreferenceInput) Normalize() (PreferenceProfile, []error) {
	var (
		p      PreferenceProfile
		issues []error
	)

	if s := strings.TrimSpace(in.DifficultyPreference); s != "" {
		if d, ok := ParseDifficulty(s); ok {
			p.DifficultyPreference = &d
		} else {
			issues = append(issues, fmt.Errorf("difficulty_preference %q: %w", s, ErrMalformedPreferenceData))
		}
	}

	if s := strings.ToLower(strings.TrimSpace(in.LearningStyle)); s != "" {
		style := LearningStyle(s)
		p.LearningStyle = &style
	}

	p.PreferredContentTypes = flexList("preferred_content_types", in.PreferredContentTypes, &issues)
	p.CareerGoals = flexList("career_goals", in.CareerGoals, &issues)
	p.Interests = flexList("interests", in.Interests, &issues)
	p.AvailableHoursPerWeek = flexValue("available_hours_per_week", in.AvailableHoursPerWeek, &issues)
	p.YearsOfExperience = flexValue("years_of_experience", in.YearsOfExperience, &issues)

	return p, issues
}

func flexList(field string, f FlexStrings, issues *[]error) []string {
	if !f.Set {
		return nil
	}
	if !f.Valid {
		*issues = append(*issues, fmt.Errorf("%s %s: %w", field, f.Raw, ErrMalformedPreferenceData))
		return nil
	}
	return f.Values
}

func flexValue(field string, n FlexNumber, issues *[]error) *float64 {
	if !n.Set {
		return nil
	}
	if !n.Valid {
		*issues = append(*issues, fmt.Errorf("%s %q: %w", field, n.Raw, ErrMalformedPreferenceData))
		return nil
	}
	v := n.Value
	return &v
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
