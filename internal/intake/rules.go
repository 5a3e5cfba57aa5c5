package intake

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/ladywillingdontech-stack/healthai/pkg"
)

// FieldSlot names one required answer within a phase together with the kind
// of value expected from the patient.
type FieldSlot struct {
	ID   string        `mapstructure:"id"`
	Kind pkg.ValueKind `mapstructure:"kind"`
}

// Rules is the product configuration driving the intake dialogue: the
// required-field set per phase (in fixed priority order), the alert trigger
// patterns, and the dialogue bounds.  The defaults below mirror the sample
// questionnaire; deployments override them via a YAML rules file.
type Rules struct {
	OnboardingFields  []FieldSlot `mapstructure:"onboarding_fields"`
	DemographicFields []FieldSlot `mapstructure:"demographic_fields"`
	SymptomSlots      []FieldSlot `mapstructure:"symptom_slots"`
	RedPatterns       []string    `mapstructure:"red_patterns"`
	YellowPatterns    []string    `mapstructure:"yellow_patterns"`
	MaxSymptoms       int         `mapstructure:"max_symptoms"`
	MaxReasks         int         `mapstructure:"max_reasks"`
}

// DefaultRules returns the built-in questionnaire configuration.
func DefaultRules() Rules {
	return Rules{
		OnboardingFields: []FieldSlot{
			{ID: "name", Kind: pkg.KindText},
		},
		DemographicFields: []FieldSlot{
			{ID: "age", Kind: pkg.KindNumber},
			{ID: "gender", Kind: pkg.KindText},
			{ID: "marital_status", Kind: pkg.KindText},
			{ID: "family_history", Kind: pkg.KindText},
		},
		SymptomSlots: []FieldSlot{
			{ID: "symptom", Kind: pkg.KindText},
			{ID: "duration", Kind: pkg.KindText},
			{ID: "detail", Kind: pkg.KindText},
		},
		RedPatterns: []string{
			"chest pain",
			"breathless",
			"shortness of breath",
			"fainting",
			"fainted",
			"severe bleeding",
			"heart attack",
			"stroke",
			"unconscious",
		},
		YellowPatterns: []string{
			"mild",
			"headache",
			"cough",
			"fatigue",
			"fever",
			"discomfort",
		},
		MaxSymptoms: 5,
		MaxReasks:   2,
	}
}

// LoadRules reads a YAML rules file and overlays it on the defaults.  Keys
// absent from the file keep their default values.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return rules, fmt.Errorf("read rules file: %w", err)
	}
	if err := v.Unmarshal(&rules); err != nil {
		return rules, fmt.Errorf("unmarshal rules file: %w", err)
	}
	if rules.MaxSymptoms <= 0 {
		rules.MaxSymptoms = 1
	}
	if rules.MaxReasks < 0 {
		rules.MaxReasks = 0
	}
	return rules, nil
}
