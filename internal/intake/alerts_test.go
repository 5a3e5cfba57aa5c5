package intake

import (
	"testing"

	"github.com/ladywillingdontech-stack/healthai/pkg"
)

func TestClassify(t *testing.T) {
	rules := DefaultRules()

	tests := []struct {
		name string
		text string
		want pkg.AlertLevel
	}{
		{"empty", "", pkg.AlertNone},
		{"benign", "my knee feels a bit stiff in the morning", pkg.AlertNone},
		{"yellow headache", "I have had a mild headache for two days", pkg.AlertYellow},
		{"red chest pain", "there is chest pain when I climb stairs", pkg.AlertRed},
		{"red beats yellow", "mild headache but also severe bleeding", pkg.AlertRed},
		{"case insensitive", "CHEST PAIN and dizziness", pkg.AlertRed},
		{"red across messages", "stomach ache\nshortness of breath", pkg.AlertRed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(rules, tt.text)
			if got.Level != tt.want {
				t.Fatalf("Classify(%q) = %s, want %s (reason %q)", tt.text, got.Level, tt.want, got.Reason)
			}
			if tt.want != pkg.AlertNone && got.Reason == "" {
				t.Fatalf("expected a reason for level %s", tt.want)
			}
		})
	}
}

func TestClassifyIdempotent(t *testing.T) {
	rules := DefaultRules()
	text := "chest pain and shortness of breath since this morning"
	first := Classify(rules, text)
	for i := 0; i < 10; i++ {
		again := Classify(rules, text)
		if again != first {
			t.Fatalf("classification changed on repeat: %+v vs %+v", again, first)
		}
	}
}

func TestAlertStatusMergeMonotone(t *testing.T) {
	var a pkg.AlertStatus
	a.Level = pkg.AlertNone

	a.Merge(pkg.AlertYellow, "headache")
	if a.Level != pkg.AlertYellow {
		t.Fatalf("expected yellow, got %s", a.Level)
	}
	a.Merge(pkg.AlertNone, "")
	if a.Level != pkg.AlertYellow {
		t.Fatalf("yellow regressed to %s", a.Level)
	}
	a.Merge(pkg.AlertRed, "chest pain")
	if a.Level != pkg.AlertRed {
		t.Fatalf("expected red, got %s", a.Level)
	}
	a.Merge(pkg.AlertYellow, "cough")
	if a.Level != pkg.AlertRed || a.Reason != "chest pain" {
		t.Fatalf("red regressed: %+v", a)
	}
}
