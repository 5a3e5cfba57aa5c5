package llm

import (
	"context"
	"fmt"

	"github.com/ladywillingdontech-stack/healthai/internal/intake"
	"github.com/ladywillingdontech-stack/healthai/pkg"
)

// MockClient is a deterministic NLG stand-in used in tests and when no API
// key is configured.  It echoes the structured instruction as plain text.
type MockClient struct{}

// NewMockClient constructs the mock NLG client.
func NewMockClient() *MockClient { return &MockClient{} }

func (m *MockClient) Question(ctx context.Context, phase pkg.Phase, field intake.FieldSlot, data map[string]pkg.FieldValue) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return fmt.Sprintf("Please tell me your %s.", field.ID), nil
}

func (m *MockClient) Narrative(ctx context.Context, data map[string]pkg.FieldValue, alert pkg.AlertStatus) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return fmt.Sprintf("Intake narrative: %d data fields collected, alert level %s.", len(data), alert.Level), nil
}
