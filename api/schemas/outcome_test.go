// api/schemas/outcome_test.go
package schemas

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishOutcomeSucceeded(t *testing.T) {
	assert.True(t, (&PublishOutcome{Status: StatusSuccess}).Succeeded())

	failures := []PublishStatus{
		StatusFieldResolutionFailed,
		StatusNavigationIntegrityViolation,
		StatusPhotoIngestionFailed,
		StatusSubmissionRejected,
		StatusTimeout,
	}
	for _, s := range failures {
		assert.False(t, (&PublishOutcome{Status: s}).Succeeded(), string(s))
	}
}

func TestPublishOutcomeOmitsEmptyFailureFields(t *testing.T) {
	// Success outcomes should not carry failure-only keys in their JSON form.
	data, err := json.Marshal(&PublishOutcome{AttemptID: "a1", Status: StatusSuccess, FinalURL: "https://example.com/items/1"})
	require.NoError(t, err)

	assert.NotContains(t, string(data), "failing_segment")
	assert.NotContains(t, string(data), "diagnostic")
	assert.NotContains(t, string(data), "snapshot")
}
