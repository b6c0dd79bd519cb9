// api/schemas/outcome.go
package schemas

// PublishStatus classifies the result of one publish attempt.
type PublishStatus string

const (
	// StatusSuccess means the listing was submitted and a result URL observed.
	StatusSuccess PublishStatus = "success"
	// StatusFieldResolutionFailed means the element locator exhausted every
	// strategy for a required field.
	StatusFieldResolutionFailed PublishStatus = "field_resolution_failed"
	// StatusNavigationIntegrityViolation means the page identity drifted where
	// only an in-place UI update was expected.
	StatusNavigationIntegrityViolation PublishStatus = "navigation_integrity_violation"
	// StatusPhotoIngestionFailed means zero photos uploaded from a non-empty
	// image list.
	StatusPhotoIngestionFailed PublishStatus = "photo_ingestion_failed"
	// StatusSubmissionRejected covers local precondition failures and a
	// disabled submit control.
	StatusSubmissionRejected PublishStatus = "submission_rejected"
	// StatusTimeout means a bounded wait somewhere in the pipeline expired.
	StatusTimeout PublishStatus = "timeout"
)

// PublishOutcome is the single structured result returned to the caller.
// The core never persists it; persistence belongs to external collaborators.
type PublishOutcome struct {
	AttemptID string        `json:"attempt_id"`
	Status    PublishStatus `json:"status"`

	// Present only on success.
	FinalURL  string `json:"final_url,omitempty"`
	ListingID string `json:"listing_id,omitempty"`

	// Present for taxonomy placement failures: the zero-based level and the
	// segment label that could not be selected.
	FailingLevel   int    `json:"failing_level,omitempty"`
	FailingSegment string `json:"failing_segment,omitempty"`

	// Human-readable detail for triage. Never required for an automated
	// decision by the caller.
	Diagnostic string `json:"diagnostic,omitempty"`

	// Best-effort PNG screenshot captured on failure. May be nil; its absence
	// is never itself an error.
	Snapshot []byte `json:"snapshot,omitempty"`
}

// Succeeded reports whether the attempt produced a live listing.
func (o *PublishOutcome) Succeeded() bool {
	return o.Status == StatusSuccess
}
