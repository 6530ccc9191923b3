package domain

import "time"

// EventType tags pipeline events broadcast to observers.
type EventType string

const (
	EventAssetEnqueued        EventType = "asset_enqueued"
	EventStageChanged         EventType = "stage_changed"
	EventCompetitionCompleted EventType = "competition_completed"
	EventJobStarted           EventType = "job_started"
	EventJobFinished          EventType = "job_finished"
	EventAssetReadyForReview  EventType = "asset_ready_for_review"
	EventAssetFailed          EventType = "asset_failed"
	EventReviewDecided        EventType = "review_decided"
	EventBudgetUpdated        EventType = "budget_updated"
	EventBudgetExceeded       EventType = "budget_exceeded"
	EventPipelinePaused       EventType = "pipeline_paused"
	EventPipelineResumed      EventType = "pipeline_resumed"
	EventPipelineAborted      EventType = "pipeline_aborted"
)

// PipelineEvent is an immutable record of a state change or control
// action. Seq is assigned by the broadcaster and is strictly monotonic
// across the whole run.
type PipelineEvent struct {
	Seq     uint64         `json:"seq"`
	Type    EventType      `json:"type"`
	AssetID string         `json:"asset_id,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
	At      time.Time      `json:"at"`
}
