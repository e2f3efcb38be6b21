package domain

import (
	"time"

	"github.com/google/uuid"
)

// Run ("fonte") is one processing execution over a (video tag, model) pair
// and the unit of metric aggregation. The counters and metric fields are a
// cache of what the metrics engine derives from presences/frames/persons;
// recomputation fully replaces them.
type Run struct {
	ID         uuid.UUID `json:"id"`
	VideoTag   string    `json:"video_tag"`
	Model      string    `json:"model"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	NominalDurationSeconds *float64 `json:"nominal_duration_seconds,omitempty"`
	ExpectedIdentities     *int     `json:"expected_identities,omitempty"`

	Metrics RunMetrics `json:"metrics"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RunMetrics is the full derived metric set for a run.
type RunMetrics struct {
	TotalFrames          int64 `json:"total_frames"`
	FacesAnalyzed        int64 `json:"faces_analyzed"`
	Clusters             int64 `json:"clusters"`
	UnresolvedIdentities int   `json:"unresolved_identities"`

	ElapsedSeconds float64  `json:"elapsed_seconds"`
	RealtimeRatio  *float64 `json:"realtime_ratio,omitempty"`

	Coverage float64 `json:"coverage"`

	TruePositives  int64   `json:"true_positives"`
	TrueNegatives  int64   `json:"true_negatives"`
	FalsePositives int64   `json:"false_positives"`
	FalseNegatives int64   `json:"false_negatives"`
	Accuracy       float64 `json:"accuracy"`
	Precision      float64 `json:"precision"`
	Recall         float64 `json:"recall"`
	F1Score        float64 `json:"f1_score"`

	InterClusterDistance float64  `json:"inter_cluster_distance"`
	IntraClusterDistance float64  `json:"intra_cluster_distance"`
	Silhouette           *float64 `json:"silhouette,omitempty"`
	Homogeneity          float64  `json:"homogeneity"`
	Completeness         float64  `json:"completeness"`
	VMeasure             float64  `json:"v_measure"`
}
