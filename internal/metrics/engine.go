package metrics

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/olho-vivo/presenca/internal/domain"
)

// RunStore reads and rewrites the run being measured.
type RunStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error)
	UpdateMetrics(ctx context.Context, id uuid.UUID, m domain.RunMetrics) error
}

// PresenceStore lists a run's presences.
type PresenceStore interface {
	ListByRun(ctx context.Context, runID uuid.UUID) ([]domain.Presence, error)
}

// PersonStore lists the persons seen under a video tag, embeddings included.
type PersonStore interface {
	ListByTag(ctx context.Context, tag string) ([]domain.Person, error)
}

// FrameStore counts a run's frames.
type FrameStore interface {
	CountForRun(ctx context.Context, runID uuid.UUID, videoTag string) (int64, error)
}

// Engine derives the full metric set of a run from stored data. Every
// recomputation is a complete replacement, so it can be re-run at any time
// and after any amount of curation.
type Engine struct {
	runs      RunStore
	presences PresenceStore
	persons   PersonStore
	frames    FrameStore
	logger    *slog.Logger
}

func NewEngine(runs RunStore, presences PresenceStore, persons PersonStore, frames FrameStore, logger *slog.Logger) *Engine {
	return &Engine{
		runs:      runs,
		presences: presences,
		persons:   persons,
		frames:    frames,
		logger:    logger,
	}
}

// Recompute rebuilds and stores the run's metrics. Idempotent: the same
// stored data always produces the same output.
func (e *Engine) Recompute(ctx context.Context, runID uuid.UUID) (*domain.Run, error) {
	run, err := e.runs.GetByID(ctx, runID)
	if err != nil {
		return nil, err
	}

	presences, err := e.presences.ListByRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	persons, err := e.persons.ListByTag(ctx, run.VideoTag)
	if err != nil {
		return nil, err
	}

	totalFrames, err := e.frames.CountForRun(ctx, runID, run.VideoTag)
	if err != nil {
		return nil, err
	}

	m := e.derive(run, presences, persons, totalFrames)

	if err := e.runs.UpdateMetrics(ctx, runID, m); err != nil {
		return nil, err
	}
	run.Metrics = m

	e.logger.Info("run metrics recomputed",
		"run_id", runID,
		"faces_analyzed", m.FacesAnalyzed,
		"clusters", m.Clusters,
		"coverage", m.Coverage,
	)

	return run, nil
}

func (e *Engine) derive(run *domain.Run, presences []domain.Presence, persons []domain.Person, totalFrames int64) domain.RunMetrics {
	var m domain.RunMetrics

	m.TotalFrames = totalFrames
	m.FacesAnalyzed = int64(len(presences))
	m.Clusters = int64(len(persons))

	elapsed := run.FinishedAt.Sub(run.StartedAt).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	m.ElapsedSeconds = elapsed

	if run.NominalDurationSeconds != nil && *run.NominalDurationSeconds > 0 {
		ratio := elapsed / *run.NominalDurationSeconds
		m.RealtimeRatio = &ratio
	}

	observed := distinctGoldStandards(presences)
	if run.ExpectedIdentities != nil && *run.ExpectedIdentities > 0 {
		expected := *run.ExpectedIdentities

		coverage := float64(observed) / float64(expected)
		if coverage > 1 {
			coverage = 1
		}
		m.Coverage = coverage

		if unresolved := expected - observed; unresolved > 0 {
			m.UnresolvedIdentities = unresolved
		}
	}

	c := tally(presences, m.UnresolvedIdentities)
	m.TruePositives = c.TP
	m.TrueNegatives = c.TN
	m.FalsePositives = c.FP
	m.FalseNegatives = c.FN
	m.Accuracy = c.Accuracy()
	m.Precision = c.Precision()
	m.Recall = c.Recall()
	m.F1Score = c.F1()

	clusters := buildClusters(persons)
	m.InterClusterDistance = interClusterDistance(clusters)
	m.IntraClusterDistance = intraClusterDistance(clusters)
	m.Silhouette = silhouette(clusters)
	m.Homogeneity, m.Completeness, m.VMeasure = vMeasure(presences)

	return m
}

func distinctGoldStandards(presences []domain.Presence) int {
	seen := make(map[string]struct{})
	for _, p := range presences {
		if p.GoldStandard != nil && *p.GoldStandard != "" {
			seen[*p.GoldStandard] = struct{}{}
		}
	}
	return len(seen)
}
