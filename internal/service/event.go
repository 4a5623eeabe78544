package service

import (
	"context"

	"github.com/kubev2v/wave-planner/internal/events"
	"github.com/kubev2v/wave-planner/internal/store/model"
	"go.uber.org/zap"
)

// emitProject publishes a project transition. A nil producer or an empty
// previous status publishes nothing.
func emitProject(ctx context.Context, producer *events.EventProducer, project model.Project, prev string) {
	if producer == nil || prev == "" || prev == project.Status {
		return
	}
	write(ctx, producer, events.ProjectStatusKind, events.ProjectEvent{
		ProjectID: project.ID.String(),
		Owner:     project.Owner,
		From:      prev,
		To:        project.Status,
	})
}

func emitWave(ctx context.Context, producer *events.EventProducer, wave model.Wave, prev string) {
	if producer == nil {
		return
	}
	write(ctx, producer, events.WaveStatusKind, events.WaveEvent{
		ProjectID: wave.ProjectID.String(),
		WaveID:    wave.ID.String(),
		CohortKey: wave.CohortKey,
		Index:     wave.Index,
		From:      prev,
		To:        wave.Status,
	})
}

// write never fails the caller: the transition is already committed.
func write(ctx context.Context, producer *events.EventProducer, kind string, v any) {
	if err := producer.WriteJSON(ctx, kind, v); err != nil {
		zap.S().Named("service_handler").Errorw("failed to write event", "error", err, "event_kind", kind)
	}
}
