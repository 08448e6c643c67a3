package port

import (
	"context"

	"deepfake-service/ddd/domain/entity"
)

// ProgressCallback is invoked by frame sources to report percentage progress (0-100).
type ProgressCallback func(progress int)

// ProgressSink persists or forwards job progress and status updates.
type ProgressSink interface {
	SaveProgress(ctx context.Context, job *entity.AnalysisJobEntity) error
}
