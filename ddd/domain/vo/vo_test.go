package vo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobStatusTransitions(t *testing.T) {
	assert.True(t, JobStatusQueued.CanTransitionTo(JobStatusProcessing))
	assert.False(t, JobStatusQueued.CanTransitionTo(JobStatusCompleted))
	assert.False(t, JobStatusQueued.CanTransitionTo(JobStatusError))
	assert.True(t, JobStatusProcessing.CanTransitionTo(JobStatusCompleted))
	assert.True(t, JobStatusProcessing.CanTransitionTo(JobStatusError))
	assert.False(t, JobStatusProcessing.CanTransitionTo(JobStatusQueued))

	for _, final := range []JobStatus{JobStatusCompleted, JobStatusError} {
		assert.True(t, final.IsFinalStatus())
		for _, target := range []JobStatus{JobStatusQueued, JobStatusProcessing, JobStatusCompleted, JobStatusError} {
			assert.False(t, final.CanTransitionTo(target), "%s -> %s", final, target)
		}
	}
	assert.False(t, JobStatus("cancelled").IsValid())
}

func TestNewPrediction(t *testing.T) {
	tests := []struct {
		p          float64
		label      Label
		confidence float64
	}{
		{0.9, LabelReal, 0.9},
		{0.51, LabelReal, 0.51},
		{0.5, LabelFake, 0.5},
		{0.2, LabelFake, 0.8},
		{0, LabelFake, 1},
	}
	for _, tt := range tests {
		got := NewPrediction(tt.p)
		assert.Equal(t, tt.label, got.Label, "p=%v", tt.p)
		assert.InDelta(t, tt.confidence, got.Confidence, 1e-9, "p=%v", tt.p)
		assert.Equal(t, tt.p, got.Probability)
	}

	sentinel := ErrorPrediction()
	assert.True(t, sentinel.IsError())
	assert.Equal(t, 0.5, sentinel.Probability)
	assert.Zero(t, sentinel.Confidence)
}

func TestSampleIndices(t *testing.T) {
	tests := []struct {
		name      string
		total     int
		maxFrames int
		wantLen   int
		wantLast  int
		stride    int
	}{
		{"exact multiple", 300, 100, 100, 297, 3},
		{"remainder", 250, 100, 100, 198, 2},
		{"fewer frames than cap", 40, 100, 40, 39, 1},
		{"cap equals total", 100, 100, 100, 99, 1},
		{"single frame", 1, 100, 1, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SampleIndices(tt.total, tt.maxFrames)
			require.Len(t, got, tt.wantLen)
			assert.Equal(t, 0, got[0])
			assert.Equal(t, tt.wantLast, got[len(got)-1])
			assert.Equal(t, tt.stride, SampleStride(tt.total, tt.maxFrames))
			for i := 1; i < len(got); i++ {
				assert.Equal(t, tt.stride, got[i]-got[i-1])
			}
		})
	}

	assert.Empty(t, SampleIndices(0, 100))
	assert.Empty(t, SampleIndices(100, 0))
}

func TestEffectiveMaxFrames(t *testing.T) {
	assert.Equal(t, 100, EffectiveMaxFrames(0, 500))
	assert.Equal(t, 40, EffectiveMaxFrames(100, 40))
	assert.Equal(t, 20, EffectiveMaxFrames(20, 40))
	assert.Equal(t, 0, EffectiveMaxFrames(100, 0))
}

func TestTimestampOf(t *testing.T) {
	meta := VideoMetadata{FPS: 30}
	assert.InDelta(t, 1.0, meta.TimestampOf(30), 1e-9)
	assert.Zero(t, VideoMetadata{}.TimestampOf(30))
	assert.Equal(t, "1920x1080", VideoMetadata{Width: 1920, Height: 1080}.Resolution())
}

func TestProgressBands(t *testing.T) {
	assert.Equal(t, 30, ExtractionProgress(0))
	assert.Equal(t, 45, ExtractionProgress(50))
	assert.Equal(t, 60, ExtractionProgress(100))
	assert.Equal(t, 60, ExtractionProgress(250))
	assert.Equal(t, 30, ExtractionProgress(-5))

	assert.Equal(t, 60, InferenceProgress(0, 10))
	assert.Equal(t, 77, InferenceProgress(5, 10))
	assert.Equal(t, 91, InferenceProgress(9, 10))
	assert.Equal(t, 60, InferenceProgress(0, 0))

	last := 0
	for i := 0; i < 100; i++ {
		p := InferenceProgress(i, 100)
		assert.GreaterOrEqual(t, p, last)
		assert.Less(t, p, 96)
		last = p
	}
}

func verdicts(labels ...Label) []FrameVerdict {
	out := make([]FrameVerdict, len(labels))
	for i, l := range labels {
		out[i] = FrameVerdict{Index: i, Label: l}
	}
	return out
}

func TestAggregate(t *testing.T) {
	t.Run("majority fake", func(t *testing.T) {
		res := Aggregate(verdicts(LabelFake, LabelFake, LabelReal), VideoMetadata{}, time.Second)
		assert.Equal(t, LabelFake, res.OverallLabel)
		assert.InDelta(t, 66.666, res.FakePercentage, 0.01)
		assert.Equal(t, 3, res.TotalFramesAnalyzed)
		assert.Equal(t, 2, res.FakeFramesCount)
		assert.Equal(t, 1, res.RealFramesCount)
		assert.Equal(t, 1.0, res.ProcessingTimeSeconds)
	})

	t.Run("exactly half is real", func(t *testing.T) {
		res := Aggregate(verdicts(LabelFake, LabelReal), VideoMetadata{}, 0)
		assert.Equal(t, 50.0, res.FakePercentage)
		assert.Equal(t, LabelReal, res.OverallLabel)
	})

	t.Run("no frames", func(t *testing.T) {
		res := Aggregate(nil, VideoMetadata{}, 0)
		assert.Zero(t, res.FakePercentage)
		assert.Equal(t, LabelReal, res.OverallLabel)
		assert.Zero(t, res.TotalFramesAnalyzed)
		assert.Empty(t, res.FrameVerdicts)
	})

	t.Run("error frames count only in total", func(t *testing.T) {
		res := Aggregate(verdicts(LabelFake, LabelError, LabelError, LabelReal), VideoMetadata{}, 0)
		assert.Equal(t, 4, res.TotalFramesAnalyzed)
		assert.Equal(t, 1, res.FakeFramesCount)
		assert.Equal(t, 3, res.RealFramesCount)
		assert.Equal(t, 2, res.ErrorFramesCount)
		assert.Equal(t, 25.0, res.FakePercentage)
		assert.Equal(t, res.TotalFramesAnalyzed, res.FakeFramesCount+res.RealFramesCount)
	})

	t.Run("verdict order preserved and copied", func(t *testing.T) {
		in := verdicts(LabelReal, LabelFake)
		res := Aggregate(in, VideoMetadata{}, 0)
		in[0].Label = LabelFake
		assert.Equal(t, LabelReal, res.FrameVerdicts[0].Label)
		assert.Equal(t, 1, res.FrameVerdicts[1].Index)
	})
}
