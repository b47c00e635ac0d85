package streamingest

import (
	"testing"

	"github.com/rendiffdev/visionguard/internal/frame"
	"github.com/rendiffdev/visionguard/internal/pipeline"
	"github.com/rendiffdev/visionguard/internal/registry"
	"github.com/rendiffdev/visionguard/internal/videodetect"
)

func newTestService() *Service {
	reg := registry.New()
	fp := pipeline.NewFramePipeline(reg, frame.DefaultProfile())
	return NewService(fp, videodetect.New(), frame.DefaultProfile())
}

func TestServiceStartStreamThenConflict(t *testing.T) {
	svc := newTestService()
	defer svc.StopAll()

	if _, err := svc.StartStream("cam-1", "rtsp://invalid.example/stream", SourceRTSP, Options{}, nil); err != nil {
		t.Fatalf("StartStream: %v", err)
	}
	if _, err := svc.StartStream("cam-1", "rtsp://invalid.example/stream", SourceRTSP, Options{}, nil); err == nil {
		t.Fatal("StartStream on an already-running id should error")
	}
}

func TestServiceStatusAndResultsUnknownStream(t *testing.T) {
	svc := newTestService()
	if _, err := svc.Status("missing"); err == nil {
		t.Fatal("Status on an unknown stream should error")
	}
	if _, err := svc.Results("missing", 10, nil); err == nil {
		t.Fatal("Results on an unknown stream should error")
	}
}

func TestServiceStopStreamIsIdempotent(t *testing.T) {
	svc := newTestService()
	svc.StartStream("cam-2", "rtsp://invalid.example/stream", SourceRTSP, Options{}, nil)

	if err := svc.StopStream("cam-2"); err != nil {
		t.Fatalf("StopStream: %v", err)
	}
	if err := svc.StopStream("cam-2"); err != nil {
		t.Fatalf("StopStream on an already-stopped id should not error: %v", err)
	}
	if err := svc.StopStream("never-started"); err != nil {
		t.Fatalf("StopStream on an unknown id should not error: %v", err)
	}
}

func TestServiceListReflectsRunningStreams(t *testing.T) {
	svc := newTestService()
	defer svc.StopAll()

	svc.StartStream("cam-3", "rtsp://invalid.example/a", SourceRTSP, Options{}, nil)
	svc.StartStream("cam-4", "rtsp://invalid.example/b", SourceRTSP, Options{}, nil)

	list := svc.List()
	if len(list) != 2 {
		t.Fatalf("List len = %d, want 2", len(list))
	}
}
