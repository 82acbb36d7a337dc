package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"github.com/ayusman/dactilo/internal/capture"
	"github.com/ayusman/dactilo/internal/detector"
	"github.com/ayusman/dactilo/internal/session"
)

type motionSensor interface {
	Detect(frame *gocv.Mat) (bool, float64)
}

// cameraSource turns camera frames into session frames. Frames are paced by
// the throttle; hand detection only runs while the throttle is active, which
// motion or a visible hand keeps it.
type cameraSource struct {
	camera   capture.Camera
	motion   motionSensor
	detector detector.Detector
	throttle *capture.Throttle
	log      zerolog.Logger

	last time.Time
}

func (s *cameraSource) Next(ctx context.Context) (session.Frame, error) {
	if err := s.wait(ctx); err != nil {
		return session.Frame{}, err
	}

	mat, err := s.camera.ReadFrame()
	if errors.Is(err, capture.ErrFrameNotReady) || errors.Is(err, capture.ErrCameraNotOpen) {
		return session.Frame{}, nil
	}
	if err != nil {
		return session.Frame{}, fmt.Errorf("read frame: %w", err)
	}
	defer mat.Close()

	if !capture.Ready(mat) {
		return session.Frame{}, nil
	}

	moved := s.motion == nil
	if s.motion != nil {
		moved, _ = s.motion.Detect(mat)
	}

	var hand *detector.HandLandmarks
	if moved || s.throttle.Active() {
		hands, err := s.detector.Detect(mat)
		if err != nil {
			return session.Frame{}, fmt.Errorf("detect hands: %w", err)
		}
		hand = detector.FirstHand(hands)
	}

	if fps, changed := s.throttle.Observe(moved || hand != nil, time.Now()); changed {
		s.camera.SetFPS(fps)
		s.log.Debug().Int("fps", fps).Bool("active", s.throttle.Active()).Msg("Capture rate changed")
	}

	return session.Frame{Ready: true, Hand: hand}, nil
}

// wait sleeps until one throttle interval has passed since the previous frame.
func (s *cameraSource) wait(ctx context.Context) error {
	if !s.last.IsZero() {
		if d := s.throttle.Interval() - time.Since(s.last); d > 0 {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
			}
		}
	}
	s.last = time.Now()
	return nil
}
