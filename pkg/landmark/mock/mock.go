// Package mock provides test doubles for the landmark package interfaces.
//
// Detector can either return a fixed result for every call or consult a
// ByIndex or ByImage hook so tests can script presence per frame.
//
// Example:
//
//	det := &mock.Detector{
//	    Mod:  landmark.Hand,
//	    Live: true,
//	    ByIndex: func(i int) (landmark.Set, bool) {
//	        return handAt(0.5, 0.5), i%2 == 0
//	    },
//	}
package mock

import (
	"context"
	"image"
	"sync"

	"github.com/MrWong99/podium/pkg/landmark"
)

// DetectCall records a single invocation of Detector.Detect.
type DetectCall struct {
	// Bounds is the bounds of the image passed to Detect.
	Bounds image.Rectangle
}

// Detector is a mock implementation of landmark.Detector.
type Detector struct {
	mu sync.Mutex

	// Mod is returned by Modality.
	Mod landmark.Modality

	// Live is returned by Available. When false, Detect returns an absent
	// result without consulting the hooks below, like a real unavailable
	// detector.
	Live bool

	// Result and Present are returned when no hook is set.
	Result  landmark.Set
	Present bool

	// ByIndex, if set, is called with the zero-based call count.
	ByIndex func(call int) (landmark.Set, bool)

	// ByImage, if set, takes precedence over ByIndex and receives the frame.
	ByImage func(img image.Image) (landmark.Set, bool)

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	// --- Call records ---

	// DetectCalls records every call to Detect that reached the model.
	DetectCalls []DetectCall

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int
}

// Modality returns Mod.
func (d *Detector) Modality() landmark.Modality { return d.Mod }

// Available returns Live.
func (d *Detector) Available() bool { return d.Live }

// Detect records the call and returns the scripted result.
func (d *Detector) Detect(_ context.Context, img image.Image) (landmark.Set, bool) {
	if !d.Live {
		return landmark.Set{}, false
	}
	d.mu.Lock()
	call := len(d.DetectCalls)
	var b image.Rectangle
	if img != nil {
		b = img.Bounds()
	}
	d.DetectCalls = append(d.DetectCalls, DetectCall{Bounds: b})
	byImage, byIndex := d.ByImage, d.ByIndex
	result, present := d.Result, d.Present
	d.mu.Unlock()

	switch {
	case byImage != nil:
		result, present = byImage(img)
	case byIndex != nil:
		result, present = byIndex(call)
	}
	if present {
		result.Modality = d.Mod
	}
	return result, present
}

// Close records the call and returns CloseErr.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.CloseCallCount++
	return d.CloseErr
}

// Calls returns the number of Detect calls that reached the model. Thread-safe.
func (d *Detector) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.DetectCalls)
}

// Reset clears all recorded calls. Thread-safe.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.DetectCalls = nil
	d.CloseCallCount = 0
}

// Ensure Detector implements landmark.Detector at compile time.
var _ landmark.Detector = (*Detector)(nil)

// Single returns a one-point set at (x, y).
func Single(x, y float64) landmark.Set {
	return landmark.Set{Points: []landmark.Point{{X: x, Y: y}}, Score: 1}
}
