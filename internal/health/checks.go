package health

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/MrWong99/podium/pkg/landmark"
)

// Binary returns a checker that passes when the named executable resolves on
// PATH (or exists, for an absolute path).
func Binary(name, path string) Checker {
	if path == "" {
		path = name
	}
	return Checker{
		Name: name,
		Check: func(context.Context) error {
			if _, err := exec.LookPath(path); err != nil {
				return fmt.Errorf("%s not resolvable: %w", path, err)
			}
			return nil
		},
	}
}

// Detectors returns a checker that passes when at least one landmark detector
// loaded. A process without any detector can still score audio, but every
// visual score will be unknown. The report lists each modality as "ok" or
// "unavailable: <reason>".
func Detectors(dets landmark.Detectors) Checker {
	modalities := []landmark.Modality{landmark.Hand, landmark.Face, landmark.Pose}
	return Checker{
		Name: "detectors",
		Check: func(context.Context) error {
			var missing []string
			for _, m := range modalities {
				d := dets.Get(m)
				if d.Available() {
					return nil
				}
				missing = append(missing, fmt.Sprintf("%s (%s)", m, landmark.Reason(d)))
			}
			return errors.New("no detector available: " + strings.Join(missing, ", "))
		},
		Detail: func() map[string]string {
			out := make(map[string]string, len(modalities))
			for _, m := range modalities {
				out[string(m)] = detectorState(dets.Get(m))
			}
			return out
		},
	}
}

func detectorState(d landmark.Detector) string {
	if d.Available() {
		return StatusOK
	}
	if reason := landmark.Reason(d); reason != "" {
		return "unavailable: " + reason
	}
	return "unavailable"
}
