package landmark

import (
	"os"
	"path/filepath"
)

// LegacyEnv maps each modality to the environment variable older deployments
// use to override its model path. The core never reads these itself; the
// configuration layer consults them only when asked to.
var LegacyEnv = map[Modality]string{
	Hand: "NON_VERBAL_HAND_MODEL_PATH",
	Face: "NON_VERBAL_FACE_MODEL_PATH",
	Pose: "NON_VERBAL_POSE_MODEL_PATH",
}

// DefaultCandidates returns the bundled model locations searched for m,
// relative to baseDir, in priority order.
func DefaultCandidates(baseDir string, m Modality) []string {
	name := string(m) + "_landmarker.onnx"
	return []string{
		filepath.Join(baseDir, "models", name),
		filepath.Join(baseDir, "models", string(m), name),
	}
}

// ResolveModelPath applies the model lookup precedence: an explicit override
// wins when it exists on disk, then the first existing candidate. It returns ""
// when nothing was found, which callers map to an [Unavailable] detector.
func ResolveModelPath(override string, candidates []string) string {
	if override != "" && fileExists(override) {
		return override
	}
	for _, c := range candidates {
		if c != "" && fileExists(c) {
			return c
		}
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
