package recognizer

import (
	"os/exec"
	"strings"
)

// detectDevice picks the compute device and numeric precision for the local
// backend. An explicit override wins; otherwise we probe for an NVIDIA GPU
// and degrade silently to the CPU when none is found. Runs once at engine
// construction, not per request.
func detectDevice(override string) (device, computeType string) {
	switch strings.ToLower(strings.TrimSpace(override)) {
	case "cuda":
		return "cuda", "float16"
	case "cpu":
		return "cpu", "float32"
	}

	if _, err := exec.LookPath("nvidia-smi"); err == nil {
		return "cuda", "float16"
	}
	return "cpu", "float32"
}
