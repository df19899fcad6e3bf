package recognizer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetectDeviceOverrides(t *testing.T) {
	t.Parallel()

	device, computeType := detectDevice("cuda")
	require.Equal(t, "cuda", device)
	require.Equal(t, "float16", computeType)

	device, computeType = detectDevice("CPU")
	require.Equal(t, "cpu", device)
	require.Equal(t, "float32", computeType)
}

func TestDetectDeviceAutoPairsDeviceWithPrecision(t *testing.T) {
	t.Parallel()

	device, computeType := detectDevice("")
	switch device {
	case "cuda":
		require.Equal(t, "float16", computeType)
	case "cpu":
		require.Equal(t, "float32", computeType)
	default:
		t.Fatalf("unexpected device %q", device)
	}
}
