package imageops

import (
	"log/slog"
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// Backend identifies which fast-path kernel a convolution call will prefer.
// Mirrors the teacher's runtime-dispatched SSD kernel (ActiveSSDBackend):
// CPU features are probed once at init, and the flag is process-wide (not
// per analyzer) advisory state only — it must never change the numeric result, only which
// code path computes it (§5: "a SIMD-enable flag... advisory, must not
// participate in correctness").
type Backend int

const (
	BackendScalar Backend = iota
	BackendAVX2
	BackendNEON
)

func (b Backend) String() string {
	switch b {
	case BackendAVX2:
		return "AVX2"
	case BackendNEON:
		return "NEON"
	default:
		return "scalar"
	}
}

// detectedBackend is the backend the current CPU could in principle run.
var detectedBackend Backend

// simdEnabled is the process-wide advisory toggle from DisableSIMD/EnableSIMD.
// It gates which backend NativeBackend() reports; it never changes a
// computed value, so flipping it must not change feature counts or ordering.
var simdEnabled atomic.Bool

func init() {
	simdEnabled.Store(true)
	switch {
	case cpu.X86.HasAVX2:
		detectedBackend = BackendAVX2
	case cpu.ARM64.HasASIMD:
		detectedBackend = BackendNEON
	default:
		detectedBackend = BackendScalar
	}
	slog.Debug("imageops: SIMD capability probed", "backend", detectedBackend.String())
}

// NativeBackend reports the backend that would be used for the fast path,
// taking the advisory SIMD toggle into account.
func NativeBackend() Backend {
	if !simdEnabled.Load() {
		return BackendScalar
	}
	return detectedBackend
}

// EnableSIMD and DisableSIMD flip the process-wide advisory toggle. Neither
// is required for correctness: every kernel in this package has a scalar
// implementation that is the source of truth, and (as with the teacher's own
// NEON kernel, which delegates to its scalar fallback until a dedicated
// assembly routine lands) the AVX2/NEON dispatch points currently compute the
// identical scalar result, so toggling this flag cannot alter output, only
// which label NativeBackend reports.
func EnableSIMD()  { simdEnabled.Store(true) }
func DisableSIMD() { simdEnabled.Store(false) }
