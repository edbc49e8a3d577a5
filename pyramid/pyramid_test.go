package pyramid

import (
	"errors"
	"math"
	"testing"

	"vlfeat-go/internal/imageops"
	"vlfeat-go/vlerr"
)

func zeroImage(w, h int) *imageops.Grid[float32] {
	return imageops.NewGrid[float32](w, h)
}

// TestSigma_ScaleLaw checks property (1): sigma(o, S) == 2*sigma(o, 0) for
// every octave and every S >= 1.
func TestSigma_ScaleLaw(t *testing.T) {
	for _, S := range []int{1, 2, 3, 5} {
		for o := -1; o <= 3; o++ {
			s0 := Sigma(1.6, o, 0, S)
			sS := Sigma(1.6, o, S, S)
			if math.Abs(sS-2*s0) > 1e-9 {
				t.Fatalf("S=%d o=%d: sigma(o,S)=%v want %v", S, o, sS, 2*s0)
			}
		}
	}
}

// TestScenarioA_PyramidScaleLaw mirrors §8 scenario A: a 256x256 all-zero
// image builds a pyramid whose levels are all zero and whose geometry
// matches the scale law, with 6 Gaussian levels per octave (S=3).
func TestScenarioA_PyramidScaleLaw(t *testing.T) {
	cfg := Config{Octaves: 4, LevelsPerOctave: 3, FirstOctave: 0, BaseSigma: 1.6, NominalSigma: 0.5}
	p, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := p.Process(zeroImage(256, 256)); err != nil {
		t.Fatalf("Process: %v", err)
	}

	octavesSeen := 0
	for {
		oct, err := p.Current()
		if err != nil {
			t.Fatalf("Current: %v", err)
		}
		if len(oct.Gaussian) != 6 {
			t.Fatalf("octave %d: got %d gaussian levels want 6", oct.Index, len(oct.Gaussian))
		}
		for _, lvl := range oct.Gaussian {
			for _, v := range lvl.Data {
				if v != 0 {
					t.Fatalf("octave %d: non-zero value %v in all-zero input", oct.Index, v)
				}
			}
		}
		octavesSeen++

		err = p.NextOctave()
		if errors.Is(err, vlerr.ErrTerminalOctave) {
			break
		}
		if err != nil {
			t.Fatalf("NextOctave: %v", err)
		}
	}

	if octavesSeen != 4 {
		t.Fatalf("got %d octaves, want 4", octavesSeen)
	}
}

func TestPyramid_NotConfiguredBeforeProcess(t *testing.T) {
	p, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Current(); !errors.Is(err, vlerr.ErrNotConfigured) {
		t.Fatalf("got %v, want ErrNotConfigured", err)
	}
}

func TestPyramid_TerminalOctaveOnTinyImage(t *testing.T) {
	cfg := DefaultConfig()
	p, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := p.Process(zeroImage(4, 4)); err != nil {
		t.Fatalf("Process: %v", err)
	}

	count := 0
	for i := 0; i < 100; i++ {
		if err := p.NextOctave(); err != nil {
			if errors.Is(err, vlerr.ErrTerminalOctave) {
				break
			}
			t.Fatalf("NextOctave: %v", err)
		}
		count++
	}
	if count > 10 {
		t.Fatalf("pyramid on a 4x4 image built %d extra octaves without terminating", count)
	}
}

func TestPyramid_InvalidConfig(t *testing.T) {
	cases := []Config{
		{LevelsPerOctave: 0, BaseSigma: 1.6},
		{LevelsPerOctave: 3, BaseSigma: 0},
		{LevelsPerOctave: 3, BaseSigma: 1.6, NominalSigma: -1},
	}
	for i, cfg := range cases {
		if _, err := New(cfg); !errors.Is(err, vlerr.ErrInvalidArgument) {
			t.Fatalf("case %d: got %v, want ErrInvalidArgument", i, err)
		}
	}
}
