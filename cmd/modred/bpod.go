package main

import (
	"github.com/hammal/modred/bpod"
	"github.com/hammal/modred/parallel"
	"github.com/hammal/modred/vectors"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"
)

var (
	bpodDirect       string
	bpodNumDirect    int
	bpodAdjoint      string
	bpodNumAdjoint   int
	bpodNumInputs    int
	bpodNumOutputs   int
	bpodDirectModes  string
	bpodAdjointModes string
	bpodModeNums     []int
	bpodNumModes     int
	bpodSingVals     string
	bpodLeft         string
	bpodRight        string
	bpodHankel       string
	bpodProjCoeffs   string
	bpodAdjProj      string
)

var bpodCmd = &cobra.Command{
	Use:   "bpod",
	Short: "Compute balanced POD modes of stored impulse responses",
	Long: `Compute the Hankel matrix of the adjoint and direct impulse responses, its
SVD and the requested direct and adjoint modes.

Direct snapshots are ordered time step major: the numInputs responses of the
first step, then those of the second step and so on. Adjoint snapshots are
ordered the same way with numOutputs responses per step.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(runBPOD)
	},
}

func init() {
	f := bpodCmd.Flags()
	f.StringVar(&bpodDirect, "direct", "", "direct snapshot template")
	f.IntVar(&bpodNumDirect, "num-direct", 0, "number of direct snapshots")
	f.StringVar(&bpodAdjoint, "adjoint", "", "adjoint snapshot template")
	f.IntVar(&bpodNumAdjoint, "num-adjoint", 0, "number of adjoint snapshots")
	f.IntVar(&bpodNumInputs, "num-inputs", 1, "number of inputs")
	f.IntVar(&bpodNumOutputs, "num-outputs", 1, "number of outputs")
	f.StringVar(&bpodDirectModes, "direct-modes", "", "direct mode template, empty to skip")
	f.StringVar(&bpodAdjointModes, "adjoint-modes", "", "adjoint mode template, empty to skip")
	f.IntSliceVar(&bpodModeNums, "mode-nums", nil, "mode numbers, defaults to the first --num-modes")
	f.IntVar(&bpodNumModes, "num-modes", 0, "number of leading modes, 0 for every mode kept")
	f.StringVar(&bpodSingVals, "sing-vals", "", "singular value output")
	f.StringVar(&bpodLeft, "left", "", "left singular vector output")
	f.StringVar(&bpodRight, "right", "", "right singular vector output")
	f.StringVar(&bpodHankel, "hankel", "", "Hankel matrix output")
	f.StringVar(&bpodProjCoeffs, "proj-coeffs", "", "projection coefficient output")
	f.StringVar(&bpodAdjProj, "adjoint-proj-coeffs", "", "adjoint projection coefficient output")
	for _, name := range []string{"direct", "num-direct", "adjoint", "num-adjoint"} {
		_ = bpodCmd.MarkFlagRequired(name)
	}
}

func runBPOD(r rank) error {
	b, err := bpod.New(bpod.Config{
		Space:     r.space,
		Tolerance: &r.tol,
		IndexFrom: cfg.IndexFrom,
		Save:      r.store.save,
		Load:      r.store.load,
		Logger:    r.logger,
	})
	if err != nil {
		return err
	}
	direct := r.store.handles(bpodDirect, vectors.Range(0, bpodNumDirect))
	adjoint := r.store.handles(bpodAdjoint, vectors.Range(0, bpodNumAdjoint))
	if _, err := b.ComputeDecomp(direct, adjoint, bpodNumInputs, bpodNumOutputs); err != nil {
		return err
	}
	r.logger.Info("computed BPOD decomposition", "direct", bpodNumDirect, "adjoint", bpodNumAdjoint, "modes", b.NumModes())

	if bpodHankel != "" {
		if err := b.PutHankelMatrix(bpodHankel); err != nil {
			return err
		}
	}
	if b.NumModes() == 0 {
		r.logger.Warn("every singular value is below the tolerance, no modes to write")
		return nil
	}
	if bpodSingVals != "" && bpodLeft != "" && bpodRight != "" {
		if err := b.PutDecomp(bpodSingVals, bpodLeft, bpodRight); err != nil {
			return err
		}
	}
	for _, out := range []struct {
		path    string
		compute func() (*mat.Dense, error)
	}{
		{bpodProjCoeffs, b.ComputeProjCoeffs},
		{bpodAdjProj, b.ComputeAdjointProjCoeffs},
	} {
		if out.path == "" {
			continue
		}
		coeffs, err := out.compute()
		if err != nil {
			return err
		}
		if err := parallel.CallFromRankZero(r.space.Comm(), func() error {
			return r.store.save(coeffs, out.path)
		}); err != nil {
			return err
		}
	}

	count := bpodNumModes
	if count == 0 {
		count = b.NumModes()
	}
	nums := modeNumbers(bpodModeNums, cfg.IndexFrom, count)
	if bpodDirectModes != "" {
		if err := b.ComputeDirectModes(nums, r.store.handles(bpodDirectModes, nums), direct); err != nil {
			return err
		}
	}
	if bpodAdjointModes != "" {
		if err := b.ComputeAdjointModes(nums, r.store.handles(bpodAdjointModes, nums), adjoint); err != nil {
			return err
		}
	}
	r.logger.Info("wrote BPOD modes", "modes", len(nums))
	return nil
}
