package main

import (
	"github.com/hammal/modred/parallel"
	"github.com/hammal/modred/pod"
	"github.com/hammal/modred/vectors"
	"github.com/spf13/cobra"
)

var (
	podSnaps       string
	podNumSnaps    int
	podModes       string
	podModeNums    []int
	podNumModes    int
	podEigVals     string
	podEigVecs     string
	podCorrelation string
	podProjCoeffs  string
)

var podCmd = &cobra.Command{
	Use:   "pod",
	Short: "Compute POD modes of stored snapshots",
	Long: `Compute the correlation matrix of the snapshots, its eigendecomposition and
the requested POD modes. Snapshots and modes are addressed by templates such
as snap_%03d.txt, filled in with the snapshot index and the mode number.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(runPOD)
	},
}

func init() {
	f := podCmd.Flags()
	f.StringVar(&podSnaps, "snaps", "", "snapshot template")
	f.IntVar(&podNumSnaps, "num-snaps", 0, "number of snapshots")
	f.StringVar(&podModes, "modes", "", "mode template, empty to skip the modes")
	f.IntSliceVar(&podModeNums, "mode-nums", nil, "mode numbers, defaults to the first --num-modes")
	f.IntVar(&podNumModes, "num-modes", 0, "number of leading modes, 0 for every mode kept")
	f.StringVar(&podEigVals, "eigvals", "", "eigenvalue output")
	f.StringVar(&podEigVecs, "eigvecs", "", "eigenvector output")
	f.StringVar(&podCorrelation, "correlation", "", "correlation matrix output")
	f.StringVar(&podProjCoeffs, "proj-coeffs", "", "projection coefficient output")
	_ = podCmd.MarkFlagRequired("snaps")
	_ = podCmd.MarkFlagRequired("num-snaps")
}

func runPOD(r rank) error {
	p, err := pod.New(pod.Config{
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
	snaps := r.store.handles(podSnaps, vectors.Range(0, podNumSnaps))
	if _, err := p.ComputeDecomp(snaps); err != nil {
		return err
	}
	r.logger.Info("computed POD decomposition", "snaps", podNumSnaps, "modes", p.NumModes())

	if podCorrelation != "" {
		if err := p.PutCorrelationMatrix(podCorrelation); err != nil {
			return err
		}
	}
	if p.NumModes() == 0 {
		r.logger.Warn("every eigenvalue is below the tolerance, no modes to write")
		return nil
	}
	if podEigVals != "" && podEigVecs != "" {
		if err := p.PutDecomp(podEigVals, podEigVecs); err != nil {
			return err
		}
	}
	if podProjCoeffs != "" {
		coeffs, err := p.ComputeProjCoeffs()
		if err != nil {
			return err
		}
		if err := parallel.CallFromRankZero(r.space.Comm(), func() error {
			return r.store.save(coeffs, podProjCoeffs)
		}); err != nil {
			return err
		}
	}
	if podModes == "" {
		return nil
	}
	count := podNumModes
	if count == 0 {
		count = p.NumModes()
	}
	nums := modeNumbers(podModeNums, cfg.IndexFrom, count)
	if err := p.ComputeModes(nums, r.store.handles(podModes, nums), snaps); err != nil {
		return err
	}
	r.logger.Info("wrote POD modes", "modes", len(nums))
	return nil
}
