package main

import (
	"errors"

	"github.com/hammal/modred/rom"
	"github.com/hammal/modred/vectors"
	"github.com/spf13/cobra"
)

var (
	romDirectModes  string
	romAdjointModes string
	romNumModes     int
	romDerivs       string
	romAdvanced     string
	romDt           float64
	romInputs       string
	romNumInputs    int
	romOutputs      string
	romNumOutputs   int
	romA            string
	romB            string
	romC            string
)

var romCmd = &cobra.Command{
	Use:   "rom",
	Short: "Form a reduced order model from direct and adjoint modes",
	Long: `Project a system onto stored direct and adjoint modes. The dynamics are
given either as the time derivatives of the direct modes (--derivs) or as
the direct modes advanced by --dt (--advanced). With both, the derivatives
are approximated by finite differences and written to --derivs first.

The inputs are the columns of B. The outputs are the columns of W^-1 C^T
for inner product weights W, the rows of C without weights, so that the
reduced C is C times the direct modes. The impulse command writes both.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if romDerivs == "" && romAdvanced == "" {
			return errors.New("one of --derivs and --advanced is required")
		}
		if romAdvanced != "" && romDt <= 0 {
			return errors.New("--advanced needs a positive --dt")
		}
		return run(runROM)
	},
}

func init() {
	f := romCmd.Flags()
	f.StringVar(&romDirectModes, "direct-modes", "", "direct mode template")
	f.StringVar(&romAdjointModes, "adjoint-modes", "", "adjoint mode template")
	f.IntVar(&romNumModes, "num-modes", 0, "number of modes in the model")
	f.StringVar(&romDerivs, "derivs", "", "template of the direct mode derivatives")
	f.StringVar(&romAdvanced, "advanced", "", "template of the advanced direct modes")
	f.Float64Var(&romDt, "dt", 0, "time step of the advanced modes")
	f.StringVar(&romInputs, "inputs", "", "input vector template")
	f.IntVar(&romNumInputs, "num-inputs", 1, "number of inputs")
	f.StringVar(&romOutputs, "outputs", "", "output vector template")
	f.IntVar(&romNumOutputs, "num-outputs", 1, "number of outputs")
	f.StringVar(&romA, "A", "A.txt", "reduced A output")
	f.StringVar(&romB, "B", "B.txt", "reduced B output")
	f.StringVar(&romC, "C", "C.txt", "reduced C output")
	for _, name := range []string{"direct-modes", "adjoint-modes", "num-modes", "inputs", "outputs"} {
		_ = romCmd.MarkFlagRequired(name)
	}
}

func runROM(r rank) error {
	former, err := rom.New(rom.Config{Space: r.space, Save: r.store.save, Logger: r.logger})
	if err != nil {
		return err
	}
	nums := vectors.Range(cfg.IndexFrom, romNumModes)
	direct := r.store.handles(romDirectModes, nums)
	adjoint := r.store.handles(romAdjointModes, nums)

	dyn := rom.Dynamics{Modes: direct}
	switch {
	case romAdvanced != "" && romDerivs != "":
		advanced := r.store.handles(romAdvanced, nums)
		derivs := r.store.handles(romDerivs, nums)
		if err := former.ComputeDerivatives(direct, advanced, derivs, romDt); err != nil {
			return err
		}
		dyn.Derivs = derivs
	case romAdvanced != "":
		dyn.Derivs = r.store.handles(romAdvanced, nums)
		dyn.Dt = romDt
	default:
		dyn.Derivs = r.store.handles(romDerivs, nums)
	}

	inputs := r.store.handles(romInputs, vectors.Range(0, romNumInputs))
	outputs := r.store.handles(romOutputs, vectors.Range(0, romNumOutputs))
	model, err := former.Form(adjoint, direct, dyn, inputs, outputs, romNumModes)
	if err != nil {
		return err
	}
	if err := former.Put(model, romA, romB, romC); err != nil {
		return err
	}
	r.logger.Info("wrote reduced model", "modes", romNumModes, "inputs", romNumInputs, "outputs", romNumOutputs)
	return nil
}
