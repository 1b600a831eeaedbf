package main

import (
	"errors"
	"fmt"

	"github.com/hammal/modred"
	"github.com/hammal/modred/ode"
	"github.com/hammal/modred/parallel"
	"github.com/hammal/modred/ssm"
	"github.com/hammal/modred/vectors"
	"github.com/hammal/modred/vectorspace"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"
)

var (
	advanceA        string
	advanceModes    string
	advanceNumModes int
	advanceOut      string
	advanceDt       float64
	advanceSteps    int
	advanceMethod   string
	advanceTol      float64
)

var advanceCmd = &cobra.Command{
	Use:   "advance",
	Short: "Advance stored modes in time under a continuous system",
	Long: `Integrate x' = A x over --dt starting from every stored mode and write
the results, the input of rom --advanced with the same --dt. The method is
one of rk4, euler and fehlberg45 with --steps fixed steps, adaptive for an
adaptive Runge-Kutta-Fehlberg integration with local error below --tol, or
exact for e^(A dt) x.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if advanceDt <= 0 {
			return errors.New("--dt must be positive")
		}
		if _, err := advanceFunc(&ssm.LinearStateSpaceModel{}); err != nil {
			return err
		}
		return run(runAdvance)
	},
}

func init() {
	f := advanceCmd.Flags()
	f.StringVar(&advanceA, "A", "", "continuous system matrix A")
	f.StringVar(&advanceModes, "modes", "", "template of the modes to advance")
	f.IntVar(&advanceNumModes, "num-modes", 0, "number of modes")
	f.StringVar(&advanceOut, "advanced", "", "template of the advanced modes")
	f.Float64Var(&advanceDt, "dt", 0, "time to advance")
	f.IntVar(&advanceSteps, "steps", 10, "integration steps of the fixed step methods")
	f.StringVar(&advanceMethod, "method", "rk4", "rk4, euler, fehlberg45, adaptive or exact")
	f.Float64Var(&advanceTol, "tol", 1e-10, "local error tolerance of the adaptive method")
	for _, name := range []string{"A", "modes", "num-modes", "advanced"} {
		_ = advanceCmd.MarkFlagRequired(name)
	}
}

// advanceFunc returns the map that advances states under model with the
// configured method.
func advanceFunc(model *ssm.LinearStateSpaceModel) (vectorspace.MapFunc, error) {
	fixed := func(rk *ode.RungeKutta) vectorspace.MapFunc {
		return func(x mat.Matrix) (*mat.Dense, error) {
			return model.Advance(rk, x, advanceDt, advanceSteps)
		}
	}
	switch advanceMethod {
	case "rk4":
		return fixed(ode.NewRK4()), nil
	case "euler":
		return fixed(ode.NewEulerMethod()), nil
	case "fehlberg45":
		return fixed(ode.NewFehlberg45()), nil
	case "adaptive":
		return func(x mat.Matrix) (*mat.Dense, error) {
			return model.AdvanceAdaptive(x, advanceDt, advanceTol)
		}, nil
	case "exact":
		return func(x mat.Matrix) (*mat.Dense, error) {
			return model.AdvanceExact(x, advanceDt)
		}, nil
	}
	return nil, fmt.Errorf("unknown method %q", advanceMethod)
}

func runAdvance(r rank) error {
	A, err := parallel.CallAndBroadcast(r.space.Comm(), func() (*mat.Dense, error) {
		return r.store.load(advanceA)
	})
	if err != nil {
		return fmt.Errorf("loading A: %w", err)
	}
	n, m := A.Dims()
	if n != m {
		return modred.ShapeErrorf("A is %dx%d", n, m)
	}
	fn, err := advanceFunc(&ssm.LinearStateSpaceModel{A: A})
	if err != nil {
		return err
	}

	nums := vectors.Range(cfg.IndexFrom, advanceNumModes)
	if err := r.space.MapVectors(r.store.handles(advanceOut, nums), r.store.handles(advanceModes, nums), fn); err != nil {
		return err
	}
	r.logger.Info("advanced modes", "modes", advanceNumModes, "dt", advanceDt, "method", advanceMethod)
	return nil
}
