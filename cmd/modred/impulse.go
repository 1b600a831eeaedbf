package main

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/hammal/modred/ssm"
	"github.com/hammal/modred/vectors"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"
)

var (
	impulseStates  int
	impulseInputs  int
	impulseOutputs int
	impulseSteps   int
	impulseSeed    uint64
	impulseDt      float64
	impulseSystem  string
	impulseGain    float64
	impulseDirect  string
	impulseAdjoint string
	impulseB       string
	impulseC       string
	impulseA       string
	impulseCMat    string
	impulseMarkov  string
	impulseWc      string
	impulseWo      string
)

const (
	systemRandom = "random"
	systemChain  = "chain"
)

var impulseCmd = &cobra.Command{
	Use:   "impulse",
	Short: "Write the impulse responses of a test system",
	Long: `Generate a stable test system and write its direct and adjoint impulse
responses as snapshots for the bpod command, in the time step major order
bpod expects. The adjoint uses the configured inner product weights.

Without --dt the system is a random discrete time system sampled at every
step. With --dt it is a continuous time system sampled every dt, either
random or an integrator chain (--system chain), and --A holds its
continuous system matrix, the input of the advance command.

The input vectors are the columns of B. The output vectors are the columns
of W^-1 C^T, the input matrix of the adjoint, so that their inner products
with a state give its outputs under the weighted inner product.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if impulseDt < 0 {
			return errors.New("--dt must not be negative")
		}
		if impulseDt == 0 && (impulseSystem != systemRandom || impulseWc != "" || impulseWo != "") {
			return errors.New("--system chain, --wc and --wo need a continuous system, set --dt")
		}
		return runImpulse()
	},
}

func init() {
	f := impulseCmd.Flags()
	f.IntVar(&impulseStates, "states", 10, "number of states")
	f.IntVar(&impulseInputs, "inputs", 1, "number of inputs")
	f.IntVar(&impulseOutputs, "outputs", 1, "number of outputs")
	f.IntVar(&impulseSteps, "steps", 20, "number of time steps")
	f.Uint64Var(&impulseSeed, "seed", 1, "random seed")
	f.Float64Var(&impulseDt, "dt", 0, "sample time of a continuous system, 0 for a discrete system")
	f.StringVar(&impulseSystem, "system", systemRandom, "continuous system: random or chain")
	f.Float64Var(&impulseGain, "gain", 1, "stage gain of the integrator chain")
	f.StringVar(&impulseDirect, "direct", "direct_%03d.txt", "direct snapshot template")
	f.StringVar(&impulseAdjoint, "adjoint", "adjoint_%03d.txt", "adjoint snapshot template")
	f.StringVar(&impulseB, "input-vecs", "input_%03d.txt", "template for the columns of B")
	f.StringVar(&impulseC, "output-vecs", "output_%03d.txt", "template for the columns of W^-1 C^T")
	f.StringVar(&impulseA, "A", "", "output for the system matrix A, empty to skip")
	f.StringVar(&impulseCMat, "C", "", "output for the output matrix C, empty to skip")
	f.StringVar(&impulseMarkov, "markov", "", "output for the outputs C x of the direct snapshots, empty to skip")
	f.StringVar(&impulseWc, "wc", "", "output for the controllability gramian over the sampled horizon")
	f.StringVar(&impulseWo, "wo", "", "output for the observability gramian over the sampled horizon")
}

// newSystem builds the test system the flags describe.
func newSystem() (ssm.System, error) {
	rng := rand.New(rand.NewPCG(impulseSeed, impulseSeed))
	if impulseDt == 0 {
		return ssm.NewRandomStableSystem(impulseStates, impulseInputs, impulseOutputs, rng)
	}
	var model *ssm.LinearStateSpaceModel
	switch impulseSystem {
	case systemRandom:
		var err error
		if model, err = ssm.NewRandomStableModel(impulseStates, impulseInputs, impulseOutputs, rng); err != nil {
			return nil, err
		}
	case systemChain:
		if impulseInputs != 1 || impulseOutputs != 1 {
			return nil, errors.New("an integrator chain has one input and one output")
		}
		model = ssm.NewIntegratorChain(impulseStates, impulseGain)
	default:
		return nil, fmt.Errorf("unknown system %q", impulseSystem)
	}
	return model.Sample(impulseDt)
}

func runImpulse() error {
	store, err := openStorage(cfg.Storage)
	if err != nil {
		return err
	}
	defer store.close()
	weights, err := store.weights(cfg.InnerProduct)
	if err != nil {
		return err
	}

	sys, err := newSystem()
	if err != nil {
		return err
	}
	direct, adjoint, err := sys.Snapshots(impulseSteps, weights)
	if err != nil {
		return err
	}
	A, B, C := sys.Matrices()
	outputs, err := ssm.OutputVectors(C, weights)
	if err != nil {
		return err
	}
	for _, out := range []struct {
		template string
		m        mat.Matrix
	}{
		{impulseDirect, direct},
		{impulseAdjoint, adjoint},
		{impulseB, B},
		{impulseC, outputs},
	} {
		if err := putColumns(store, out.template, out.m); err != nil {
			return err
		}
	}

	type output struct {
		path string
		m    mat.Matrix
	}
	mats := []output{{impulseA, A}, {impulseCMat, C}, {impulseMarkov, sys.Observe(direct)}}
	if impulseWc != "" || impulseWo != "" {
		// Only a sampled continuous model gets here.
		sampled := sys.(ssm.SampledModel)
		wc, wo, err := sampled.Gramians(float64(impulseSteps-1) * sampled.Dt)
		if err != nil {
			return err
		}
		mats = append(mats, output{impulseWc, wc}, output{impulseWo, wo})
	}
	for _, out := range mats {
		if out.path == "" {
			continue
		}
		if err := store.save(out.m, out.path); err != nil {
			return err
		}
	}
	logger.Info("wrote impulse responses", "states", sys.StateSpaceOrder(), "inputs", sys.InputSpaceOrder(),
		"outputs", sys.OutputSpaceOrder(), "steps", impulseSteps, "dt", impulseDt)
	return nil
}

func putColumns(store *storage, template string, m mat.Matrix) error {
	r, c := m.Dims()
	for i, h := range store.handles(template, vectors.Range(0, c)) {
		if err := h.Put(mat.NewVecDense(r, mat.Col(nil, i, m))); err != nil {
			return fmt.Errorf("column %d: %w", i, err)
		}
	}
	return nil
}
