package cli

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"

	"github.com/J-Dark-PhD/neutron-damage-trap-creation/fitter"
	"github.com/J-Dark-PhD/neutron-damage-trap-creation/model"
)

var fitCmd = &cobra.Command{
	Use:   "fit",
	Short: "Fit rate parameters to experimental data with the Nelder-Mead simplex",
	Long: `fit minimises the weighted mean absolute error between the model and a
reference dataset. Every evaluation is kept in a checkpoint ([fit] checkpoint
in the configuration), so an interrupted fit restarts without repeating
simulations.`,
}

var fitAnnealingCmd = &cobra.Command{
	Use:   "annealing",
	Short: "Fit the annealing prefactor and energy (A0, EA) to isochronal annealing data",
	RunE: func(cmd *cobra.Command, args []string) error {
		ref, err := reference(cmd, func() (model.ReferenceDataset, error) { return fitter.EtienneTrap2(), nil })
		if err != nil {
			return err
		}
		beta, _ := cmd.Flags().GetBool("beta-variant")
		return runFit(cmd, fitter.AnnealingProblem(ref, beta, cfg.ODEOptions()))
	},
}

var fitDamagingCmd = &cobra.Command{
	Use:   "damaging",
	Short: "Fit the trap creation factor and saturation density (K, nMax) to damage data",
	RunE: func(cmd *cobra.Command, args []string) error {
		i, _ := cmd.Flags().GetInt("selinger-trap")
		ref, err := reference(cmd, func() (model.ReferenceDataset, error) { return fitter.SelingerTrap(i) })
		if err != nil {
			return err
		}
		return runFit(cmd, fitter.DamagingProblem(ref, cfg.ODEOptions()))
	},
}

func reference(cmd *cobra.Command, builtin func() (model.ReferenceDataset, error)) (model.ReferenceDataset, error) {
	if path, _ := cmd.Flags().GetString("reference"); path != "" {
		return fitter.LoadReference(path)
	}
	return builtin()
}

func parseGuess(raw []string) ([]float64, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	guess := make([]float64, len(raw))
	for i, s := range raw {
		v, err := cast.ToFloat64E(s)
		if err != nil {
			return nil, fmt.Errorf("guess %d: %w", i, err)
		}
		guess[i] = v
	}
	return guess, nil
}

func runFit(cmd *cobra.Command, p *fitter.Problem) error {
	ctx := cmd.Context()
	rawGuess, _ := cmd.Flags().GetStringSlice("guess")
	guess, err := parseGuess(rawGuess)
	if err != nil {
		return err
	}

	cp, closeCheckpoint, err := cfg.Checkpoint(ctx, p.Name)
	if err != nil {
		return err
	}
	defer closeCheckpoint()
	if path, _ := cmd.Flags().GetString("from-csv"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		n, err := fitter.LoadCheckpointCSV(ctx, f, cp)
		f.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		log.WithFields(log.Fields{"path": path, "entries": n}).Info("checkpoint preloaded")
	}

	f := fitter.New(p, cp)
	f.FAtol, f.XAtol = cfg.Fit.FAtol, cfg.Fit.XAtol
	f.MaxEvaluations = cfg.Fit.MaxEvaluations
	f.Logger = log.WithField("cmd", cmd.CommandPath())
	res, err := f.Fit(ctx, guess)
	if err != nil && res == nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "problem\t%s\n", p.Name)
	fmt.Fprintf(out, "reference\t%s\n", p.Reference.Name)
	fmt.Fprintf(out, "status\t%v\n", res.Status)
	fmt.Fprintf(out, "x\t%v\n", res.X)
	fmt.Fprintf(out, "params\t%v\n", res.Params)
	fmt.Fprintf(out, "error\t%g\n", res.Err)
	fmt.Fprintf(out, "evaluations\t%d (simulations %d, checkpoint hits %d)\n", res.Evaluations, res.Simulations, res.CacheHits)

	if path, _ := cmd.Flags().GetString("dump"); path != "" {
		if err := dumpCheckpoint(path, cp); err != nil {
			return err
		}
	}
	return err
}

func dumpCheckpoint(path string, cp fitter.Checkpoint) error {
	var entries []fitter.Entry
	switch c := cp.(type) {
	case *fitter.MemoryCheckpoint:
		entries = c.Entries()
	case *fitter.SQLiteCheckpoint:
		var err error
		if entries, err = c.Entries(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("cannot list %T", cp)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fitter.WriteCheckpointCSV(f, entries); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
