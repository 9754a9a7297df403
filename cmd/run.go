package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/adalundhe/tempest/core/config"
	"github.com/adalundhe/tempest/core/smc"
)

var (
	runConfigPath string
	runParticles  int
	runSeed       uint64
	runQuiet      bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the sampler against the configured Gaussian demo target",
	RunE:  runSampler,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runConfigPath, "config", "", "path to a YAML configuration file")
	runCmd.Flags().IntVar(&runParticles, "particles", 0, "override the configured particle count")
	runCmd.Flags().Uint64Var(&runSeed, "seed", 0, "override the configured RNG seed")
	runCmd.Flags().BoolVar(&runQuiet, "quiet", false, "suppress per-stage progress logging")
}

func runSampler(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(runConfigPath)
	if err != nil {
		return err
	}
	if runParticles > 0 {
		cfg.Sampler.NParticles = runParticles
	}
	if runSeed != 0 {
		cfg.Sampler.Seed = runSeed
	}

	level := slog.LevelInfo
	if runQuiet {
		level = slog.LevelWarn
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	target, err := cfg.Model.Build()
	if err != nil {
		return err
	}
	sampler, err := smc.New(target, cfg.Sampler.Engine(), logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cloud, diag, err := sampler.Run(ctx)
	if err != nil {
		return err
	}

	printSummary(cmd, cloud, diag, target.FreeIndices())
	return nil
}

func printSummary(cmd *cobra.Command, cloud *smc.Cloud, diag smc.Diagnostics, free []int) {
	mean := cloud.WeightedMean(free)
	cov := cloud.WeightedCovariance(free)

	cmd.Printf("run %s: %d stages, log marginal data density %.4f (%.2fs)\n",
		diag.RunID, diag.Stages, diag.LogMDD, diag.Elapsed.Seconds())
	cmd.Println("posterior moments:")
	for j, idx := range free {
		cmd.Printf("  theta[%d]  mean %+.4f  sd %.4f\n", idx, mean[j], math.Sqrt(cov.At(j, j)))
	}
	cmd.Println("realized schedule:")
	for i, phi := range diag.Schedule[1:] {
		marker := ""
		if diag.Resampled[i] {
			marker = "  resampled"
		}
		cmd.Println(fmt.Sprintf("  stage %2d  phi %.6f  ess %8.1f  accept %.3f%s",
			i+1, phi, diag.ESS[i], diag.AcceptRates[i], marker))
	}
}
