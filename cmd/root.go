package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tempest",
	Short: "Tempest - an adaptive tempered SMC sampler",
	Long: `Tempest approximates posterior distributions by propagating a weighted
particle cloud through an adaptively chosen sequence of tempered
distributions bridging the prior and the posterior.`,
}

func Execute() error {
	return rootCmd.Execute()
}
