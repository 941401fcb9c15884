package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "tota-agent",
	Short:        "Spoken language tutor that takes turns with you in real time",
	SilenceUsage: true,
	Long: `tota-agent runs a spoken practice session with a language tutor persona.

It listens on the default microphone, decides when you finished speaking,
answers in the target language through the default speaker and stops
talking as soon as you interrupt it.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
