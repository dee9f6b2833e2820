package main

import "github.com/spf13/cobra"

var rootCmd = &cobra.Command{
	Use:   "mluva",
	Short: "Build and run Mluva projects",
	Long: `mluva compiles and runs projects written in the Mluva language:
a small statically-typed scripting language compiled to a stack-based
bytecode and executed by an embedded VM.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(initCmd, buildCmd, runCmd, uninitCmd)
}
