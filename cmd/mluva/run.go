package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MikulasBar/mluva-sub000/internal/module"
	"github.com/MikulasBar/mluva-sub000/internal/vm"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Build the project and execute its root module's main()",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, res, err := runBuild()
		if err != nil {
			return err
		}

		modules := make([]*module.Module, len(res.Order))
		for _, name := range res.Order {
			cm := res.Modules[name]
			modules[cm.ModuleID] = cm.Module
		}

		fmt.Println("Running the Mluva project...")
		machine := vm.New(modules, os.Stdout)
		result, err := machine.Execute(res.EntryModID)
		if err != nil {
			return fmt.Errorf("failed to execute project: %w", err)
		}

		fmt.Printf("Execution result: %s\n", result.String())
		return nil
	},
}
