package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/MikulasBar/mluva-sub000/internal/build"
	"github.com/MikulasBar/mluva-sub000/internal/config"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Compile the project and its import closure, caching unchanged modules",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, _, err := runBuild()
		return err
	},
}

// colorReporter prints one line per module as the builder visits it,
// grounded on the original CLI's "Building the Mluva project..." /
// "Build completed!" console output.
type colorReporter struct{}

func (colorReporter) Started() {
	fmt.Println("Building the Mluva project...")
}

func (colorReporter) Compiling(name string) {
	color.Cyan("  compiling %s", name)
}

func (colorReporter) Cached(name string) {
	color.Yellow("  cached    %s", name)
}

func (colorReporter) Finished() {
	color.Green("Build completed!")
}

// runBuild loads mluva.yaml from the current directory and builds its
// root module's import closure. Shared by the build and run commands.
func runBuild() (*config.Config, *build.Result, error) {
	dir, err := os.Getwd()
	if err != nil {
		return nil, nil, err
	}
	if !config.Exists(dir) {
		return nil, nil, fmt.Errorf("no %s found, run 'mluva init' first", config.FileName)
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, nil, err
	}
	res, err := build.New(dir, colorReporter{}).Build(cfg.RootModule)
	if err != nil {
		return nil, nil, err
	}
	return cfg, res, nil
}
