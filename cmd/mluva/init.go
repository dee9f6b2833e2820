package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/MikulasBar/mluva-sub000/internal/build"
	"github.com/MikulasBar/mluva-sub000/internal/config"
)

// defaultRootModuleContent is written to the scaffolded root module file.
const defaultRootModuleContent = `# This is the root module of your Mluva project.
# You can change the name of this file in the 'mluva.yaml' configuration file.
# Happy coding!

Float main() {
    return 0.0
}
`

var initCmd = &cobra.Command{
	Use:   "init [project-name]",
	Short: "Scaffold a new Mluva project in the current directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := os.Getwd()
		if err != nil {
			return err
		}

		name := filepath.Base(dir)
		if len(args) == 1 {
			name = args[0]
		}

		if err := checkNotInitialized(dir); err != nil {
			return err
		}

		cfg := config.New(name)
		if err := cfg.Save(dir); err != nil {
			return fmt.Errorf("writing %s: %w", config.FileName, err)
		}

		rootPath := filepath.Join(dir, cfg.RootModule+build.SourceExt)
		if _, err := os.Stat(rootPath); err == nil {
			return fmt.Errorf("root module file %q already exists", rootPath)
		}
		if err := os.WriteFile(rootPath, []byte(defaultRootModuleContent), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", rootPath, err)
		}

		color.Green("Initialized new Mluva project:")
		fmt.Printf("- Created configuration file %q\n", filepath.Join(dir, config.FileName))
		fmt.Printf("- Created root module file %q\n", rootPath)
		return nil
	},
}

func checkNotInitialized(dir string) error {
	if config.Exists(dir) {
		return fmt.Errorf("configuration file %q already exists, aborting init", filepath.Join(dir, config.FileName))
	}
	if _, err := os.Stat(filepath.Join(dir, build.CacheDirName)); err == nil {
		return fmt.Errorf("cache directory %q already exists, aborting init", filepath.Join(dir, build.CacheDirName))
	}
	return nil
}
