package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MikulasBar/mluva-sub000/internal/build"
	"github.com/MikulasBar/mluva-sub000/internal/config"
)

var uninitCmd = &cobra.Command{
	Use:   "uninit",
	Short: "Remove the project's configuration and build cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := os.Getwd()
		if err != nil {
			return err
		}

		if !config.Exists(dir) {
			fmt.Println("Configuration file does not exist. Cannot uninitialize.")
			return nil
		}
		cfg, err := config.Load(dir)
		if err != nil {
			return err
		}

		fmt.Println("This will permanently delete all project configuration.")
		fmt.Printf("To confirm, type the project name %q: ", cfg.ProjectName)

		reader := bufio.NewReader(os.Stdin)
		input, err := reader.ReadString('\n')
		if err != nil {
			return err
		}
		if strings.TrimSpace(input) != cfg.ProjectName {
			fmt.Println("Project name mismatch. Operation cancelled.")
			return nil
		}

		cacheDir := filepath.Join(dir, build.CacheDirName)
		if _, err := os.Stat(cacheDir); err == nil {
			if err := os.RemoveAll(cacheDir); err != nil {
				return err
			}
		} else {
			fmt.Printf("Cache directory %q does not exist. Skipping removal.\n", cacheDir)
		}

		if err := os.Remove(filepath.Join(dir, config.FileName)); err != nil {
			return err
		}
		fmt.Println("Uninitialized Mluva project.")
		return nil
	},
}
