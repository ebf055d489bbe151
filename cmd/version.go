package main

import (
	"fmt"

	"github.com/cwbudde/boxblur/internal/blur"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("boxblur version %s (backend %s, auto kernel %s)\n",
			version, blur.ActiveBackend, blur.KernelAuto.Resolve())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
