package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/pagecanvas/pagecanvas-go/internal/application/startup"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "pagecanvas",
	Short: "PageCanvas server",
	Long:  "PageCanvas is the backend for the PageCanvas visual page builder: page templates, data-source collections, live render previews, and change monitoring.",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := startup.Initialize(); err != nil {
			return err
		}
		log.Println("Application has shut down gracefully.")
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("pagecanvas", version)
	},
}

func main() {
	rootCmd.AddCommand(serveCmd, versionCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
