// inofs is a small tool for creating and inspecting indexfs volumes and for
// moving file contents in and out of them by inode number.
package main

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var verbose bool

func main() {
	rootCmd := &cobra.Command{
		Use:   "inofs",
		Short: "create and inspect indexfs volumes",
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if verbose {
				log.SetLevel(log.DebugLevel)
			}
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(mkfsCmd())
	rootCmd.AddCommand(infoCmd())
	rootCmd.AddCommand(putCmd())
	rootCmd.AddCommand(catCmd())
	rootCmd.AddCommand(rmCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
