package server

import (
	"github.com/spf13/cobra"
)

var configPath string

var CMD = &cobra.Command{
	Use:   "server",
	Short: "start the catalog api server",
	Run: func(cmd *cobra.Command, args []string) {
		Main(configPath)
	},
}

func init() {
	CMD.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
}
