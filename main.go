package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	cl "github.com/TechTraverse/stac-fastapi-pgstac/client"
	sr "github.com/TechTraverse/stac-fastapi-pgstac/server"
)

var rootCmd = &cobra.Command{
	Use:   "stac",
	Short: "STAC catalog api server and client",
}

func init() {
	rootCmd.AddCommand(sr.CMD)
	cl.RegisterCommands(rootCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
