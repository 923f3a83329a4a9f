package main

import (
	"os"

	apicmder "github.com/xeleb-ai/xeleb/cmd/xeleb/serve/api"
)

func main() {
	cmd := apicmder.NewAPICmd()
	cmd.Use = "xelebapi"
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .xeleb/ directory holding config.toml")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
