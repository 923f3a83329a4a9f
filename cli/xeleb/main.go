package main

import (
	"os"

	xelebcmder "github.com/xeleb-ai/xeleb/cmd/xeleb"
)

func main() {
	cmd := xelebcmder.NewXelebCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
