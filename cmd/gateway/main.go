package main

import (
	"os"

	"github.com/ZentaChain/zentalk-gateway/cmd/gateway/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
