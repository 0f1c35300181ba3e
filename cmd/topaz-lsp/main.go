// topaz-lsp - language server for topaz scripts, speaking LSP over stdio
package main

import (
	"fmt"
	"os"

	"github.com/topaz-lang/topaz/config"
	"github.com/topaz-lang/topaz/server"

	_ "github.com/tliron/commonlog/simple"
)

func main() {
	cfg, err := config.FindAndLoad(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	cfg.ConfigureLogging()

	if err := server.NewLSP().Run(); err != nil {
		fmt.Fprintf(os.Stderr, "LSP error: %v\n", err)
		os.Exit(1)
	}
}
