package main

import (
	"fmt"
	"os"

	"github.com/adeolu/wallet-multicurrency/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "wallet-api: %v\n", err)
		os.Exit(1)
	}
}
