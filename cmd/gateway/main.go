package main

import (
	"fmt"
	"os"

	"booking-system/internal/app"
)

func main() {
	ctx, stop := app.Context()
	defer stop()

	if err := app.RunGateway(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "gateway:", err)
		os.Exit(1)
	}
}
