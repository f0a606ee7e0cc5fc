package main

import (
	"fmt"
	"os"

	"booking-system/internal/app"
)

func main() {
	ctx, stop := app.Context()
	defer stop()

	if err := app.RunUser(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "user service:", err)
		os.Exit(1)
	}
}
