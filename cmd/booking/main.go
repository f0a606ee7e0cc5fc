package main

import (
	"fmt"
	"os"
	_ "time/tzdata"

	"booking-system/internal/app"
)

func main() {
	ctx, stop := app.Context()
	defer stop()

	if err := app.RunBooking(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "booking service:", err)
		os.Exit(1)
	}
}
