package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/iliyamo/turnos-booking/internal/cli"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("env: failed to load .env: %v", err)
	}
	if err := cli.NewRoot().ExecuteContext(context.Background()); err != nil {
		log.Fatal(err)
	}
}
