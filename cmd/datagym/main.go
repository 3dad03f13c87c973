// Package main is the datagym command-line tool.
package main

import (
	"os"

	"github.com/ashureev/datagym/internal/cli"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
