package main

import (
	"log"

	"github.com/joho/godotenv"

	"github.com/soradev/hearth/internal/cli"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	cli.Execute()
}
