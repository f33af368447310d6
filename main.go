package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"photocatalog/cmd"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("INFO: No .env file found, using existing environment variables.")
	}

	if err := cmd.Execute(); err != nil {
		log.Printf("ERROR: %v", err)
		os.Exit(1)
	}
}
