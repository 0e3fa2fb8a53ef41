package main

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	// best effort: local development reads .env, production sets real env vars
	_ = godotenv.Load()

	var root = &cobra.Command{Use: "bulldozer"}

	root.AddCommand(serveCMD(), migrateCMD(), ingestCMD())
	_ = root.Execute()
}
