package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tclemos/store-bench/cmd"
)

func main() {
	// Default to pretty console logger; `run --log-format json` switches later
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Credentials for server backends come from the environment; a
	// local .env is honored when present
	_ = godotenv.Load()

	cmd.Execute()
}
