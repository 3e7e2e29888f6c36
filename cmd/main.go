package main

import (
	"os"

	"github.com/rs/zerolog/log"

	"quizroom-service/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		log.Error().Err(err).Msg("quizroom exited")
		os.Exit(1)
	}
}
