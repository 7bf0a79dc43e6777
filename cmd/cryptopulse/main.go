package main

import (
	"cryptopulse/cmd/cmd"
	"cryptopulse/internal/logger"
)

func main() {
	logger.Init()
	cmd.Execute()
}
