package main

import (
	"github.com/entlink/entlink/internal/server"
	"github.com/entlink/entlink/internal/util"
	"github.com/entlink/entlink/pkg/logger"
	"github.com/entlink/entlink/pkg/logger/console"
)

func main() {
	util.LoadEnv()

	debug := util.GetEnvBool("DEBUG", false)

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	server.Init()
}
