package main

import (
	"os"

	"github.com/turtacn/appkit/internal/cli"
	"github.com/turtacn/appkit/pkg/aspect"
	"github.com/turtacn/appkit/pkg/logger"
)

func main() {
	// Aspects registered here are visible to the launched application.
	aspect.CreateGlobal()
	code := run()
	aspect.DestroyGlobal()
	os.Exit(code)
}

func run() (code int) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Error("Panic recovered", "panic", r)
			code = 1
		}
	}()
	return cli.Execute()
}

// Personal.AI order the ending
