// Command promptree assembles a directory tree and selected file contents
// into a single LLM-ready document.
package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/promptree/promptree/internal/cli"
	"github.com/promptree/promptree/internal/utils"
)

func main() {
	loggerInstance, loggerError := utils.NewApplicationLogger()
	if loggerError != nil {
		panic(fmt.Errorf(utils.LoggerInitializationFailedMessageFormat, loggerError))
	}
	defer func() { _ = loggerInstance.Sync() }()

	if executionError := cli.Execute(); executionError != nil {
		loggerInstance.Fatal(utils.ApplicationExecutionFailedMessage, zap.Error(executionError))
	}
}
