package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/artefactual-labs/spaces/context"
	"github.com/artefactual-labs/spaces/models"
	"github.com/artefactual-labs/spaces/service"
)

// callback_service receives ingest completion callbacks from the
// remote archival storage service.
func main() {
	pathToConfigFile := parseCommandLine()
	config, err := models.LoadConfigFile(pathToConfigFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
	_context := context.NewContext(config)
	_context.MessageLog.Info("callback_service started")

	callbackService := service.NewCallbackService(_context)
	if err = callbackService.Serve(); err != nil {
		_context.MessageLog.Fatalf(err.Error())
	}
}

func parseCommandLine() (configFile string) {
	var pathToConfigFile string
	flag.StringVar(&pathToConfigFile, "config", "", "Path to config file")
	flag.Parse()
	if pathToConfigFile == "" {
		printUsage()
		os.Exit(1)
	}
	return pathToConfigFile
}

// Tell the user about the program.
func printUsage() {
	message := `
callback_service: HTTP endpoint for remote ingest callbacks.

The remote archival storage service POSTs finished ingest bodies to
/api/v2/file/<uuid>/callback. The matching package record is updated
in the package store, and any move worker waiting out that ingest
picks up the new status on its next reload. Credentials are checked
against the Callback section of the config file.

Usage: callback_service -config=<path to config file>
`
	fmt.Println(message)
}
