package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/artefactual-labs/spaces/context"
	"github.com/artefactual-labs/spaces/models"
	"github.com/artefactual-labs/spaces/workers"
)

// space_mover moves packages between storage spaces. It reads
// MoveRequests from NSQ and runs until killed.
func main() {
	pathToConfigFile := parseCommandLine()
	config, err := models.LoadConfigFile(pathToConfigFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
	_context := context.NewContext(config)
	_context.MessageLog.Info("Connecting to NSQLookupd at %s", _context.Config.NsqLookupd)
	_context.MessageLog.Info("NSQDHttpAddress is %s", _context.Config.NsqdHttpAddress)
	consumer, err := workers.CreateNsqConsumer(_context.Config, &_context.Config.MoveWorker)
	if err != nil {
		_context.MessageLog.Fatalf(err.Error())
	}
	_context.MessageLog.Info("space_mover started")

	worker := workers.NewMoveWorker(_context)
	consumer.AddHandler(worker)
	consumer.ConnectToNSQLookupd(_context.Config.NsqLookupd)

	// This blocks until the consumer stops, so our program does not exit.
	<-consumer.StopChan
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
space_mover: Moves packages between storage spaces.

Reads MoveRequest messages from the NSQ topic named in the MoveWorker
section of the config file. A to_storage request copies a package from
its space into the destination space's staging area; a from_storage
request copies a staged package to its final home, which for a
remote-archive space means staging it in the shared object store,
requesting a remote ingest, and waiting out the result.

Usage: space_mover -config=<path to config file>
`
	fmt.Println(message)
}
