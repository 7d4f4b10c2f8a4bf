package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/akamensky/argparse"
	"github.com/coreos/go-systemd/daemon"
	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/sonarlog/server"
)

func main() {
	parser := argparse.NewParser("sonard", "Depth sounder logging daemon")
	configFile := parser.String("c", "config", &argparse.Options{Help: "JSON config file. If it doesn't exist, defaults are used", Default: "sonard.json"})
	addr := parser.String("", "addr", &argparse.Options{Help: "HTTP listen address", Default: ":8080"})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	logger, err := logs.NewLog()
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	cfg, err := server.LoadConfig(*configFile)
	if errors.Is(err, os.ErrNotExist) {
		logger.Infof("Config file %v not found, using defaults", *configFile)
		cfg = server.DefaultConfig()
	} else if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}

	srv, err := server.NewServer(logger, cfg)
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
	srv.ListenForKillSignals()

	// Tell systemd that we're alive
	daemon.SdNotify(false, daemon.SdNotifyReady)

	if err := srv.ListenHTTP(*addr); err != nil {
		logger.Errorf("ListenHTTP returned: %v", err)
		srv.Shutdown()
	}
	if err := <-srv.ShutdownComplete; err != nil {
		logger.Warnf("Shutdown error: %v", err)
	}
	logger.Close()
}
