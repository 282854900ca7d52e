// simnode serves the HTTP surface of a simulated compute node: the
// /resources, /attestation and /health endpoints the discovery prober
// reads. It is a development fixture for exercising discovery against a
// local fleet without real hardware TEEs.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/jejunetwork/compute-registry/cmd/flags"
	"github.com/jejunetwork/compute-registry/httpserver"
	"github.com/jejunetwork/compute-registry/interfaces"
	"github.com/jejunetwork/compute-registry/prober"
)

var cliFlags = append([]cli.Flag{
	&cli.StringFlag{
		Name:  "listen-addr",
		Value: "127.0.0.1:8080",
		Usage: "address to listen on for node API",
	},
	&cli.StringFlag{
		Name:  "profile-file",
		Value: "",
		Usage: "YAML file with the advertised resource profile",
	},
	&cli.StringFlag{
		Name:  "measurement",
		Value: "",
		Usage: "hex-encoded 32-byte measurement to advertise (random if empty)",
	},
	&cli.StringFlag{
		Name:  "provider-kind",
		Value: "simulated",
		Usage: "advertised TEE kind: dstack, phala or simulated",
	},
	flags.LogServiceFlagFn("simnode"),
}, flags.CommonFlags...)

func main() {
	app := &cli.App{
		Name:   "simnode",
		Usage:  "Serve a simulated compute node's discovery endpoints",
		Flags:  cliFlags,
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// parseMeasurement validates a hex-encoded 32-byte measurement, generating
// a random one when empty.
func parseMeasurement(s string) (string, error) {
	if s == "" {
		raw := make([]byte, 32)
		if _, err := rand.Read(raw); err != nil {
			return "", err
		}
		return hex.EncodeToString(raw), nil
	}

	raw, err := hex.DecodeString(s)
	if err != nil {
		return "", fmt.Errorf("invalid measurement: %w", err)
	}
	if len(raw) != 32 {
		return "", fmt.Errorf("invalid measurement: got %d bytes, want 32", len(raw))
	}
	return s, nil
}

func run(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)

	profile := httpserver.NodeProfile{CPUCores: 8, MemoryGB: 32, StorageGB: 512}
	if profileFile := cCtx.String("profile-file"); profileFile != "" {
		f, err := os.Open(profileFile)
		if err != nil {
			logger.Error("Failed to open profile file", "err", err)
			return err
		}
		defer f.Close()

		profile, err = httpserver.LoadNodeProfile(f)
		if err != nil {
			logger.Error("Failed to parse profile file", "err", err)
			return err
		}
	}

	kind, err := interfaces.ParseTEEKindName(cCtx.String("provider-kind"))
	if err != nil {
		logger.Error("Invalid provider kind", "err", err)
		return err
	}

	measurement, err := parseMeasurement(cCtx.String("measurement"))
	if err != nil {
		logger.Error("Invalid measurement", "err", err)
		return err
	}

	quote := make([]byte, 64)
	if _, err := rand.Read(quote); err != nil {
		return err
	}

	attestation := prober.AttestationReport{
		Quote:        hex.EncodeToString(quote),
		Measurement:  measurement,
		ReportData:   "",
		Timestamp:    time.Now().UnixMilli(),
		ProviderKind: uint8(kind),
		Verified:     false,
	}

	handler := httpserver.NewHandler(profile, attestation, logger)

	cfg := flags.ConfigureServer(cCtx, logger, cCtx.String("listen-addr"))
	server, err := httpserver.New(cfg, handler)
	if err != nil {
		logger.Error("Failed to create server", "err", err)
		return err
	}

	logger.Info("Starting simulated node",
		"listenAddr", cfg.ListenAddr,
		"kind", kind.String(),
		"measurement", measurement)
	server.RunInBackground()

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
	<-exit
	logger.Info("Shutdown signal received")

	server.Shutdown()
	logger.Info("Server shutdown complete")

	return nil
}
