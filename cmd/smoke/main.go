package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/honeycombio/otel-config-go/otelconfig"
	"github.com/urfave/cli/v2"

	smoke "github.com/DanePete/smoke-sub000"
	"github.com/DanePete/smoke-sub000/exitcodes"
	"github.com/DanePete/smoke-sub000/flags"
	"github.com/DanePete/smoke-sub000/service"
)

var (
	Version   = "v0.3.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "smoke"
	app.Usage = "CMS Site Check Service"
	app.Description = "smoke checks CMS sites end to end through an external browser runner"
	app.Flags = flags.Flags
	app.Action = run
	app.ExitErrHandler = func(c *cli.Context, err error) {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			// Use the exit code from the ExitCoder
			cli.HandleExitCoder(exitErr)
		} else if err != nil {
			if smoke.IsRuntimeError(err) {
				cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.RuntimeErr))
			} else if smoke.IsCheckFailureError(err) {
				cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.CheckFailure))
			} else {
				// Unspecified errors default to exit code 1
				cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.CheckFailure))
			}
		}
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})

	// Start telemetry
	otelShutdown, err := otelconfig.ConfigureOpenTelemetry(
		otelconfig.WithServiceName(app.Name),
		otelconfig.WithServiceVersion(app.Version),
	)
	if err != nil {
		logger.Fatal("Failed to setup open telemetry", "message", err)
	}
	defer otelShutdown()

	// Start healthz and metrics servers
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc := service.New(logger)
	svc.Start(ctx)
	defer svc.Shutdown()

	// Start CLI
	if err := app.RunContext(ctx, os.Args); err != nil {
		logger.Fatal("Application failed", "message", err)
	}
}

func run(cliCtx *cli.Context) error {
	level, err := log.ParseLevel(cliCtx.String(flags.LogLevel.Name))
	if err != nil {
		level = log.InfoLevel
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{
		Level:           level,
		ReportTimestamp: true,
	})

	cfg, err := smoke.NewConfig(cliCtx, logger)
	if err != nil {
		// Wrap in RuntimeError to signal this should exit with code 2
		return smoke.NewRuntimeError(fmt.Errorf("failed to create config: %w", err))
	}

	cfg.Log.Debug("Config",
		"runnerDir", cfg.RunnerDir,
		"capsFile", cfg.CapsFile,
		"stateDir", cfg.StateDir,
		"runOnce", cfg.RunOnce)

	runCtx, cancel := context.WithCancel(cliCtx.Context)
	defer cancel()

	svc, err := smoke.New(runCtx, cfg, Version, func(error) { cancel() })
	if err != nil {
		return smoke.NewRuntimeError(fmt.Errorf("failed to create smoke service: %w", err))
	}

	if err := svc.Start(runCtx); err != nil {
		return err
	}
	if cfg.RunOnce {
		return nil
	}

	// Continuous mode: block until a signal or the shutdown callback fires
	<-runCtx.Done()

	stopCtx, cancelStop := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelStop()
	if err := svc.Stop(stopCtx); err != nil {
		return smoke.NewRuntimeError(err)
	}
	return svc.WaitForShutdown(stopCtx)
}
