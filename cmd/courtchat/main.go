package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/Nahtral/100IN-sub005/internal/app"
	"github.com/Nahtral/100IN-sub005/internal/bus"
	"github.com/Nahtral/100IN-sub005/internal/chat"
	"github.com/Nahtral/100IN-sub005/internal/session"
	"github.com/Nahtral/100IN-sub005/internal/status"
	"github.com/Nahtral/100IN-sub005/internal/tui"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const startTimeout = 15 * time.Second

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	flag.Parse()

	profile := session.Resolve(*profileFlag)
	if err := session.ValidateName(profile); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	var (
		mgr     *chat.Manager
		b       *bus.Bus
		machine *status.Machine
		logger  *zap.Logger
	)

	fxApp := fx.New(
		app.Module(app.Params{Profile: profile}),
		fx.Populate(&mgr, &b, &machine, &logger),
		fx.NopLogger,
	)

	startCtx, cancel := context.WithTimeout(context.Background(), startTimeout)
	if err := fxApp.Start(startCtx); err != nil {
		cancel()
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	cancel()

	ui := tui.NewApp(mgr, b, machine, profile, logger)
	runErr := ui.Run()
	ui.Stop()

	stopCtx, cancel := context.WithTimeout(context.Background(), startTimeout)
	defer cancel()
	if err := fxApp.Stop(stopCtx); err != nil {
		fmt.Fprintf(os.Stderr, "shutdown: %v\n", err)
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", runErr)
		os.Exit(1)
	}
}
