// Command gatewayd runs the gateway's HTTP server.
package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/relaywright/gatewaycore/internal/config"
	"github.com/relaywright/gatewaycore/internal/log"
	"github.com/relaywright/gatewaycore/internal/wiring"
)

// configFileEnv names the environment variable pointing at the YAML
// config file. Empty (the default) means "environment only".
const configFileEnv = "GATEWAY_CONFIG_FILE"

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version", "--version", "-v":
			fmt.Println("gatewaycore (dev build)")
			return
		}
	}

	cfg, err := config.Load(os.Getenv(configFileEnv))
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	app := fx.New(
		fx.WithLogger(func() fxevent.Logger { return &fxLogger{} }),
		fx.Supply(cfg),
		wiring.Module,
	)

	app.Run()
}

// fxLogger routes fx's own startup/shutdown events through this package's
// structured logger instead of fx's default stderr writer.
type fxLogger struct{}

func (l *fxLogger) LogEvent(event fxevent.Event) {
	log.Debug(context.Background(), "fx event", log.Any("event", event))
}
