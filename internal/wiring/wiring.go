// Package wiring composes the gateway's fx.Module: every constructor the
// process needs, wired the way cmd/gatewayd's main assembles them, so the
// entrypoint itself stays a thin fx.New(...).Run() call.
package wiring

import (
	"context"
	"database/sql"
	"log/slog"

	"go.uber.org/fx"

	"github.com/relaywright/gatewaycore/internal/config"
	"github.com/relaywright/gatewaycore/internal/gateway"
	"github.com/relaywright/gatewaycore/internal/gateway/providers"
	"github.com/relaywright/gatewaycore/internal/log"
	"github.com/relaywright/gatewaycore/internal/pkg/httpclient"
	"github.com/relaywright/gatewaycore/internal/server"
	"github.com/relaywright/gatewaycore/internal/server/handlers"
	"github.com/relaywright/gatewaycore/internal/store/mysql"
	"github.com/relaywright/gatewaycore/internal/tracing"
)

// Sub-config extraction: cmd/gatewayd supplies one config.Config via
// fx.Supply; everything downstream asks for the slice it needs.
func serverConfig(cfg config.Config) server.Config { return cfg.Server }
func logConfig(cfg config.Config) log.Config       { return cfg.Log }
func mysqlConfig(cfg config.Config) mysql.Config    { return cfg.MySQL }

// NewAdapterSet builds the closed set of provider adapters the executor
// dispatches across, each sharing one HTTP client (which takes its proxy
// settings from the environment).
func NewAdapterSet(hc *httpclient.HttpClient) gateway.AdapterSet {
	return gateway.AdapterSet{
		gateway.KindOpenAI:     providers.NewOpenAI(hc),
		gateway.KindAzure:      providers.NewAzure(hc),
		gateway.KindOpenRouter: providers.NewOpenRouter(hc),
	}
}

// NewMySQLDB opens and migrates the pool used by every mysql.Store
// consumer. It lives here, not in mysql.Open itself, so the OnStart
// migration step is visible as part of the process's startup sequence.
func NewMySQLDB(lc fx.Lifecycle, cfg mysql.Config) (*sql.DB, error) {
	db, err := mysql.Open(cfg)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return mysql.Migrate(ctx, db)
		},
		OnStop: func(ctx context.Context) error {
			return db.Close()
		},
	})

	return db, nil
}

// asStore exposes *mysql.Store under every outbound store interface the
// gateway and handlers packages define: it's the single concrete store, fx
// just needs telling which interfaces it satisfies.
func asStore(db *sql.DB) (*mysql.Store, gateway.PromptStore, gateway.TraceStore, gateway.EvalStore, handlers.ModelLister) {
	s := mysql.New(db)
	return s, s, s, s, s
}

// Module is every constructor the gateway needs, as a single fx.Module.
var Module = fx.Module("gatewaycore",
	fx.Provide(
		serverConfig,
		logConfig,
		mysqlConfig,
		NewMySQLDB,
		asStore,
		httpclient.NewHttpClient,
		NewAdapterSet,
		gateway.LoadCredentialsFromEnv,
		gateway.NewTraceLogger,
		gateway.NewExecutor,
		gateway.NewMaterializer,
		gateway.NewPromptVersionCache,
		gateway.NewEvalRunner,
		handlers.NewChatCompletionHandler,
		handlers.NewModelsHandler,
		handlers.NewEvalRunsHandler,
		server.New,
	),
	fx.Invoke(func(cfg log.Config) {
		log.SetGlobalConfig(cfg)
		log.GetGlobalLogger().AddHook(tracing.TraceFieldsHook)
		slog.SetDefault(log.GetGlobalLogger().AsSlog())
	}),
	fx.Invoke(server.SetupRoutes),
	fx.Invoke(func(lc fx.Lifecycle, srv *server.Server) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				go func() {
					if err := srv.Run(); err != nil {
						log.Error(context.Background(), "server exited", log.Cause(err))
					}
				}()

				return nil
			},
			OnStop: func(ctx context.Context) error {
				return srv.Shutdown(ctx)
			},
		})
	}),
)
