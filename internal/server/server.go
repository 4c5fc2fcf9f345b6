// Package server is the gateway's HTTP boundary: a gin engine wired with
// recovery, access logging, CORS, tracing and API-key auth, exposing the
// OpenAI-compatible chat-completions surface plus the eval-run CRUD (§6.1).
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/relaywright/gatewaycore/internal/log"
)

func New(config Config) *Server {
	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	return &Server{
		Config: config,
		Engine: engine,
	}
}

// Server wraps a gin.Engine with the plumbing needed to run and shut it
// down as part of an fx lifecycle hook.
type Server struct {
	*gin.Engine

	Config Config
	server *http.Server
}

func (srv *Server) Run() error {
	addr := fmt.Sprintf("%s:%d", srv.Config.Host, srv.Config.Port)

	log.Info(context.Background(), "run server",
		log.String("name", srv.Config.Name),
		log.String("addr", addr),
	)

	srv.server = &http.Server{
		Addr:         addr,
		Handler:      srv.Engine,
		ReadTimeout:  srv.Config.ReadTimeout,
		WriteTimeout: 0, // streaming responses can run far longer than any fixed write timeout
	}

	err := srv.server.ListenAndServe()
	if err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return err
	}

	return nil
}

func (srv *Server) Shutdown(ctx context.Context) error {
	if srv.server == nil {
		return nil
	}

	return srv.server.Shutdown(ctx)
}
