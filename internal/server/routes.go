package server

import (
	"github.com/gin-contrib/cors"
	"go.uber.org/fx"

	"github.com/relaywright/gatewaycore/internal/server/handlers"
	"github.com/relaywright/gatewaycore/internal/server/middleware"
)

// Handlers groups every handler fx provides, for SetupRoutes to wire.
type Handlers struct {
	fx.In

	Chat      *handlers.ChatCompletionHandler
	Models    *handlers.ModelsHandler
	EvalRuns  *handlers.EvalRunsHandler
}

// SetupRoutes mounts the §6.1 HTTP surface onto srv.
func SetupRoutes(srv *Server, h Handlers) {
	srv.Use(middleware.Recovery())
	srv.Use(middleware.AccessLog())
	srv.Use(middleware.WithTrace(srv.Config.Trace))

	if srv.Config.CORS.Enabled {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowOrigins = srv.Config.CORS.AllowedOrigins
		corsConfig.AllowMethods = srv.Config.CORS.AllowedMethods
		corsConfig.AllowHeaders = srv.Config.CORS.AllowedHeaders
		corsConfig.ExposeHeaders = srv.Config.CORS.ExposedHeaders
		corsConfig.AllowCredentials = srv.Config.CORS.AllowCredentials
		corsConfig.MaxAge = srv.Config.CORS.MaxAge

		corsHandler := cors.New(corsConfig)
		srv.Use(corsHandler)
		srv.OPTIONS("*any", corsHandler)
	}

	apiGroup := srv.Group("/", middleware.WithAPIKeyAuth(srv.Config.APIKeys))

	// Chat completions gets the longer of the two §5 deadlines: a unary
	// call only needs LLMRequestTimeout, but a streaming call needs the
	// full StreamFirstByteTimeout budget and the request's own context
	// deadline is the only bound this layer can apply up front.
	chatTimeout := srv.Config.StreamFirstByteTimeout
	if srv.Config.LLMRequestTimeout > chatTimeout {
		chatTimeout = srv.Config.LLMRequestTimeout
	}

	v1 := apiGroup.Group("/v1")
	v1.POST("/chat/completions", middleware.WithTimeout(chatTimeout), h.Chat.ChatCompletion)
	v1.GET("/models", middleware.WithTimeout(srv.Config.RequestTimeout), h.Models.ListModels)

	promptsGroup := apiGroup.Group("/v1/prompts", middleware.WithTimeout(srv.Config.RequestTimeout))
	promptsGroup.POST("/:prompt_id/eval-runs", h.EvalRuns.CreateEvalRun)
	promptsGroup.GET("/:prompt_id/eval-runs/:run_id", h.EvalRuns.GetEvalRun)
	promptsGroup.GET("/:prompt_id/eval-performance", h.EvalRuns.GetEvalPerformance)
}
