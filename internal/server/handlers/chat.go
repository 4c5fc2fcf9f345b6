package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/relaywright/gatewaycore/internal/gateway"
	"github.com/relaywright/gatewaycore/internal/log"
	"github.com/relaywright/gatewaycore/internal/pkg/streams"
	"github.com/relaywright/gatewaycore/internal/server/middleware"
)

// ChatCompletionHandler serves POST /v1/chat/completions: materialize the
// caller's request against the named prompt's current version, then drive
// it through the fallback executor, unary or streaming per the body's
// stream flag.
type ChatCompletionHandler struct {
	cache        *gateway.PromptVersionCache
	materializer *gateway.Materializer
	executor     *gateway.Executor
}

func NewChatCompletionHandler(cache *gateway.PromptVersionCache, materializer *gateway.Materializer, executor *gateway.Executor) *ChatCompletionHandler {
	return &ChatCompletionHandler{cache: cache, materializer: materializer, executor: executor}
}

func (h *ChatCompletionHandler) ChatCompletion(c *gin.Context) {
	var req ChatCompletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, http.StatusBadRequest, err)
		return
	}

	version, err := h.cache.Get(req.PromptID)
	if err != nil {
		middleware.AbortWithError(c, http.StatusNotFound, fmt.Errorf("prompt %s: %w", req.PromptID, err))
		return
	}

	materialized, err := h.materializer.Materialize(version, req.toChatRequest())
	if err != nil {
		middleware.AbortWithGatewayError(c, err)
		return
	}

	materialized.FallbackPolicy = req.FallbackPolicy.toPolicy()

	if req.Stream {
		h.streamChatCompletion(c, materialized)
		return
	}

	h.unaryChatCompletion(c, materialized)
}

func (h *ChatCompletionHandler) unaryChatCompletion(c *gin.Context, materialized *gateway.MaterializedRequest) {
	resp, logID, _, err := h.executor.Execute(c.Request.Context(), materialized, materialized.FallbackPolicy)
	if err != nil {
		middleware.AbortWithGatewayError(c, err)
		return
	}

	c.Header("X-Gateway-Log-Id", logID)
	c.JSON(http.StatusOK, resp)
}

const streamSinkCapacity = 16

func (h *ChatCompletionHandler) streamChatCompletion(c *gin.Context, materialized *gateway.MaterializedRequest) {
	ctx := c.Request.Context()
	sink := streams.NewChanStream[*gateway.UnifiedChunk](streamSinkCapacity)

	errCh := make(chan error, 1)

	go func() {
		_, _, err := h.executor.ExecuteStream(ctx, materialized, materialized.FallbackPolicy, sink)
		errCh <- err
	}()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	writeSSEStream(c, sink)

	defer sink.Close()

	if err := <-errCh; err != nil {
		log.Warn(ctx, "stream execution ended with error", log.Cause(err))
	}
}

// writeSSEStream forwards sink's chunks as Server-Sent Events, writing the
// literal `data: [DONE]` line for the terminal sentinel per §6, and an
// ordinary JSON-encoded `data: <chunk>` line for every other chunk. It
// returns as soon as the sink ends or the client disconnects (P8).
func writeSSEStream(c *gin.Context, sink *streams.ChanStream[*gateway.UnifiedChunk]) {
	ctx := c.Request.Context()
	clientGone := c.Writer.CloseNotify()

	for {
		select {
		case <-clientGone:
			log.Warn(ctx, "client disconnected, stopping stream")
			sink.Close()

			return
		case <-ctx.Done():
			log.Warn(ctx, "context done, stopping stream")
			sink.Close()

			return
		default:
		}

		if !sink.Next() {
			if err := sink.Err(); err != nil {
				log.Error(ctx, "error in stream", log.Cause(err))
				writeSSELine(c, fmt.Sprintf(`{"error":%q}`, err.Error()))
			}

			return
		}

		chunk := sink.Current()

		if gateway.IsDoneSentinel(chunk) {
			writeSSELine(c, "[DONE]")
			return
		}

		body, err := json.Marshal(chunk)
		if err != nil {
			log.Error(ctx, "marshal chunk", log.Cause(err))
			continue
		}

		writeSSELine(c, string(body))
	}
}

func writeSSELine(c *gin.Context, data string) {
	fmt.Fprintf(c.Writer, "data: %s\n\n", data)
	c.Writer.Flush()
}
