package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/relaywright/gatewaycore/internal/gateway"
	"github.com/relaywright/gatewaycore/internal/server/middleware"
	"github.com/relaywright/gatewaycore/internal/store/mysql"
)

// EvalRunsHandler serves the §6.1 eval-run endpoints: triggering a run and
// reading back its results/performance.
type EvalRunsHandler struct {
	store  *mysql.Store
	runner *gateway.EvalRunner
}

func NewEvalRunsHandler(store *mysql.Store, runner *gateway.EvalRunner) *EvalRunsHandler {
	return &EvalRunsHandler{store: store, runner: runner}
}

// CreateEvalRun implements POST /v1/prompts/{prompt_id}/eval-runs: runs C6
// for the prompt's current version.
func (h *EvalRunsHandler) CreateEvalRun(c *gin.Context) {
	promptID := c.Param("prompt_id")

	_, _, currentVersionID, err := h.store.GetPrompt(c.Request.Context(), promptID)
	if err != nil {
		if errors.Is(err, mysql.ErrNotFound) {
			middleware.AbortWithError(c, http.StatusNotFound, err)
			return
		}

		middleware.AbortWithError(c, http.StatusInternalServerError, err)

		return
	}

	if currentVersionID == "" {
		middleware.AbortWithError(c, http.StatusConflict, errors.New("prompt has no current version"))
		return
	}

	result, err := h.runner.ExecuteEvalRun(c.Request.Context(), promptID, currentVersionID)
	if err != nil {
		middleware.AbortWithGatewayError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"run_id": result.RunID, "runs": result.Runs})
}

// GetEvalRun implements GET /v1/prompts/{prompt_id}/eval-runs/{run_id}: it
// lists the rows of the prompt's current version whose run id is run_id.
// Rows the run produced against an earlier version are not returned.
func (h *EvalRunsHandler) GetEvalRun(c *gin.Context) {
	promptID := c.Param("prompt_id")
	runID := c.Param("run_id")

	_, _, currentVersionID, err := h.store.GetPrompt(c.Request.Context(), promptID)
	if err != nil {
		middleware.AbortWithError(c, http.StatusNotFound, err)
		return
	}

	runs, err := h.runner.ListEvalRunsByVersion(c.Request.Context(), currentVersionID)
	if err != nil {
		middleware.AbortWithError(c, http.StatusInternalServerError, err)
		return
	}

	var filtered []*gateway.EvalRun

	for _, r := range runs {
		if r.RunID == runID {
			filtered = append(filtered, r)
		}
	}

	if len(filtered) == 0 {
		middleware.AbortWithError(c, http.StatusNotFound, errors.New("eval run not found"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"run_id": runID, "runs": filtered})
}

// GetEvalPerformance implements GET /v1/prompts/{prompt_id}/eval-performance.
func (h *EvalRunsHandler) GetEvalPerformance(c *gin.Context) {
	promptID := c.Param("prompt_id")

	perf, err := h.runner.GetEvalPerformance(c.Request.Context(), promptID)
	if err != nil {
		middleware.AbortWithError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, perf)
}
