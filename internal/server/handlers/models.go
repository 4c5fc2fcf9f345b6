package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/relaywright/gatewaycore/internal/server/middleware"
	"github.com/relaywright/gatewaycore/internal/store/mysql"
)

// ModelLister is the store surface GET /v1/models needs.
type ModelLister interface {
	ListModels(ctx context.Context) ([]mysql.ModelSummary, error)
}

type ModelsHandler struct {
	store ModelLister
}

func NewModelsHandler(store ModelLister) *ModelsHandler {
	return &ModelsHandler{store: store}
}

// modelResponse is the OpenAI-compatible "basic fields only" shape §6.1
// calls for: no extended-metadata mode.
type modelResponse struct {
	Object string      `json:"object"`
	Data   []modelItem `json:"data"`
}

type modelItem struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	OwnedBy string `json:"owned_by"`
}

// ListModels implements GET /v1/models.
func (h *ModelsHandler) ListModels(c *gin.Context) {
	models, err := h.store.ListModels(c.Request.Context())
	if err != nil {
		middleware.AbortWithError(c, http.StatusInternalServerError, err)
		return
	}

	resp := modelResponse{Object: "list"}
	for _, m := range models {
		resp.Data = append(resp.Data, modelItem{ID: m.ID, Object: "model", OwnedBy: string(m.ProviderKind)})
	}

	c.JSON(http.StatusOK, resp)
}
