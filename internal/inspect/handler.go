package inspect

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-sod/pipecast/internal/dispatcher"
	"github.com/go-sod/pipecast/internal/httputil"
	"github.com/go-sod/pipecast/internal/logging"
)

// NewModelHandler serves the published model summary and its tree.
func NewModelHandler(cfg *Config, provider dispatcher.ModelProvider) (http.Handler, error) {
	if provider == nil {
		return nil, errors.New("model provider instance is not defined")
	}
	return &modelHandler{cfg: cfg, provider: provider}, nil
}

type modelHandler struct {
	cfg      *Config
	provider dispatcher.ModelProvider
}

func (h *modelHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.cfg.RequestTimeout)
	defer cancel()

	if !httputil.AllowMethod(ctx, w, r, http.MethodGet) {
		return
	}

	m := h.provider.Model()
	if m == nil {
		httputil.RespError(ctx, w, http.StatusNotFound, "%v", dispatcher.ErrNoModel)
		return
	}
	httputil.RespJSON(ctx, w, http.StatusOK, m)
}

// NewRetrainHandler trains on the stored records before responding.
func NewRetrainHandler(cfg *Config, provider dispatcher.ModelProvider) (http.Handler, error) {
	if provider == nil {
		return nil, errors.New("model provider instance is not defined")
	}
	return &retrainHandler{cfg: cfg, provider: provider}, nil
}

type retrainHandler struct {
	cfg      *Config
	provider dispatcher.ModelProvider
}

func (h *retrainHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.cfg.RetrainRequestTimeout)
	defer cancel()
	logger := logging.FromContext(ctx)

	if !httputil.AllowMethod(ctx, w, r, http.MethodPost) {
		return
	}

	m, err := h.provider.Retrain(ctx)
	switch {
	case err == nil:
	case errors.Is(err, dispatcher.ErrNotEnoughRecords):
		httputil.RespError(ctx, w, http.StatusUnprocessableEntity, "%v", err)
		return
	case errors.Is(err, dispatcher.ErrShuttingDown):
		httputil.RespError(ctx, w, http.StatusServiceUnavailable, "%v", err)
		return
	default:
		httputil.RespInternalError(ctx, w, "retrain error: %v", err)
		return
	}

	logger.Infof("model %s retrained on request, %d nodes", m.ID(), m.NodeCount())
	httputil.RespJSON(ctx, w, http.StatusOK, m)
}
