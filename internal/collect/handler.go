package collect

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-sod/pipecast/internal/dispatcher"
	"github.com/go-sod/pipecast/internal/feature"
	"github.com/go-sod/pipecast/internal/httputil"
	"github.com/go-sod/pipecast/internal/logging"
	"github.com/go-sod/pipecast/internal/record/model"
)

type response struct {
	Status    string `json:"status"`
	Collected int    `json:"collected"`
}

func NewHandler(cfg *Config, collector dispatcher.Collector) (http.Handler, error) {
	if collector == nil {
		return nil, errors.New("collector instance is not defined")
	}
	return &handler{
		collector: collector,
		cfg:       cfg,
		now:       time.Now,
	}, nil
}

type handler struct {
	collector dispatcher.Collector
	cfg       *Config
	now       func() time.Time
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.cfg.RequestTimeout)
	defer cancel()
	logger := logging.FromContext(ctx)

	if !httputil.AllowMethod(ctx, w, r, http.MethodPost) || !httputil.RequireJSON(ctx, w, r) {
		return
	}
	defer r.Body.Close()

	var batch model.Batch
	if err := httputil.DecodeJSON(w, r, h.cfg.MaxBodyBytes, &batch); err != nil {
		httputil.DecodeErr(ctx, w, err)
		return
	}

	records, err := batch.Records(h.now())
	if err != nil {
		httputil.RespBadRequest(ctx, w, "%v", err)
		return
	}

	switch err := h.collector.Collect(records...); {
	case err == nil:
	case errors.Is(err, feature.ErrMissingFeature),
		errors.Is(err, feature.ErrNonFiniteFeature),
		errors.Is(err, model.ErrEmptyPipeline):
		httputil.RespBadRequest(ctx, w, "%v", err)
		return
	case errors.Is(err, dispatcher.ErrShuttingDown):
		httputil.RespError(ctx, w, http.StatusServiceUnavailable, "%v", err)
		return
	default:
		httputil.RespInternalError(ctx, w, "error sending to collect service: %v", err)
		return
	}

	logger.Debugf("collected %d records for pipeline %s", len(records), batch.PipelineID)
	httputil.RespJSON(ctx, w, http.StatusOK, response{Status: "ok", Collected: len(records)})
}
