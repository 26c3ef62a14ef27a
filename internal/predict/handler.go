package predict

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-sod/pipecast/internal/dispatcher"
	"github.com/go-sod/pipecast/internal/feature"
	"github.com/go-sod/pipecast/internal/httputil"
	"github.com/go-sod/pipecast/internal/predictor"
	"golang.org/x/sync/errgroup"
)

type item struct {
	Features feature.Vector `json:"features"`
	Extra    interface{}    `json:"extra,omitempty"`
}

type request struct {
	PipelineID string `json:"pipeline"`
	Data       []item `json:"data"`
}

type result struct {
	WillFail     bool                  `json:"willFail"`
	Confidence   float64               `json:"confidence"`
	DecisionPath []string              `json:"decisionPath"`
	Conditions   []predictor.Condition `json:"conditions"`
	Extra        interface{}           `json:"extra,omitempty"`
}

type response struct {
	PipelineID string   `json:"pipeline"`
	Data       []result `json:"data"`
}

func NewHandler(cfg *Config, p dispatcher.Predictor) (http.Handler, error) {
	if p == nil {
		return nil, errors.New("predictor instance is not defined")
	}
	return &handler{
		cfg:       cfg,
		predictor: p,
	}, nil
}

type handler struct {
	predictor dispatcher.Predictor
	cfg       *Config
}

// validate checks every item before any prediction runs.
func (req request) validate(maxItems int) error {
	if req.PipelineID == "" {
		return errors.New("pipeline is required")
	}
	if len(req.Data) > maxItems {
		return fmt.Errorf("data items is too large, max allowed len is %d", maxItems)
	}
	for i, it := range req.Data {
		for name := range it.Features {
			if _, err := feature.Index(name); err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
		}
		if err := it.Features.CheckFinite(); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
	}
	return nil
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.cfg.RequestTimeout)
	defer cancel()

	if !httputil.AllowMethod(ctx, w, r, http.MethodPost) || !httputil.RequireJSON(ctx, w, r) {
		return
	}
	defer r.Body.Close()

	var req request
	if err := httputil.DecodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		httputil.DecodeErr(ctx, w, err)
		return
	}
	if err := req.validate(h.cfg.MaxDataItemsLen); err != nil {
		httputil.RespBadRequest(ctx, w, "%v", err)
		return
	}

	results := make([]result, len(req.Data))
	errGrp, gctx := errgroup.WithContext(ctx)
	for i := range req.Data {
		i := i
		errGrp.Go(func() error {
			c, err := h.predictor.Predict(gctx, req.PipelineID, req.Data[i].Features)
			if err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
			res := result{
				WillFail:     c.WillFail,
				Confidence:   c.Confidence,
				DecisionPath: c.DecisionPath(),
				Conditions:   c.Conditions,
				Extra:        req.Data[i].Extra,
			}
			if res.Conditions == nil {
				res.Conditions = []predictor.Condition{}
			}
			results[i] = res
			return nil
		})
	}
	switch err := errGrp.Wait(); {
	case err == nil:
	case errors.Is(err, dispatcher.ErrNoModel):
		httputil.RespError(ctx, w, http.StatusServiceUnavailable, "%v", err)
		return
	case errors.Is(err, feature.ErrMissingFeature), errors.Is(err, feature.ErrNonFiniteFeature):
		httputil.RespBadRequest(ctx, w, "%v", err)
		return
	default:
		httputil.RespInternalError(ctx, w, "predict processing error: %v", err)
		return
	}

	httputil.RespJSON(ctx, w, http.StatusOK, response{PipelineID: req.PipelineID, Data: results})
}
