package collect

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-sod/pipecast/internal/dispatcher"
	"github.com/go-sod/pipecast/internal/record/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collectorFn func(in ...model.Record) error

func (f collectorFn) Collect(in ...model.Record) error { return f(in...) }

const validBody = `{"pipeline":"etl-orders","data":[{"features":{"hoursSinceLastRun":3,"avgFailureRate":10,"dataVolumeVariance":2,"dayOfWeek":1,"hourOfDay":6},"willFail":false}]}`

func TestHandler(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		contentType string
		body        string
		collectErr  error
		status      int
		collected   int
	}{
		{name: "ok", body: validBody, status: http.StatusOK, collected: 1},
		{name: "wrong_method", method: http.MethodGet, body: validBody, status: http.StatusMethodNotAllowed},
		{name: "wrong_content_type", contentType: "text/csv", body: validBody, status: http.StatusUnsupportedMediaType},
		{name: "malformed", body: `{"pipeline":`, status: http.StatusBadRequest},
		{name: "unknown_field", body: `{"pipeline":"p","rows":[]}`, status: http.StatusBadRequest},
		{name: "missing_label", body: `{"pipeline":"p","data":[{"features":{}}]}`, status: http.StatusBadRequest},
		{name: "missing_feature", body: `{"pipeline":"p","data":[{"features":{"hourOfDay":1},"willFail":true}]}`, status: http.StatusBadRequest},
		{name: "shutting_down", body: validBody, collectErr: dispatcher.ErrShuttingDown, status: http.StatusServiceUnavailable},
		{name: "storage_error", body: validBody, collectErr: errors.New("disk"), status: http.StatusInternalServerError},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var got []model.Record
			var collector dispatcher.Collector = collectorFn(func(in ...model.Record) error {
				for i := range in {
					if err := in[i].Validate(); err != nil {
						return err
					}
				}
				if test.collectErr != nil {
					return test.collectErr
				}
				got = append(got, in...)
				return nil
			})
			h, err := NewHandler(&Config{RequestTimeout: time.Second, MaxBodyBytes: 1 << 20}, collector)
			require.NoError(t, err)

			method := test.method
			if method == "" {
				method = http.MethodPost
			}
			contentType := test.contentType
			if contentType == "" {
				contentType = "application/json"
			}
			r := httptest.NewRequest(method, "/collect", strings.NewReader(test.body))
			r.Header.Set("Content-Type", contentType)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, r)

			if w.Code != test.status {
				t.Errorf("status got: %v, expected: %v, body: %s", w.Code, test.status, w.Body.String())
			}
			assert.Len(t, got, test.collected)
			if test.status == http.StatusOK {
				assert.JSONEq(t, `{"status":"ok","collected":1}`, w.Body.String())
			}
		})
	}
}

func TestNewHandler(t *testing.T) {
	_, err := NewHandler(&Config{}, nil)
	assert.Error(t, err)
}
