package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pooledbismuth/poolstats/pkg/logging"
)

type addressSummaryParams struct {
	Address string `json:"address"`
}

type windowReportParams struct {
	Hours int `json:"hours"`
}

// decodeParams accepts a named object or a single positional value. Empty
// params leave dst untouched.
func decodeParams(params json.RawMessage, dst interface{}, positional func(json.RawMessage) error) error {
	params = bytes.TrimSpace(params)
	if len(params) == 0 || bytes.Equal(params, []byte("null")) {
		return nil
	}
	if params[0] == '[' {
		var values []json.RawMessage
		if err := json.Unmarshal(params, &values); err != nil {
			return InvalidParams(err)
		}
		if len(values) == 0 {
			return nil
		}
		if len(values) > 1 {
			return InvalidParams(fmt.Errorf("expected at most 1 positional param, got %d", len(values)))
		}
		if err := positional(values[0]); err != nil {
			return InvalidParams(err)
		}
		return nil
	}
	if err := json.Unmarshal(params, dst); err != nil {
		return InvalidParams(err)
	}
	return nil
}

func (r *Router) getAddressSummary(c *gin.Context, params json.RawMessage) (interface{}, error) {
	var p addressSummaryParams
	if err := decodeParams(params, &p, func(v json.RawMessage) error {
		return json.Unmarshal(v, &p.Address)
	}); err != nil {
		return nil, err
	}
	return r.reporter.AddressSummary(c.Request.Context(), p.Address)
}

func (r *Router) getWindowReport(c *gin.Context, params json.RawMessage) (interface{}, error) {
	var p windowReportParams
	if err := decodeParams(params, &p, func(v json.RawMessage) error {
		return json.Unmarshal(v, &p.Hours)
	}); err != nil {
		return nil, err
	}
	return r.reporter.WindowReport(c.Request.Context(), p.Hours)
}

// balanceHandler serves GET /api/balance?address=...
func (r *Router) balanceHandler(c *gin.Context) {
	summary, err := r.reporter.AddressSummary(c.Request.Context(), c.Query("address"))
	if err != nil {
		r.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// windowHandler serves GET /api/window?hours=N. A missing hours value falls
// back to the narrowest window.
func (r *Router) windowHandler(c *gin.Context) {
	hours := 0
	if raw := c.Query("hours"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			r.writeError(c, InvalidParams(fmt.Errorf("hours: %w", err)))
			return
		}
		hours = n
	}

	report, err := r.reporter.WindowReport(c.Request.Context(), hours)
	if err != nil {
		r.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (r *Router) writeError(c *gin.Context, err error) {
	apiErr := Classify(err)
	logger := logging.FromContext(c.Request.Context(), r.logger)
	if apiErr.Status >= http.StatusInternalServerError {
		logger.Error("Request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
	} else {
		logger.Debug("Request rejected", zap.String("path", c.Request.URL.Path), zap.Error(err))
	}

	c.JSON(apiErr.Status, gin.H{
		"error": gin.H{
			"code":    apiErr.Code,
			"message": apiErr.Message,
			"detail":  apiErr.Detail(),
		},
	})
}
