package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Taff4/conciliador-notas/internal/amount"
	"github.com/Taff4/conciliador-notas/internal/logger"
	"github.com/Taff4/conciliador-notas/internal/matcher"
	"github.com/Taff4/conciliador-notas/pkg/models"
)

// preparedSearch is a validated request ready for the matcher.
type preparedSearch struct {
	req      matcher.Request
	rejected []string
	warning  string
}

// prepare converts the wire request into a matcher.Request, applying the
// depth policy: default when omitted, rejected above MaxDepth, warned above
// WarnDepth.
func (h *APIHandler) prepare(in models.ReconcileRequest) (preparedSearch, error) {
	var ps preparedSearch

	depth := h.policy.DefaultDepth
	if in.MaxDepth != nil {
		depth = *in.MaxDepth
	}
	if depth > h.policy.MaxDepth {
		return ps, invalidField("maxDepth", fmt.Sprintf("must be at most %d", h.policy.MaxDepth))
	}

	target, err := amount.FromDecimal(*in.Target)
	if err != nil {
		return ps, invalidField("target", err.Error())
	}

	var candidates []amount.Amount
	if in.Notes != "" {
		parsed := amount.ParseList(in.Notes)
		candidates = parsed.Amounts
		ps.rejected = parsed.Rejected
	} else {
		candidates = make([]amount.Amount, len(in.Values))
		for i, v := range in.Values {
			a, err := amount.FromDecimal(v)
			if err != nil {
				return ps, invalidField(fmt.Sprintf("values[%d]", i), err.Error())
			}
			candidates[i] = a
		}
	}

	ps.req = matcher.Request{Target: target, Candidates: candidates, MaxSize: depth}
	if err := ps.req.Validate(); err != nil {
		var reqErr *matcher.RequestError
		if in.Notes != "" && errors.As(err, &reqErr) && strings.HasPrefix(reqErr.Field, matcher.FieldCandidates) {
			return ps, invalidField("notes", "note "+strings.TrimPrefix(reqErr.Field, matcher.FieldCandidates)+" "+reqErr.Reason)
		}
		return ps, err
	}

	if depth > h.policy.WarnDepth {
		ps.warning = fmt.Sprintf(
			"a search with depth %d can be extremely slow (up to %d combinations over %d notes)",
			depth, matcher.CombinationCount(len(candidates), depth), len(candidates))
	}
	return ps, nil
}

// run executes the search under the configured timeout.
func (h *APIHandler) run(ctx context.Context, ps preparedSearch, sink matcher.ProgressSink) (matcher.Result, error) {
	if h.policy.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.policy.Timeout)
		defer cancel()
	}

	res, err := h.searcher.Search(ctx, ps.req, sink)
	if err != nil {
		return res, err
	}
	if h.metrics != nil {
		h.metrics.ObserveSearch(len(ps.req.Candidates), res)
	}
	logger.C(ctx).Info().
		Str("outcome", res.Outcome.String()).
		Int("candidates", len(ps.req.Candidates)).
		Int("depth", res.Depth).
		Int("size", res.Size()).
		Uint64("evaluated", res.Evaluated).
		Dur("elapsed", res.Elapsed).
		Msg("search finished")
	return res, nil
}

// buildResponse renders a result for the client.
func buildResponse(requestID string, ps preparedSearch, res matcher.Result) models.ReconcileResponse {
	out := models.ReconcileResponse{
		RequestID:      requestID,
		Target:         ps.req.Target.String(),
		Candidates:     len(ps.req.Candidates),
		Depth:          res.Depth,
		Evaluated:      res.Evaluated,
		Elapsed:        res.Elapsed.Round(time.Millisecond).String(),
		ElapsedMs:      float64(res.Elapsed.Microseconds()) / 1000,
		RejectedTokens: ps.rejected,
		Warning:        ps.warning,
	}

	switch res.Outcome {
	case matcher.Found:
		out.Status = models.StatusFound
		out.Indices = res.Indices
		out.Combination = make([]string, len(res.Combination))
		for i, a := range res.Combination {
			out.Combination[i] = a.String()
		}
		out.Sum = amount.Sum(res.Combination).String()
	case matcher.Cancelled:
		out.Status = models.StatusCancelled
		out.Hint = "the search was cancelled before finishing; narrow the note list or lower maxDepth"
	default:
		out.Status = models.StatusNotFound
		out.Hint = fmt.Sprintf(
			"the search was limited to combinations of up to %d notes; if the combination is larger, raise maxDepth and try again",
			res.Depth)
	}
	return out
}

// handleReconcile runs one search synchronously.
// POST /api/v1/reconcile {"target": "350.00", "notes": "100,00 250,00", "maxDepth": 5}
func (h *APIHandler) handleReconcile(c *gin.Context) {
	var in models.ReconcileRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		h.respond(c, err, bindErrorBody)
		return
	}

	ps, err := h.prepare(in)
	if err != nil {
		h.fail(c, err)
		return
	}

	res, err := h.run(c.Request.Context(), ps, nil)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, buildResponse(c.GetString(ctxRequestID), ps, res))
}

// handleParse previews how note text will be read.
func (h *APIHandler) handleParse(c *gin.Context) {
	var in models.ParseRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		h.respond(c, err, bindErrorBody)
		return
	}

	parsed := amount.ParseList(in.Notes)
	values := make([]string, len(parsed.Amounts))
	for i, a := range parsed.Amounts {
		values[i] = a.String()
	}
	c.JSON(http.StatusOK, models.ParseResponse{
		Values:   values,
		Count:    len(values),
		Total:    amount.Sum(parsed.Amounts).String(),
		Rejected: parsed.Rejected,
	})
}

func (h *APIHandler) fail(c *gin.Context, err error) {
	h.respond(c, err, errorBody)
}

func (h *APIHandler) respond(c *gin.Context, err error, classify func(error) (int, models.ErrorBody)) {
	status, body := classify(err)
	h.observeInvalid(body)
	_ = c.Error(err)
	respondError(c, status, body.Code, body.Message, body.Field)
}

// observeInvalid counts field failures, folding "values[3]" into "values".
func (h *APIHandler) observeInvalid(body models.ErrorBody) {
	if h.metrics == nil || body.Field == "" {
		return
	}
	field, _, _ := strings.Cut(body.Field, "[")
	h.metrics.ObserveInvalid(field)
}
