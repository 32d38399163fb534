package endpoint

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/queuekit/errors"
	"github.com/kbukum/queuekit/logger"
	"github.com/kbukum/queuekit/pipeline"
	"github.com/kbukum/queuekit/util"
	"github.com/kbukum/queuekit/validation"
)

// HeaderRunID names the run streamed in the response.
const HeaderRunID = "X-Run-Id"

// Event names on the run stream.
const (
	EventResult = "result"
	EventError  = "error"
	EventReport = "report"
)

// RunRequest overrides parts of the server's default pipeline config.
// Omitted fields keep the default; an explicit empty list clears it.
type RunRequest struct {
	Dataset            []string `json:"dataset"`
	Counts             []int    `json:"counts"`
	TimeoutMs          *int64   `json:"timeout_ms"`
	Transform          *string  `json:"transform"`
	Multiplier         *int     `json:"multiplier"`
	Seed               *uint64  `json:"seed"`
	FailureProbability *float64 `json:"failure_probability"`
	BreakProbability   *float64 `json:"break_probability"`
	CancelProbability  *float64 `json:"cancel_probability"`
}

// Limits on a single run request.
const (
	MaxRunTimeout   = time.Hour
	MaxMultiplier   = 1000
	MaxCount        = 10_000
	MaxSourceLength = 10_000
	MaxSources      = 64
)

// Validate rejects values that config defaults would otherwise mask and
// requests too large for one stream.
func (r *RunRequest) Validate() *apperrors.AppError {
	v := validation.New()
	if r.TimeoutMs != nil {
		v.Custom(*r.TimeoutMs > 0 && *r.TimeoutMs <= MaxRunTimeout.Milliseconds(), "timeout_ms",
			fmt.Sprintf("must be between 1 and %d", MaxRunTimeout.Milliseconds()))
	}
	if r.Transform != nil {
		v.Custom(*r.Transform != "", "transform", "must not be empty").
			OneOf("transform", *r.Transform, []string{pipeline.TransformScale, pipeline.TransformUpper})
	}
	if r.Multiplier != nil {
		v.Range("multiplier", *r.Multiplier, 1, MaxMultiplier)
	}
	v.Custom(len(r.Dataset)+len(r.Counts) <= MaxSources, "sources",
		fmt.Sprintf("at most %d dataset and counts entries", MaxSources))
	for i, s := range r.Dataset {
		v.Custom(len(s) <= MaxSourceLength, fmt.Sprintf("dataset[%d]", i),
			fmt.Sprintf("must be at most %d characters", MaxSourceLength))
	}
	for i, n := range r.Counts {
		v.Range(fmt.Sprintf("counts[%d]", i), n, 0, MaxCount)
	}
	return v.Validate()
}

// Apply overlays the request onto base.
func (r *RunRequest) Apply(base pipeline.Config) pipeline.Config {
	cfg := base
	cfg.Dataset = util.SliceOr(r.Dataset, base.Dataset)
	cfg.Counts = util.SliceOr(r.Counts, base.Counts)
	if r.TimeoutMs != nil {
		cfg.Timeout = time.Duration(*r.TimeoutMs) * time.Millisecond
	}
	cfg.Transform = util.Or(r.Transform, base.Transform)
	cfg.Multiplier = util.Or(r.Multiplier, base.Multiplier)
	cfg.Seed = util.Or(r.Seed, base.Seed)
	cfg.FailureProbability = util.Or(r.FailureProbability, base.FailureProbability)
	cfg.BreakProbability = util.Or(r.BreakProbability, base.BreakProbability)
	cfg.CancelProbability = util.Or(r.CancelProbability, base.CancelProbability)
	return cfg
}

// Runs starts one pipeline run per request and streams it as server-sent
// events: a "result" event per result, ending with the done marker, then one
// "report" event. Disconnecting cancels the run.
func Runs(base pipeline.Config, opts ...pipeline.Option) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RunRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			RespondWithError(c, bindError(err))
			return
		}
		if appErr := req.Validate(); appErr != nil {
			RespondWithError(c, appErr)
			return
		}
		orch, err := pipeline.New(req.Apply(base), opts...)
		if err != nil {
			RespondWithError(c, err)
			return
		}

		ctx := c.Request.Context()
		sess := orch.Start(ctx)
		defer sess.Close()

		h := c.Writer.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set(HeaderRunID, sess.RunID())
		c.Status(http.StatusOK)

		for {
			r, ok, err := sess.Next(ctx)
			if err != nil {
				if ctx.Err() == nil {
					c.SSEvent(EventError, apperrors.Wrap(err).ToResponse())
				}
				break
			}
			if !ok {
				break
			}
			c.SSEvent(EventResult, r)
			c.Writer.Flush()
		}

		_ = sess.Close()
		report := sess.Report()
		if ctx.Err() != nil {
			logger.WithContext(ctx).Info("Run stream abandoned by client", logger.Fields(logger.FieldRunID, report.RunID))
			return
		}
		c.SSEvent(EventReport, report)
		c.Writer.Flush()
	}
}

func bindError(err error) *apperrors.AppError {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperrors.New(apperrors.ErrCodeInvalidInput, "Request body too large", http.StatusRequestEntityTooLarge).
			WithDetail("limit", tooLarge.Limit)
	}
	return apperrors.InvalidInput("body", err.Error())
}
