package writeback

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinscribe/clinscribe/internal/domain/audit"
	"github.com/clinscribe/clinscribe/internal/platform/apierror"
	"github.com/clinscribe/clinscribe/internal/platform/redaction"
	"github.com/clinscribe/clinscribe/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the job lifecycle under the API group and the
// dead-letter surface under the operator group, which carries operator auth.
func (h *Handler) RegisterRoutes(api, operator *echo.Group) {
	api.POST("/writeback/jobs", h.CreateJob)
	api.GET("/writeback/jobs", h.ListJobs)
	api.GET("/writeback/jobs/:jobId", h.GetJob)
	api.POST("/writeback/jobs/:jobId/transition", h.Transition)

	operator.GET("/writeback/status/summary", h.Summary)
	operator.GET("/writeback/dead-letters", h.ListDeadLetters)
	operator.GET("/writeback/dead-letters/:jobId/history", h.DeadLetterHistory)
	operator.POST("/writeback/dead-letters/:jobId/replay", h.Replay)
	operator.POST("/writeback/dead-letters/:jobId/acknowledge", h.Acknowledge)
}

type envelope struct {
	OK   bool        `json:"ok"`
	Data interface{} `json:"data"`
}

func jobParam(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("jobId"))
	if err != nil {
		return uuid.Nil, apierror.Validation("invalid jobId: %s", c.Param("jobId"))
	}
	return id, nil
}

// jobJSON is the outward job shape. Error detail is redacted on the way out;
// what is stored stays verbatim for operator-side storage queries.
func jobJSON(j *Job) map[string]interface{} {
	out := map[string]interface{}{
		"jobId":          j.JobID,
		"noteId":         j.NoteID,
		"targetSystem":   j.TargetSystem,
		"idempotencyKey": j.IdempotencyKey,
		"status":         j.Status,
		"attempts":       j.Attempts,
		"operatorStatus": j.OperatorStatus,
		"createdAt":      j.CreatedAt,
		"updatedAt":      j.UpdatedAt,
	}
	if j.LastError != nil {
		out["lastError"] = *j.LastError
	}
	if j.LastErrorDetail != nil {
		out["lastErrorDetail"] = redaction.RedactMap(j.LastErrorDetail)
	}
	if j.ReplayOfJobID != nil {
		out["replayOfJobId"] = *j.ReplayOfJobID
	}
	if j.ReplayedJobID != nil {
		out["replayedJobId"] = *j.ReplayedJobID
	}
	return out
}

func jobsJSON(jobs []*Job) []map[string]interface{} {
	out := make([]map[string]interface{}, len(jobs))
	for i, j := range jobs {
		out[i] = jobJSON(j)
	}
	return out
}

func (h *Handler) CreateJob(c echo.Context) error {
	var req CreateJobRequest
	if err := c.Bind(&req); err != nil {
		return apierror.Validation("malformed request body")
	}
	res, err := h.svc.CreateJob(c.Request().Context(), req)
	if err != nil {
		return err
	}

	status := http.StatusCreated
	if res.Idempotent {
		status = http.StatusOK
	}
	return c.JSON(status, envelope{OK: true, Data: map[string]interface{}{
		"job":        jobJSON(res.Job),
		"idempotent": res.Idempotent,
	}})
}

func (h *Handler) GetJob(c echo.Context) error {
	id, err := jobParam(c)
	if err != nil {
		return err
	}
	job, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope{OK: true, Data: jobJSON(job)})
}

func (h *Handler) ListJobs(c echo.Context) error {
	p := pagination.FromContext(c)
	f := ListFilter{
		Status: Status(c.QueryParam("status")),
		Limit:  p.Limit,
		Offset: p.Offset,
	}
	if raw := c.QueryParam("noteId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return apierror.Validation("invalid noteId: %s", raw)
		}
		f.NoteID = &id
	}

	jobs, total, err := h.svc.List(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope{
		OK:   true,
		Data: pagination.NewResponse(jobsJSON(jobs), total, p.Limit, p.Offset),
	})
}

func (h *Handler) Transition(c echo.Context) error {
	id, err := jobParam(c)
	if err != nil {
		return err
	}
	var req TransitionRequest
	if err := c.Bind(&req); err != nil {
		return apierror.Validation("malformed request body")
	}
	job, err := h.svc.Transition(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope{OK: true, Data: jobJSON(job)})
}

// deadLetterJSON is the operator listing shape. The idempotency key is
// withheld and the derived reason code is surfaced for filtering.
func deadLetterJSON(j *Job) map[string]interface{} {
	out := jobJSON(j)
	delete(out, "idempotencyKey")
	if reason := LastReasonCode(j); reason != "" {
		out["reasonCode"] = reason
	}
	return out
}

func (h *Handler) ListDeadLetters(c echo.Context) error {
	p := pagination.FromContext(c)
	jobs, err := h.svc.ListDeadLetters(c.Request().Context(), DeadLetterFilter{
		Status:     c.QueryParam("status"),
		ReasonCode: c.QueryParam("reasonCode"),
		Limit:      p.Limit,
	})
	if err != nil {
		return err
	}

	items := make([]map[string]interface{}, len(jobs))
	for i, j := range jobs {
		items[i] = deadLetterJSON(j)
	}
	return c.JSON(http.StatusOK, envelope{OK: true, Data: map[string]interface{}{
		"items": items,
		"limit": p.Limit,
	}})
}

func (h *Handler) DeadLetterHistory(c echo.Context) error {
	id, err := jobParam(c)
	if err != nil {
		return err
	}
	hist, err := h.svc.DeadLetterHistory(c.Request().Context(), id)
	if err != nil {
		return err
	}

	attempts := make([]map[string]interface{}, len(hist.AttemptHistory))
	for i, a := range hist.AttemptHistory {
		attempts[i] = map[string]interface{}{
			"attempt":    a.Attempt,
			"fromStatus": a.FromStatus,
			"toStatus":   a.ToStatus,
			"error":      a.Error,
			"occurredAt": a.OccurredAt,
		}
		if a.ErrorDetail != nil {
			attempts[i]["errorDetail"] = redaction.RedactMap(a.ErrorDetail)
		}
	}

	timeline := make([]map[string]interface{}, len(hist.Timeline))
	for i, e := range hist.Timeline {
		timeline[i] = auditEventJSON(e)
	}

	return c.JSON(http.StatusOK, envelope{OK: true, Data: map[string]interface{}{
		"job":            hist.Job,
		"reasonCode":     hist.ReasonCode,
		"replayLinkage":  hist.ReplayLinkage,
		"attemptHistory": attempts,
		"timeline":       timeline,
	}})
}

func auditEventJSON(e *audit.Event) map[string]interface{} {
	out := map[string]interface{}{
		"eventId":   e.EventID,
		"eventType": e.EventType,
		"actor":     e.Actor,
		"createdAt": e.CreatedAt,
	}
	if e.SessionID != nil {
		out["sessionId"] = *e.SessionID
	}
	if e.NoteID != nil {
		out["noteId"] = *e.NoteID
	}
	if e.Payload != nil {
		out["payload"] = redaction.RedactMap(e.Payload)
	}
	return out
}

func (h *Handler) Replay(c echo.Context) error {
	id, err := jobParam(c)
	if err != nil {
		return err
	}
	pair, err := h.svc.Replay(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, envelope{OK: true, Data: map[string]interface{}{
		"original": deadLetterJSON(pair.Original),
		"replay":   jobJSON(pair.Replay),
	}})
}

func (h *Handler) Acknowledge(c echo.Context) error {
	id, err := jobParam(c)
	if err != nil {
		return err
	}
	job, err := h.svc.Acknowledge(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope{OK: true, Data: deadLetterJSON(job)})
}

func (h *Handler) Summary(c echo.Context) error {
	sinceHours := 0
	if raw := c.QueryParam("sinceHours"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return apierror.Validation("invalid sinceHours: %s", raw)
		}
		sinceHours = n
	}

	sum, applied, err := h.svc.Summary(c.Request().Context(), sinceHours)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope{OK: true, Data: map[string]interface{}{
		"sinceHours":               applied,
		"countsByStatus":           sum.CountsByStatus,
		"deadLetterOperatorCounts": sum.DeadLetters,
		"recentFailures":           sum.RecentFailures,
	}})
}
