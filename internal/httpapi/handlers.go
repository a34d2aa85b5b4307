package httpapi

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"nathanbeddoewebdev/payq/internal/actionqueue"
	"nathanbeddoewebdev/payq/internal/auditlog"
	"nathanbeddoewebdev/payq/internal/util"
)

const maxEventSize = 64 << 10 // 64KB

// eventRequest is the body of an order event. Both fields are optional:
// an empty body only asks for the order to be processed.
type eventRequest struct {
	Transition string            `json:"transition"`
	Data       map[string]string `json:"data"`
}

type actionView struct {
	Kind        actionqueue.Kind  `json:"kind"`
	CreatedAt   time.Time         `json:"created_at"`
	FailedCount int               `json:"failed_count"`
	FailedAt    *time.Time        `json:"failed_at,omitempty"`
	ProcessedAt *time.Time        `json:"processed_at,omitempty"`
	NextAttempt *time.Time        `json:"next_attempt,omitempty"`
	Broken      bool              `json:"broken"`
	Data        map[string]string `json:"data,omitempty"`
}

type orderView struct {
	Ref           string       `json:"ref"`
	PaymentMethod string       `json:"payment_method"`
	Status        string       `json:"status"`
	Pending       []actionView `json:"pending"`
	Done          []actionView `json:"done"`
}

func errorJSON(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(code, gin.H{"error": msg})
}

func (s *Server) orderRef(c *gin.Context) (string, bool) {
	ref := c.Param("ref")
	if err := util.ValidateOrderRef(ref); err != nil {
		errorJSON(c, http.StatusBadRequest, err.Error())
		return "", false
	}
	return ref, true
}

func (s *Server) handleEvent(c *gin.Context) {
	ref, ok := s.orderRef(c)
	if !ok {
		return
	}

	var req eventRequest
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxEventSize)
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		errorJSON(c, http.StatusBadRequest, "invalid event body: "+err.Error())
		return
	}

	ctx := auditlog.WithMetadata(c.Request.Context(), auditlog.Metadata{
		Trigger:  auditlog.TriggerEvent,
		OrderRef: ref,
	})

	if _, err := s.orders.GetOrder(ctx, ref); err != nil {
		if errors.Is(err, actionqueue.ErrOrderNotFound) {
			errorJSON(c, http.StatusNotFound, "order not found")
			return
		}
		s.logger.Printf("httpapi: order=%s: %v", ref, err)
		errorJSON(c, http.StatusInternalServerError, "failed to load order")
		return
	}

	resp := gin.H{"order": ref}
	if req.Transition != "" {
		kind, err := actionqueue.ParseKind(req.Transition)
		if err != nil {
			errorJSON(c, http.StatusBadRequest, err.Error())
			return
		}
		queued, err := s.queue.Enqueue(ctx, ref, kind, req.Data)
		switch {
		case errors.Is(err, actionqueue.ErrOrderBusy):
			errorJSON(c, http.StatusConflict, "order is being processed, retry later")
			return
		case err != nil:
			s.logger.Printf("httpapi: enqueue order=%s kind=%s: %v", ref, kind, err)
			errorJSON(c, http.StatusInternalServerError, "failed to enqueue action")
			return
		case !queued:
			// Another payment method; nothing for this integration to do.
			c.JSON(http.StatusOK, gin.H{"order": ref, "queued": false, "reason": "not applicable"})
			return
		}
		resp["queued"] = kind
	}

	resp["triggered"] = s.sched.Trigger(ref)
	c.JSON(http.StatusAccepted, resp)
}

func (s *Server) handleGetOrder(c *gin.Context) {
	ref, ok := s.orderRef(c)
	if !ok {
		return
	}
	order, err := s.orders.GetOrder(c.Request.Context(), ref)
	if err != nil {
		if errors.Is(err, actionqueue.ErrOrderNotFound) {
			errorJSON(c, http.StatusNotFound, "order not found")
			return
		}
		s.logger.Printf("httpapi: order=%s: %v", ref, err)
		errorJSON(c, http.StatusInternalServerError, "failed to load order")
		return
	}

	view := orderView{
		Ref:           order.Ref,
		PaymentMethod: order.PaymentMethod,
		Status:        order.Status,
		Pending:       make([]actionView, 0, len(order.Pending)),
		Done:          make([]actionView, 0, len(order.Done)),
	}
	for _, r := range order.Pending {
		v := s.actionView(r)
		v.Broken = s.queue.IsBroken(r)
		if r.FailedAt != nil && !v.Broken {
			next := s.queue.NextAttempt(ref, r)
			v.NextAttempt = &next
		}
		view.Pending = append(view.Pending, v)
	}
	for _, r := range order.Done {
		view.Done = append(view.Done, s.actionView(r))
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) actionView(r actionqueue.ActionRecord) actionView {
	return actionView{
		Kind:        r.Kind,
		CreatedAt:   r.CreatedAt,
		FailedCount: r.FailedCount,
		FailedAt:    r.FailedAt,
		ProcessedAt: r.ProcessedAt,
		Data:        r.Data,
	}
}

func (s *Server) handleSweep(c *gin.Context) {
	c.JSON(http.StatusAccepted, gin.H{"accepted": s.sched.SweepNow()})
}

func (s *Server) handleHealth(c *gin.Context) {
	st := s.sched.Status()
	code := http.StatusOK
	status := "ok"
	if !st.Running {
		code = http.StatusServiceUnavailable
		status = "stopped"
	}
	c.JSON(code, gin.H{
		"status":         status,
		"payment_method": s.queue.Config().PaymentMethod,
		"scheduler":      st,
	})
}
