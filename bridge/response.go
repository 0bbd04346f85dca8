package bridge

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nando-os/ghost-stark/rules"
	"github.com/nando-os/ghost-stark/stark"
	"github.com/nando-os/ghost-stark/txflow"
)

// Response is the JSON envelope of every bridge reply.
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"msg"`
	Data    interface{} `json:"data"`
}

func success(c *gin.Context, data interface{}) {
	if data == nil {
		data = gin.H{}
	}

	c.JSON(http.StatusOK, Response{Code: 0, Message: "ok", Data: data})
}

func failure(c *gin.Context, err error) {
	status := statusOf(err)

	msg := stark.UserMessage(err)
	if status == http.StatusBadRequest || status == http.StatusConflict || status == http.StatusLocked {
		msg = err.Error()
	}

	c.AbortWithStatusJSON(status, Response{Code: status, Message: msg, Data: gin.H{}})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, stark.ErrInvalidAmount),
		errors.Is(err, rules.ErrInvalidRecord),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, txflow.ErrBlocked),
		errors.Is(err, stark.ErrAccountLocked):
		return http.StatusLocked
	case errors.Is(err, txflow.ErrNotStarted),
		errors.Is(err, txflow.ErrEstimationInFlight),
		errors.Is(err, txflow.ErrStaleEstimate),
		errors.Is(err, txflow.ErrStaleResult),
		errors.Is(err, txflow.ErrBusy),
		errors.Is(err, txflow.ErrSigning),
		errors.Is(err, txflow.ErrAlreadyPending):
		return http.StatusConflict
	case errors.Is(err, rules.ErrNotAuthenticated):
		return http.StatusUnauthorized
	}

	return http.StatusBadGateway
}
