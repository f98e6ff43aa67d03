package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"yard-occupancy-backend/internal/ledger"
	"yard-occupancy-backend/internal/logging"
)

const (
	codeInvalidRequest = "invalid_request"
	codeValidation     = "validation_error"
	codeNotFound       = "not_found"
	codeNothingToClear = "nothing_to_clear"
	codeAlreadyExists  = "already_exists"
	codeNoFreeResource = "no_free_resource"
	codeConflict       = "conflict"
	codeAborted        = "request_aborted"
	codeInternal       = "internal_error"
)

func respondOK(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, gin.H{"message": message, "data": data})
}

func respondCode(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"code": code, "error": message})
}

// respondError maps ledger errors to status codes. Only validation messages are
// echoed back; everything else gets a fixed message and the detail goes to the log.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ledger.ErrValidation):
		respondCode(c, http.StatusBadRequest, codeValidation, validationMessage(err))
	case errors.Is(err, ledger.ErrNotFound):
		respondCode(c, http.StatusNotFound, codeNotFound, "ledger not found")
	case errors.Is(err, ledger.ErrAlreadyExists):
		respondCode(c, http.StatusConflict, codeAlreadyExists, "ledger already exists")
	case errors.Is(err, ledger.ErrNoFreeResource):
		respondCode(c, http.StatusConflict, codeNoFreeResource, "no resource available for assignment")
	case errors.Is(err, ledger.ErrConflict):
		logging.Warnf(c.Request.Context(), "ledger write gave up: %v", err)
		respondCode(c, http.StatusConflict, codeConflict, "ledger is busy, retry the request")
	case errors.Is(err, ledger.ErrAborted):
		logging.Warnf(c.Request.Context(), "ledger operation abandoned: %v", err)
		respondCode(c, http.StatusServiceUnavailable, codeAborted, "request aborted")
	default:
		logging.Errorf(c.Request.Context(), "ledger operation failed: %v", err)
		respondCode(c, http.StatusInternalServerError, codeInternal, "internal error")
	}
}

func validationMessage(err error) string {
	return strings.TrimPrefix(err.Error(), ledger.ErrValidation.Error()+": ")
}
