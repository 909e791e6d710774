package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/perkflow/perkflow/pkg/apperr"
	"github.com/perkflow/perkflow/pkg/response"
)

// respondError maps an application error onto the HTTP status and envelope
// code. Conflict details (current plan, period end) ride along as data so
// clients can render the blocking subscription.
func respondError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)

	var ae *apperr.Error
	if !errors.As(err, &ae) {
		c.JSON(status, response.ErrorT[any](response.APIResponseCodeError, nil))
		return
	}

	code := response.APIResponseCodeError
	switch ae.Kind {
	case apperr.KindConflict:
		code = response.APIResponseCodeConflict
	case apperr.KindNotFound:
		code = response.APIResponseCodeNotFound
	case apperr.KindValidation, apperr.KindProvider, apperr.KindVerification:
		code = response.APIResponseCodeBadRequest
	}

	var data any
	if len(ae.Details) > 0 {
		data = ae.Details
	}
	c.JSON(status, response.ErrorMsg(code, ae.Message, data))
}
