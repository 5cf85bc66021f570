package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/bar-booking/services"
	"github.com/yeremiapane/bar-booking/utils"
)

var kindStatus = map[services.Kind]int{
	services.KindValidation: http.StatusBadRequest,
	services.KindNotFound:   http.StatusNotFound,
	services.KindConflict:   http.StatusConflict,
	services.KindState:      http.StatusUnprocessableEntity,
	services.KindStore:      http.StatusServiceUnavailable,
}

// respondServiceError maps a service error to its HTTP status. Anything that
// is not a service error is reported as a plain 500.
func respondServiceError(c *gin.Context, err error) {
	e, ok := services.AsError(err)
	if !ok {
		utils.ErrorLogger.WithError(err).WithField("path", c.FullPath()).Error("unhandled error")
		utils.RespondError(c, http.StatusInternalServerError, errors.New("internal server error"))
		return
	}
	status, ok := kindStatus[e.Kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	if e.Kind == services.KindStore {
		utils.RespondErrorDetail(c, status, e.Code, "", "service temporarily unavailable, please retry")
		return
	}
	utils.RespondErrorDetail(c, status, e.Code, e.Field, e.Message)
}

// paramID reads a positive numeric path parameter, answering 400 otherwise.
func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		utils.RespondErrorDetail(c, http.StatusBadRequest, "invalid_input", name, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

func bindError(c *gin.Context, err error) {
	utils.RespondErrorDetail(c, http.StatusBadRequest, "invalid_input", "", err.Error())
}
