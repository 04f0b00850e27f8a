package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ginjaninja78/order-report/internal/platform"
	"github.com/ginjaninja78/order-report/internal/report"
	"github.com/ginjaninja78/order-report/internal/session"
	"github.com/ginjaninja78/order-report/internal/tracker"
	"github.com/ginjaninja78/order-report/internal/workbook"
)

// errBadRequest marks malformed requests.
var errBadRequest = errors.New("bad request")

// errTooLarge marks uploads over the size limit.
var errTooLarge = errors.New("upload too large")

// userError maps an error to a status code and a message fit for the user.
// Errors outside the known kinds are internal and their text is not shown.
func userError(err error) (int, string) {
	switch {
	case errors.Is(err, platform.ErrUnrecognizedPlatform):
		return http.StatusBadRequest, "無法識別的平台: " + err.Error()
	case errors.Is(err, report.ErrNoMatchingRows):
		return http.StatusUnprocessableEntity, "所選日期沒有任何訂單"
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound, "上傳資料不存在或已過期，請重新上傳"
	case errors.Is(err, tracker.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, tracker.ErrInvalidField),
		errors.Is(err, tracker.ErrInvalidWeek),
		errors.Is(err, report.ErrUnknownFormat),
		errors.Is(err, workbook.ErrUnsupportedFormat),
		errors.Is(err, workbook.ErrNoSheets),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, errTooLarge):
		return http.StatusRequestEntityTooLarge, err.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// fail writes the user form of err and logs internal errors.
func (s *Server) fail(c *gin.Context, err error) {
	status, msg := userError(err)
	if status >= http.StatusInternalServerError {
		s.log.WithError(err).WithField("route", c.FullPath()).Error("request error")
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
