package server

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ginjaninja78/order-report/internal/converter"
	"github.com/ginjaninja78/order-report/internal/platform"
	"github.com/ginjaninja78/order-report/internal/report"
	"github.com/ginjaninja78/order-report/internal/session"
)

type uploadResponse struct {
	SessionID string      `json:"session_id"`
	Platform  platform.ID `json:"platform"`
	Sheet     string      `json:"sheet"`
	Rows      int         `json:"rows"`
	Dates     []string    `json:"dates"`
}

type reportRequest struct {
	Dates  []string `json:"dates"`
	Format string   `json:"format"`
}

func (s *Server) listPlatforms(c *gin.Context) {
	c.JSON(http.StatusOK, platform.All())
}

// createUpload reads a multipart export (fields "platform" and "file"),
// normalizes it and stores it as a new session.
func (s *Server) createUpload(c *gin.Context) {
	limit := s.router.MaxMultipartMemory
	// Leave room for the multipart envelope around the file.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+64<<10)
	if err := c.Request.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.fail(c, fmt.Errorf("%w: limit is %d MB", errTooLarge, s.cfg.Server.MaxUploadMB))
			return
		}
		s.fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	profile, err := platform.Lookup(c.PostForm("platform"))
	if err != nil {
		s.fail(c, err)
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		s.fail(c, fmt.Errorf("%w: missing file", errBadRequest))
		return
	}
	f, err := header.Open()
	if err != nil {
		s.fail(c, err)
		return
	}
	defer f.Close()

	upload, err := converter.Load(f, header.Filename, profile, s.rules[string(profile.ID)])
	if err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	sess := session.New(profile.ID, header.Filename, upload.Sheet, upload.Table, upload.Dates)
	if err := s.sessions.Put(sess); err != nil {
		s.fail(c, err)
		return
	}

	s.metrics.Uploads.WithLabelValues(string(profile.ID)).Inc()
	s.metrics.UploadRows.Observe(float64(upload.RawRows))
	s.updateSessionGauge()
	s.log.WithFields(logrus.Fields{
		"session_id": sess.ID,
		"platform":   profile.ID,
		"sheet":      upload.Sheet,
		"rows":       upload.RawRows,
		"dates":      len(upload.Dates),
	}).Info("export uploaded")

	c.JSON(http.StatusCreated, uploadResponse{
		SessionID: sess.ID,
		Platform:  profile.ID,
		Sheet:     upload.Sheet,
		Rows:      upload.RawRows,
		Dates:     nonNil(upload.Dates),
	})
}

func (s *Server) uploadDates(c *gin.Context) {
	sess, err := s.sessions.Get(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id": sess.ID,
		"platform":   sess.Platform,
		"dates":      nonNil(sess.Dates),
	})
}

// buildReport renders the report of the selected dates of a session.
// The format comes from the body or the "format" query parameter.
func (s *Server) buildReport(c *gin.Context) {
	var req reportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	if req.Format == "" {
		req.Format = c.Query("format")
	}
	format, err := report.ParseFormat(req.Format)
	if err != nil {
		s.fail(c, err)
		return
	}

	sess, err := s.sessions.Get(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	profile, err := platform.Lookup(string(sess.Platform))
	if err != nil {
		s.fail(c, err)
		return
	}

	start := time.Now()
	out, err := converter.Generate(sess.Table, req.Dates, profile, format)
	if err != nil {
		reason := "error"
		if errors.Is(err, report.ErrNoMatchingRows) {
			reason = "no_matching_rows"
		}
		s.metrics.ReportFailures.WithLabelValues(reason).Inc()
		s.fail(c, err)
		return
	}
	s.metrics.Reports.WithLabelValues(string(profile.ID), string(format)).Inc()
	s.metrics.ReportSeconds.Observe(time.Since(start).Seconds())

	s.log.WithFields(logrus.Fields{
		"session_id": sess.ID,
		"platform":   profile.ID,
		"dates":      req.Dates,
		"rows":       out.Report.OrderCount(),
	}).Info("report built")

	if format == report.FormatXLSX {
		name := out.Report.Title() + "." + format.Ext()
		c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.PathEscape(name))
	}
	c.Data(http.StatusOK, format.ContentType(), out.Body)
}

func (s *Server) deleteUpload(c *gin.Context) {
	if err := s.sessions.Delete(c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	s.updateSessionGauge()
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func nonNil(dates []string) []string {
	if dates == nil {
		return []string{}
	}
	return dates
}
