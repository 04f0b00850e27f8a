package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ginjaninja78/order-report/internal/tracker"
)

type logEntryRequest struct {
	Content string  `json:"content"`
	TaskID  *string `json:"task_id"`
}

// bindPatch reads an optional JSON object body. An empty body is an empty
// patch.
func bindPatch(c *gin.Context) (tracker.Patch, error) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	patch := tracker.Patch{}
	if strings.TrimSpace(string(raw)) == "" {
		return patch, nil
	}
	if err := json.Unmarshal(raw, &patch); err != nil {
		return nil, fmt.Errorf("%w: body must be a JSON object", errBadRequest)
	}
	return patch, nil
}

func (s *Server) trackerData(c *gin.Context) {
	data, err := s.tracker.Data()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

func (s *Server) trackerSummary(c *gin.Context) {
	sum, err := s.tracker.Summary()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

// weeklyReport serves the report of the week holding ?week=YYYY-MM-DD,
// the current week by default.
func (s *Server) weeklyReport(c *gin.Context) {
	rep, err := s.tracker.WeeklyReport(c.Query("week"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

func (s *Server) createProject(c *gin.Context) {
	patch, err := bindPatch(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	p, err := s.tracker.CreateProject(patch)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (s *Server) updateProject(c *gin.Context) {
	patch, err := bindPatch(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	p, err := s.tracker.UpdateProject(c.Param("id"), patch)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) deleteProject(c *gin.Context) {
	if err := s.tracker.DeleteProject(c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// createTask adds a task to the project named by :id.
func (s *Server) createTask(c *gin.Context) {
	patch, err := bindPatch(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	t, err := s.tracker.CreateTask(c.Param("id"), patch)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (s *Server) updateTask(c *gin.Context) {
	patch, err := bindPatch(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	t, err := s.tracker.UpdateTask(c.Param("id"), patch)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) deleteTask(c *gin.Context) {
	if err := s.tracker.DeleteTask(c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) addLogEntry(c *gin.Context) {
	var req logEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	entry, err := s.tracker.AddLogEntry(req.Content, req.TaskID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}
