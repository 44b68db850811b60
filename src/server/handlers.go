package server

import (
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v5"
	"github.com/lithammer/shortuuid/v4"

	"github.com/elee1766/dataagent/src/rundriver"
	"github.com/elee1766/dataagent/src/tools/toolsutil"
	"github.com/elee1766/dataagent/src/visualize"
)

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

type chartInfo struct {
	rundriver.ChartInfo
	ImageURL string `json:"image_url,omitempty"`
}

type chatResponse struct {
	Response   string           `json:"response"`
	SessionID  string           `json:"session_id"`
	Data       []map[string]any `json:"data,omitempty"`
	ChartsInfo []chartInfo      `json:"charts_info,omitempty"`
}

type newThreadResponse struct {
	SessionID string `json:"session_id"`
}

type visualizeResponse struct {
	*visualize.Result
	ImageURL string `json:"image_url,omitempty"`
}

func newSessionID() string {
	return shortuuid.New()
}

// handleChat drives one turn. Turns of the same session run one at a time so
// they never share a thread run or the session's intermediary table.
func (s *Server) handleChat(c *echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return s.fail(c, badRequest("invalid request body"))
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return s.fail(c, badRequest("no message provided"))
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = toolsutil.DefaultSession
	}

	unlock := s.locks.Lock(sessionID)
	defer unlock()

	ctx := toolsutil.WithSession(c.Request().Context(), sessionID)
	threadID, created, err := s.cfg.Sessions.ResolveOrCreate(ctx, sessionID)
	if err != nil {
		return s.fail(c, err)
	}
	if created {
		s.logger.Info("new conversation", "session", sessionID, "thread", threadID)
	}

	res, err := s.cfg.Turner.Turn(ctx, threadID, s.cfg.AssistantID, message)
	if err != nil {
		return s.fail(c, err)
	}

	resp := chatResponse{Response: res.Response, SessionID: sessionID}
	if res.Rows != nil && res.Rows.Len() > 0 {
		resp.Data = res.Rows.Records()
	}
	for _, ci := range res.Charts {
		resp.ChartsInfo = append(resp.ChartsInfo, chartInfo{ChartInfo: ci, ImageURL: s.imageURL(ci.ImagePath)})
	}
	return c.JSON(http.StatusOK, resp)
}

// handleNewThread hands out a fresh session id. Its thread is created on the
// first chat message.
func (s *Server) handleNewThread(c *echo.Context) error {
	return c.JSON(http.StatusOK, newThreadResponse{SessionID: s.cfg.NewSessionID()})
}

func (s *Server) handleVisualize(c *echo.Context) error {
	if s.cfg.Visualizer == nil {
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "visualization is not configured"})
	}
	var req visualize.Request
	if err := c.Bind(&req); err != nil {
		return s.fail(c, badRequest("invalid request body"))
	}
	res, err := s.cfg.Visualizer.Run(c.Request().Context(), req)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, visualizeResponse{Result: res, ImageURL: s.imageURL(res.ImageFilePath)})
}

// imageURL maps a file under the image directory to its served URL.
func (s *Server) imageURL(file string) string {
	if file == "" {
		return ""
	}
	rel, err := filepath.Rel(s.cfg.ImageDir, file)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return ""
	}
	return path.Join(s.cfg.ImageURLPrefix, filepath.ToSlash(rel))
}
