package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/shirou/gopsutil/v3/host"
)

type healthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version,omitempty"`
	Uptime   string `json:"uptime"`
	Platform string `json:"platform,omitempty"`
	OS       string `json:"os,omitempty"`
	Kernel   string `json:"kernel,omitempty"`
}

func (s *Server) handleHealth(c *echo.Context) error {
	resp := healthResponse{
		Status:  "ok",
		Version: s.cfg.Version,
		Uptime:  time.Since(s.started).Round(time.Second).String(),
	}
	if info, err := host.InfoWithContext(c.Request().Context()); err == nil {
		resp.Platform = info.Platform + " " + info.PlatformVersion
		resp.OS = info.OS
		resp.Kernel = info.KernelVersion
	} else {
		s.logger.Debug("host info unavailable", "error", err)
	}
	return c.JSON(http.StatusOK, resp)
}
