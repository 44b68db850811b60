package server

import (
	"errors"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v5"
	"github.com/spf13/afero"
)

// handleImage serves rendered charts from the image directory. The cleaned
// path is rooted so it cannot leave the directory.
func (s *Server) handleImage(c *echo.Context) error {
	name := strings.TrimPrefix(path.Clean("/"+c.Param("*")), "/")
	if name == "" {
		return c.JSON(http.StatusNotFound, errorResponse{Error: "image not found"})
	}

	full := filepath.Join(s.cfg.ImageDir, filepath.FromSlash(name))
	info, err := s.cfg.Fs.Stat(full)
	if err != nil || info.IsDir() {
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return s.fail(c, err)
		}
		return c.JSON(http.StatusNotFound, errorResponse{Error: "image not found"})
	}
	data, err := afero.ReadFile(s.cfg.Fs, full)
	if err != nil {
		return s.fail(c, err)
	}

	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Response().Header().Set("Cache-Control", "no-cache")
	return c.Blob(http.StatusOK, contentType, data)
}
