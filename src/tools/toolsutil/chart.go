package toolsutil

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/afero"

	"github.com/elee1766/dataagent/src/charts"
	"github.com/elee1766/dataagent/src/datastore"
)

var ErrNoRows = errors.New("query returned no rows")

// ChartEnv is what every chart tool needs: the scratch store it reads from
// and the filesystem it writes images to.
type ChartEnv struct {
	Fs       afero.Fs
	Scratch  *datastore.Scratch
	ImageDir string
}

// Load runs sqlQuery against the session's scratch table and checks that
// every named column is present.
func (e *ChartEnv) Load(ctx context.Context, sqlQuery string, columns ...string) (*datastore.ResultSet, error) {
	if e.Scratch == nil {
		return nil, fmt.Errorf("%w: no scratch store configured", ErrInvalidParams)
	}
	for _, c := range columns {
		if c == "" {
			return nil, fmt.Errorf("%w: column names must not be empty", ErrInvalidParams)
		}
	}

	table := e.Scratch.TableFor(SessionFrom(ctx))
	rs, err := e.Scratch.Query(ctx, table, sqlQuery)
	if err != nil {
		return nil, err
	}
	if missing := rs.MissingColumns(columns...); len(missing) > 0 {
		return nil, MissingColumnsError(missing, rs.Columns)
	}
	if rs.Len() == 0 {
		return nil, ErrNoRows
	}
	return rs, nil
}

// Save writes a rendered chart. An empty dir means the configured image dir.
func (e *ChartEnv) Save(dir, filename string, png []byte) (string, error) {
	if dir == "" {
		dir = e.ImageDir
	}
	if !IsPathSafe(dir) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, dir)
	}
	path, err := charts.WritePNG(e.Fs, dir, filename, png)
	if err != nil {
		return "", err
	}
	logger.Info("chart saved", "path", path, "size", FormatBytes(int64(len(png))))
	return path, nil
}
