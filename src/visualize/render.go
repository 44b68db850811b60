package visualize

import (
	"errors"
	"fmt"
	"sort"

	"github.com/elee1766/dataagent/src/charts"
	"github.com/elee1766/dataagent/src/datastore"
)

// render draws the suggested chart from every row of rs.
func render(rs *datastore.ResultSet, s *Suggestion) ([]byte, error) {
	var (
		png []byte
		err error
	)
	switch s.Kind() {
	case charts.TypeBar:
		labels, values, serr := charts.Series(s.YAxis, rs.Column(s.XAxis), rs.Column(s.YAxis))
		if serr != nil {
			return nil, badRequest("cannot plot the suggested columns", serr)
		}
		png, err = charts.RenderBar(charts.BarSpec{
			Title:  s.Title,
			XLabel: s.XAxis,
			YLabel: s.YAxis,
			Labels: labels,
			Values: values,
		})
	case charts.TypeLine, charts.TypeScatter:
		spec, serr := xySpec(rs, s)
		if serr != nil {
			return nil, serr
		}
		png, err = charts.RenderLine(spec)
	default:
		return nil, badRequest("unsupported chart type", nil)
	}
	if err != nil {
		if errors.Is(err, charts.ErrNoData) {
			return nil, badRequest("nothing to plot", err)
		}
		return nil, internal("failed to render chart", err)
	}
	return png, nil
}

// xySpec pairs x and y per row, skipping rows where either is null. A fully
// numeric x column is plotted by value, anything else by position.
func xySpec(rs *datastore.ResultSet, s *Suggestion) (charts.LineSpec, error) {
	spec := charts.LineSpec{
		Title:   s.Title,
		XLabel:  s.XAxis,
		YLabel:  s.YAxis,
		Scatter: s.Kind() == charts.TypeScatter,
	}

	var (
		labels  []string
		xs, ys  []float64
		numeric = true
	)
	for i, row := range rs.Rows {
		x, y := row[s.XAxis], row[s.YAxis]
		if x == nil || y == nil {
			continue
		}
		yv, ok := charts.ToFloat(y)
		if !ok {
			return spec, badRequest("cannot plot the suggested columns", fmt.Errorf("column %q has a non-numeric value %q at row %d", s.YAxis, charts.Label(y), i))
		}
		if xv, ok := charts.ToFloat(x); ok && numeric {
			xs = append(xs, xv)
		} else {
			numeric = false
		}
		labels = append(labels, charts.Label(x))
		ys = append(ys, yv)
	}

	spec.XLabels = labels
	if numeric {
		if !spec.Scatter {
			sortByX(xs, ys)
		}
		spec.XValues = xs
	}
	spec.Series = []charts.LineSeries{{Name: s.YAxis, Values: ys}}
	return spec, nil
}

type byX struct{ xs, ys []float64 }

func (b byX) Len() int           { return len(b.xs) }
func (b byX) Less(i, j int) bool { return b.xs[i] < b.xs[j] }
func (b byX) Swap(i, j int) {
	b.xs[i], b.xs[j] = b.xs[j], b.xs[i]
	b.ys[i], b.ys[j] = b.ys[j], b.ys[i]
}

func sortByX(xs, ys []float64) {
	sort.Stable(byX{xs: xs, ys: ys})
}
