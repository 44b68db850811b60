// Package visualize turns one request into SQL, a chart and a textual
// insight about the rendered image.
package visualize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/afero"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/elee1766/dataagent/src/aisdk"
	"github.com/elee1766/dataagent/src/charts"
	"github.com/elee1766/dataagent/src/datastore"
	"github.com/elee1766/dataagent/src/sqlguard"
)

const (
	DefaultCompletionModel = "gpt-4o-mini"
	DefaultVisionModel     = "gpt-4o-mini"

	sampleRows = 5
)

var tracer = otel.Tracer("github.com/elee1766/dataagent/src/visualize")

// Request carries either a natural-language request or a ready SQL query.
type Request struct {
	UserRequest string `json:"user_request"`
	SQLQuery    string `json:"sql_query"`
}

// Result is the pipeline output.
type Result struct {
	ImageFilePath string      `json:"image_file_path"`
	Insights      string      `json:"insights"`
	SQLQuery      string      `json:"sql_query"`
	Suggestion    *Suggestion `json:"suggestion"`
}

// Config wires a Pipeline.
type Config struct {
	Primary         *datastore.Primary
	Completer       aisdk.Completer
	Fs              afero.Fs
	ImageDir        string
	CompletionModel string
	VisionModel     string
	Logger          *slog.Logger
	// Now names the image file; defaults to time.Now.
	Now func() time.Time
}

type Pipeline struct {
	cfg    Config
	logger *slog.Logger
}

func New(cfg Config) *Pipeline {
	if cfg.CompletionModel == "" {
		cfg.CompletionModel = DefaultCompletionModel
	}
	if cfg.VisionModel == "" {
		cfg.VisionModel = DefaultVisionModel
	}
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	if cfg.ImageDir == "" {
		cfg.ImageDir = "images"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{cfg: cfg, logger: logger.With("component", "visualize")}
}

// Run executes the pipeline. Failures are *Error values carrying a status.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	ctx, span := tracer.Start(ctx, "visualize.Run")
	defer span.End()

	userRequest := strings.TrimSpace(req.UserRequest)
	query := strings.TrimSpace(req.SQLQuery)
	if userRequest == "" && query == "" {
		return nil, badRequest("no user request provided", nil)
	}

	if query == "" {
		generated, err := p.generateSQL(ctx, userRequest)
		if err != nil {
			return nil, err
		}
		query = generated
	}

	query, err := sqlguard.Validate(query)
	if err != nil {
		return nil, badRequest("generated SQL query is not safe", err)
	}
	span.SetAttributes(attribute.String("sql.query", query))
	p.logger.Debug("executing query", "sql", query)

	rs, err := p.cfg.Primary.Query(ctx, query)
	if err != nil {
		return nil, badRequest("query failed", err)
	}
	if rs.Len() == 0 {
		return nil, badRequest("the query returned no data", nil)
	}

	suggestion, err := p.suggest(ctx, rs, query)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("chart.type", suggestion.Kind()))

	png, err := render(rs, suggestion)
	if err != nil {
		return nil, err
	}

	name := fmt.Sprintf("visualization_%s.png", p.cfg.Now().Format("20060102_150405"))
	path, err := charts.WritePNG(p.cfg.Fs, p.cfg.ImageDir, name, png)
	if err != nil {
		return nil, internal("failed to save chart", err)
	}

	insights, err := p.insight(ctx, png, suggestion)
	if err != nil {
		return nil, err
	}

	p.logger.Info("visualization created", "path", path, "chart_type", suggestion.Kind(), "rows", rs.Len())
	return &Result{
		ImageFilePath: path,
		Insights:      insights,
		SQLQuery:      query,
		Suggestion:    suggestion,
	}, nil
}

func (p *Pipeline) complete(ctx context.Context, step string, req *aisdk.ChatCompletionRequest) (string, error) {
	ctx, span := tracer.Start(ctx, "visualize."+step, trace.WithAttributes(attribute.String("model", req.Model)))
	defer span.End()

	resp, err := p.cfg.Completer.CreateChatCompletion(ctx, req)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	return strings.TrimSpace(resp.FirstContent()), nil
}

func (p *Pipeline) generateSQL(ctx context.Context, userRequest string) (string, error) {
	schema, err := p.cfg.Primary.SchemaText(ctx)
	if err != nil {
		return "", internal("failed to read schema", err)
	}

	temperature := 0.0
	maxTokens := 150
	content, err := p.complete(ctx, "sql", &aisdk.ChatCompletionRequest{
		Model: p.cfg.CompletionModel,
		Messages: []*aisdk.Message{
			{Role: "system", Content: sqlSystemPrompt},
			{Role: "user", Content: sqlPrompt(userRequest, schema)},
		},
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
		Stop:        []string{"#"},
	})
	if err != nil {
		return "", internal("failed to generate SQL query", err)
	}
	query := sqlguard.Clean(content)
	if query == "" {
		return "", internal("failed to generate SQL query", errors.New("empty completion"))
	}
	return query, nil
}

func (p *Pipeline) suggest(ctx context.Context, rs *datastore.ResultSet, query string) (*Suggestion, error) {
	sample := &datastore.ResultSet{Columns: rs.Columns, Rows: rs.Head(sampleRows)}

	temperature := 0.0
	maxTokens := 150
	content, err := p.complete(ctx, "suggest", &aisdk.ChatCompletionRequest{
		Model: p.cfg.CompletionModel,
		Messages: []*aisdk.Message{
			{Role: "system", Content: suggestSystemPrompt},
			{Role: "user", Content: suggestPrompt(sample, query)},
		},
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		return nil, internal("failed to get visualization type", err)
	}

	s, ok := ParseSuggestion(content)
	if !ok {
		return nil, badRequest("could not determine visualization type", nil)
	}
	if !s.Complete() || s.Kind() == "" {
		return nil, badRequest("unsupported chart type or missing information", fmt.Errorf("chart_type %q, x_axis %q, y_axis %q", s.ChartType, s.XAxis, s.YAxis))
	}
	if missing := rs.MissingColumns(s.XAxis, s.YAxis); len(missing) > 0 {
		return nil, badRequest("suggested columns are not in the result", fmt.Errorf("missing %s", strings.Join(missing, ", ")))
	}
	return s, nil
}

func (p *Pipeline) insight(ctx context.Context, png []byte, s *Suggestion) (string, error) {
	maxTokens := 300
	content, err := p.complete(ctx, "insight", &aisdk.ChatCompletionRequest{
		Model: p.cfg.VisionModel,
		Messages: []*aisdk.Message{{
			Role: "user",
			Parts: []aisdk.ContentPart{
				aisdk.NewTextPart(insightPrompt(s)),
				aisdk.NewImageDataPart("image/png", png),
			},
		}},
		MaxTokens: &maxTokens,
	})
	if err != nil {
		return "", internal("could not get insights from image", err)
	}
	return content, nil
}
