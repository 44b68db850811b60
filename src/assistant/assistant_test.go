package assistant

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	jsonschema "github.com/swaggest/jsonschema-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elee1766/dataagent/src/agent"
	"github.com/elee1766/dataagent/src/aisdk"
)

func ptr[T any](v T) *T {
	return &v
}

func TestFormatSchema(t *testing.T) {
	tests := []struct {
		name     string
		schema   *jsonschema.Schema
		expected []string
	}{
		{
			name: "simple string schema",
			schema: &jsonschema.Schema{
				Type:        &jsonschema.Type{SimpleTypes: ptr(jsonschema.SimpleType("string"))},
				Description: ptr("A simple string field"),
			},
			expected: []string{"# A simple string field", "string"},
		},
		{
			name: "object with properties",
			schema: &jsonschema.Schema{
				Type: &jsonschema.Type{SimpleTypes: ptr(jsonschema.SimpleType("object"))},
				Properties: map[string]jsonschema.SchemaOrBool{
					"query": {TypeObject: &jsonschema.Schema{
						Type:        &jsonschema.Type{SimpleTypes: ptr(jsonschema.SimpleType("string"))},
						Description: ptr("The SQL query"),
					}},
					"limit": {TypeObject: &jsonschema.Schema{
						Type: &jsonschema.Type{SimpleTypes: ptr(jsonschema.SimpleType("integer"))},
					}},
				},
				Required: []string{"query"},
			},
			expected: []string{"object (required: query)", "query: string # The SQL query", "limit: integer"},
		},
		{
			name: "array with items",
			schema: &jsonschema.Schema{
				Type: &jsonschema.Type{SimpleTypes: ptr(jsonschema.SimpleType("array"))},
				Items: &jsonschema.Items{SchemaOrBool: &jsonschema.SchemaOrBool{
					TypeObject: &jsonschema.Schema{Type: &jsonschema.Type{SimpleTypes: ptr(jsonschema.SimpleType("string"))}},
				}},
			},
			expected: []string{"array", "items: string"},
		},
		{
			name: "enum field",
			schema: &jsonschema.Schema{
				Type: &jsonschema.Type{SimpleTypes: ptr(jsonschema.SimpleType("string"))},
				Enum: []interface{}{"bar", "line"},
			},
			expected: []string{`string (enum: "bar" | "line")`},
		},
		{
			name:     "nil schema",
			expected: []string{"unknown"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := formatSchema(tt.schema, 0)
			for _, expected := range tt.expected {
				assert.Contains(t, result, expected)
			}
		})
	}
}

func TestFormatSchemaSortsProperties(t *testing.T) {
	s := &jsonschema.Schema{Properties: map[string]jsonschema.SchemaOrBool{
		"b": {TypeObject: &jsonschema.Schema{}},
		"a": {TypeObject: &jsonschema.Schema{}},
	}}
	out := formatSchema(s, 0)
	assert.Less(t, strings.Index(out, "a: object"), strings.Index(out, "b: object"))
}

type lookupInput struct {
	Keyword string `json:"keyword" required:"true" description:"Keyword to look up"`
}

func testToolbox(t *testing.T) *agent.DefaultToolbox {
	t.Helper()
	tb := agent.NewToolbox[agent.Tool]()
	require.NoError(t, tb.RegisterTool(agent.MustNewGenericTool("lookup", "Looks up a keyword",
		func(ctx context.Context, in lookupInput) (map[string]any, error) { return nil, nil })))
	return tb
}

func TestFormatTools(t *testing.T) {
	assert.Equal(t, "No tools available.", FormatTools(nil))

	out := FormatTools(testToolbox(t).Tools())
	for _, expected := range []string{
		"You have access to the following tools:",
		"Tool: lookup",
		"Description: Looks up a keyword",
		"keyword: string # Keyword to look up",
	} {
		assert.Contains(t, out, expected)
	}
}

func TestInstructions(t *testing.T) {
	out := Instructions(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	for _, expected := range []string{
		"mini_retrieve_similar_keywords",
		"above 0.6",
		"Exclude the word 'pengadaan'",
		"Call one tool at a time",
		"INSERT, UPDATE, DELETE or DROP",
		"Today's date: 2024-03-01",
	} {
		assert.Contains(t, out, expected)
	}
}

type fakeManager struct {
	got *aisdk.Assistant
	id  string
	err error
}

func (f *fakeManager) CreateAssistant(_ context.Context, a *aisdk.Assistant) (*aisdk.Assistant, error) {
	f.got = a
	if f.err != nil {
		return nil, f.err
	}
	out := *a
	out.ID = f.id
	return &out, nil
}

func TestDefinitionAndDeploy(t *testing.T) {
	def, err := Definition(Options{}, testToolbox(t))
	require.NoError(t, err)
	assert.Equal(t, DefaultName, def.Name)
	assert.Equal(t, DefaultModel, def.Model)
	require.Len(t, def.Tools, 1)
	assert.Equal(t, "lookup", def.Tools[0].Function.Name)

	mgr := &fakeManager{id: "asst_1"}
	created, err := Deploy(context.Background(), mgr, def, nil)
	require.NoError(t, err)
	assert.Equal(t, "asst_1", created.ID)
	assert.Same(t, def, mgr.got)

	_, err = Deploy(context.Background(), &fakeManager{}, def, nil)
	assert.ErrorContains(t, err, "without an id")

	_, err = Deploy(context.Background(), &fakeManager{err: errors.New("401")}, def, nil)
	assert.ErrorContains(t, err, "failed to create assistant")
}

func TestDefinitionRequiresTools(t *testing.T) {
	_, err := Definition(Options{}, nil)
	assert.Error(t, err)

	_, err = Definition(Options{}, agent.NewToolbox[agent.Tool]())
	assert.Error(t, err)
}
