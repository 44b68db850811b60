package tool_schemacheck

import (
	"context"
	"fmt"

	"github.com/elee1766/dataagent/src/agent"
	"github.com/elee1766/dataagent/src/datastore"
	"github.com/elee1766/dataagent/src/tools/toolsutil"
)

const Name = "schema_check"

const schemaCheckPrompt = `Returns the schema of the main database: every table with its columns, their types, whether they are nullable and whether they are part of the primary key. Use it before writing SQL so that table and column names are exact.`

type SchemaCheckInput struct{}

type SchemaCheckOutput struct {
	Schema datastore.Schema `json:"schema" description:"Columns of each table, keyed by table name"`
}

func makeSchemaCheckHandler(primary *datastore.Primary) func(context.Context, SchemaCheckInput) (SchemaCheckOutput, error) {
	return func(ctx context.Context, _ SchemaCheckInput) (SchemaCheckOutput, error) {
		logger := toolsutil.GetLogger()

		schema, err := primary.Schema(ctx)
		if err != nil {
			logger.Error("schema introspection failed", "error", err)
			return SchemaCheckOutput{}, fmt.Errorf("failed to read schema: %w", err)
		}

		logger.Info("schema read", "tables", len(schema))
		return SchemaCheckOutput{Schema: schema}, nil
	}
}

// Tool returns the schema_check tool definition using GenericTool
func Tool(primary *datastore.Primary) (agent.Tool, error) {
	return agent.NewGenericTool(Name, schemaCheckPrompt, makeSchemaCheckHandler(primary))
}
