package tool_querydata

import (
	"context"
	"fmt"

	"github.com/elee1766/dataagent/src/agent"
	"github.com/elee1766/dataagent/src/datastore"
	"github.com/elee1766/dataagent/src/tools/toolsutil"
)

const Name = "intermediary_dataframe_retrieval"

const previewRows = 5

const queryDataPrompt = `Runs a read-only SQL SELECT query against the main database and stores the full result as the intermediary table for this conversation, replacing whatever it held before. Returns the result's columns and its first rows. Chart tools read from the intermediary table, so call this first and refer to the stored data as intermediary_table in their sql_query. Only SELECT statements are accepted.`

type QueryDataInput struct {
	Query string `json:"query" required:"true" description:"The SQL SELECT query to run against the main database"`
}

type ResultSchema struct {
	Columns []string `json:"columns" description:"Column names of the stored result, in order"`
}

type QueryDataOutput struct {
	Schema    ResultSchema     `json:"schema"`
	FirstRows []map[string]any `json:"first_rows" description:"Up to five leading rows of the result"`
	RowCount  int              `json:"row_count" description:"Total number of stored rows"`
}

func makeQueryDataHandler(primary *datastore.Primary, scratch *datastore.Scratch) func(context.Context, QueryDataInput) (QueryDataOutput, error) {
	return func(ctx context.Context, input QueryDataInput) (QueryDataOutput, error) {
		logger := toolsutil.GetLogger()
		session := toolsutil.SessionFrom(ctx)

		rs, err := primary.Query(ctx, input.Query)
		if err != nil {
			logger.Error("query rejected or failed", "session", session, "error", err)
			return QueryDataOutput{}, err
		}

		table := scratch.TableFor(session)
		if err := scratch.Replace(ctx, table, rs); err != nil {
			logger.Error("failed to store intermediary data", "table", table, "error", err)
			return QueryDataOutput{}, fmt.Errorf("failed to store result: %w", err)
		}

		logger.Info("intermediary data replaced", "session", session, "table", table, "rows", rs.Len(), "columns", len(rs.Columns))
		return QueryDataOutput{
			Schema:    ResultSchema{Columns: rs.Columns},
			FirstRows: rs.Head(previewRows),
			RowCount:  rs.Len(),
		}, nil
	}
}

// Tool returns the intermediary_dataframe_retrieval tool definition using GenericTool
func Tool(primary *datastore.Primary, scratch *datastore.Scratch) (agent.Tool, error) {
	return agent.NewGenericTool(Name, queryDataPrompt, makeQueryDataHandler(primary, scratch))
}
