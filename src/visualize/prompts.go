package visualize

import (
	"fmt"
	"strings"

	"github.com/elee1766/dataagent/src/datastore"
)

const sqlSystemPrompt = "You are a helpful assistant that converts natural language into SQL queries based on provided table schemas."

const suggestSystemPrompt = "You are a data visualization assistant."

func sqlPrompt(userRequest, schema string) string {
	return fmt.Sprintf(`You are an assistant that converts natural language requests into SQL queries.

Instructions:
- Only generate safe, read-only SELECT SQL queries.
- Do not include any other SQL statements besides SELECT.
- Do not use INSERT, UPDATE, DELETE, DROP, ALTER, TRUNCATE, CREATE, or any other data modification or schema-changing commands.
- The SQL query should only reference the tables and columns provided in the table schema.
- If the request cannot be answered with a SELECT query using the given schema, respond with "I'm sorry, but I cannot generate a query for that request."

Table Schema:

%s

User Request:

%q

Provide only the SQL query, without explanations or additional text, or the error message if applicable.`, schema, userRequest)
}

func suggestPrompt(sample *datastore.ResultSet, query string) string {
	return fmt.Sprintf(`Given the following data sample:
%s
and the query that produced it:
%s
Suggest the most appropriate visualization type (bar chart, line chart or scatter plot) and the columns to use for the x and y axes.
Provide the answer in JSON format, enclosed in triple backticks, like:
`+"```"+`
{
    "chart_type": "scatter",
    "x_axis": "column_name",
    "y_axis": "column_name",
    "title": "Your suggested title"
}
`+"```", sampleCSV(sample), query)
}

func insightPrompt(s *Suggestion) string {
	return fmt.Sprintf("I have a %s titled '%s' plotting '%s' against '%s'. Please provide insights based on this chart.",
		s.ChartType, s.Title, s.XAxis, s.YAxis)
}

// sampleCSV renders rows as comma-separated text with a header line.
func sampleCSV(rs *datastore.ResultSet) string {
	var b strings.Builder
	b.WriteString(strings.Join(rs.Columns, ","))
	b.WriteByte('\n')
	for _, row := range rs.Rows {
		cells := make([]string, len(rs.Columns))
		for i, c := range rs.Columns {
			if row[c] != nil {
				cells[i] = fmt.Sprint(row[c])
			}
		}
		b.WriteString(strings.Join(cells, ","))
		b.WriteByte('\n')
	}
	return b.String()
}
