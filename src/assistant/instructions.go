package assistant

import (
	"fmt"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/host"
	jsonschema "github.com/swaggest/jsonschema-go"

	"github.com/elee1766/dataagent/src/agent"
)

const (
	mainSection = `Guide the user in retrieving relevant information from a database using keyword similarity.

You will assist a user by following a structured sequence to retrieve database information based on keyword similarity. Use the provided tools to refine the keyword search and construct SQL queries.`

	stepsSection = `# Steps

1. **New Query Start**: Begin every task from this step.
2. **Use the ` + "`mini_retrieve_similar_keywords`" + ` tool** to find keywords similar to the user's query.
3. **Select keywords**: keep those with a similarity score above 0.6. Group them by meaning and by their relationship to the user's request.
4. **Check the database**: use the ` + "`schema_check`" + ` tool to learn the table structure before querying.
5. **Construct a SQL query**:
   - Filter the 'filtered_keywords' column with the selected keywords.
   - Use ` + "`OR`" + ` between synonyms and ` + "`AND`" + ` between groups. Exclude the word 'pengadaan'.
6. **Execute the query** with the ` + "`intermediary_dataframe_retrieval`" + ` tool.
7. **Charts**: when the user asks for a chart, query intermediary_table with one of the chart tools after step 6.`

	examplesSection = `# Examples

**User Request:** "informasi terkait perbaikan gedung"
- **Group 1:** 'perbaikan', 'rehabilitasi', 'pemeliharaan'
- **Group 2:** 'gedung', 'bangunan', 'kantor'
- **Query:**
  ` + "```" + `
  SELECT * FROM data_pengadaan WHERE (filtered_keywords LIKE '%perbaikan%' OR filtered_keywords LIKE '%rehabilitasi%' OR filtered_keywords LIKE '%pemeliharaan%') AND (filtered_keywords LIKE '%gedung%' OR filtered_keywords LIKE '%bangunan%' OR filtered_keywords LIKE '%kantor%');
  ` + "```" + `

**User Request:** "informasi terkait alat tulis"
- **Group 1:** 'alat', 'peralatan'
- **Group 2:** 'tulis', 'pensil', 'pulpen'
- **Query:**
  ` + "```" + `
  SELECT * FROM data_pengadaan WHERE (filtered_keywords LIKE '%alat%' OR filtered_keywords LIKE '%peralatan%') AND (filtered_keywords LIKE '%tulis%' OR filtered_keywords LIKE '%pensil%' OR filtered_keywords LIKE '%pulpen%');
  ` + "```" + `
(Results vary with the database contents.)`

	notesSection = `# Notes

- Complete every step.
- Call one tool at a time.
- Do NOT tell the user which steps you took.
- Never run DML such as INSERT, UPDATE, DELETE or DROP.
- Answer directly from known information when no lookup is needed.`
)

// Instructions returns the hosted assistant instructions as of now.
func Instructions(now time.Time) string {
	return strings.Join([]string{
		mainSection,
		stepsSection,
		examplesSection,
		notesSection,
		environmentInfo(now),
	}, "\n\n")
}

func environmentInfo(now time.Time) string {
	return fmt.Sprintf(`<env>
Platform: %s
OS Version: %s
Today's date: %s
</env>`, runtime.GOOS, osVersion(), now.Format("2006-01-02"))
}

func osVersion() string {
	info, err := host.Info()
	if err != nil {
		return runtime.GOOS
	}
	if info.PlatformVersion != "" {
		return info.Platform + " " + info.PlatformVersion
	}
	return info.Platform
}

func schemaType(s *jsonschema.Schema) string {
	if s.Type == nil {
		return "object"
	}
	if s.Type.SimpleTypes != nil {
		return string(*s.Type.SimpleTypes)
	}
	if len(s.Type.SliceOfSimpleTypeValues) > 0 {
		return string(s.Type.SliceOfSimpleTypeValues[0])
	}
	return "object"
}

func enumText(values []interface{}) string {
	strs := make([]string, len(values))
	for i, e := range values {
		strs[i] = fmt.Sprintf(`"%v"`, e)
	}
	return fmt.Sprintf("(enum: %s)", strings.Join(strs, " | "))
}

// formatSchema renders a JSON schema as an indented outline.
func formatSchema(schema *jsonschema.Schema, indentLevel int) string {
	if schema == nil {
		return "unknown"
	}

	indent := strings.Repeat("  ", indentLevel)
	var parts []string

	if schema.Description != nil && *schema.Description != "" {
		parts = append(parts, fmt.Sprintf("%s# %s", indent, *schema.Description))
	}

	var details []string
	if len(schema.Enum) > 0 {
		details = append(details, enumText(schema.Enum))
	}
	if schema.Items == nil && len(schema.Properties) > 0 && len(schema.Required) > 0 {
		details = append(details, fmt.Sprintf("(required: %s)", strings.Join(schema.Required, ", ")))
	}
	line := indent + schemaType(schema)
	if len(details) > 0 {
		line += " " + strings.Join(details, " ")
	}
	parts = append(parts, line)

	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		prop := schema.Properties[name].TypeObject
		if prop == nil {
			continue
		}
		propType := schemaType(prop)
		if len(prop.Enum) > 0 {
			propType += " " + enumText(prop.Enum)
		}
		line := fmt.Sprintf("%s  %s: %s", indent, name, propType)
		if prop.Description != nil && *prop.Description != "" {
			line += " # " + *prop.Description
		}
		parts = append(parts, line)
	}

	if schema.Items != nil && schema.Items.SchemaOrBool != nil && schema.Items.SchemaOrBool.TypeObject != nil {
		item := formatSchema(schema.Items.SchemaOrBool.TypeObject, indentLevel+1)
		parts = append(parts, fmt.Sprintf("%s  items: %s", indent, strings.TrimSpace(item)))
	}

	return strings.Join(parts, "\n")
}

// FormatTools describes tools with their input schemas.
func FormatTools(tools []agent.Tool) string {
	if len(tools) == 0 {
		return "No tools available."
	}

	out := make([]string, 0, len(tools))
	for _, tool := range tools {
		parts := []string{
			"Tool: " + tool.GetName(),
			"Description: " + tool.GetDescription(),
			"Input Schema:",
		}
		if tool.GetParameters() != nil {
			parts = append(parts, formatSchema(tool.GetParameters(), 1))
		} else {
			parts = append(parts, "  # No schema defined")
		}
		out = append(out, strings.Join(parts, "\n"))
	}
	return fmt.Sprintf("You have access to the following tools:\n\n%s", strings.Join(out, "\n\n---\n\n"))
}
