package tool_similarkeywords

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/elee1766/dataagent/src/agent"
	"github.com/elee1766/dataagent/src/tools/toolsutil"
)

const Name = "mini_retrieve_similar_keywords"

const defaultTopK = 10

const similarKeywordsPrompt = `Finds the keywords available in the database that are most similar to a search phrase. Returns a list of records with the keyword and its similarity score, highest first. Use the returned keywords, not the user's wording, when filtering data with LIKE conditions.`

type SimilarKeywordsInput struct {
	Query string `json:"query" required:"true" description:"The phrase to find similar keywords for"`
	TopK  int    `json:"top_k,omitempty" description:"Number of most similar keywords to return. Default is 10." default:"10"`
}

type SimilarKeywordsOutput struct {
	Matches []Match `json:"matches"`
}

// ToolText reports the matches as a bare JSON array of records.
func (o SimilarKeywordsOutput) ToolText() string {
	matches := o.Matches
	if matches == nil {
		matches = []Match{}
	}
	b, _ := json.Marshal(matches)
	return string(b)
}

func makeSimilarKeywordsHandler(index *Index) func(context.Context, SimilarKeywordsInput) (SimilarKeywordsOutput, error) {
	return func(ctx context.Context, input SimilarKeywordsInput) (SimilarKeywordsOutput, error) {
		logger := toolsutil.GetLogger()

		topK := input.TopK
		if topK == 0 {
			topK = defaultTopK
		}
		if topK < 0 {
			return SimilarKeywordsOutput{}, fmt.Errorf("%w: top_k must be positive", toolsutil.ErrInvalidParams)
		}

		matches, err := index.Search(ctx, input.Query, topK)
		if err != nil {
			logger.Error("keyword search failed", "query", input.Query, "error", err)
			return SimilarKeywordsOutput{}, err
		}

		logger.Info("keyword search", "query", input.Query, "top_k", topK, "matches", len(matches))
		return SimilarKeywordsOutput{Matches: matches}, nil
	}
}

// Tool returns the mini_retrieve_similar_keywords tool definition using GenericTool
func Tool(index *Index) (agent.Tool, error) {
	return agent.NewGenericTool(Name, similarKeywordsPrompt, makeSimilarKeywordsHandler(index))
}
