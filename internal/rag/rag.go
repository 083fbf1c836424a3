package rag

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"policy-rag/internal/config"
	"policy-rag/internal/llmservice"
	"policy-rag/internal/models"
	"policy-rag/internal/vectordb"
)

var thinkRe = regexp.MustCompile(models.ThinkTag)

// RAG answers questions over the vector index: embed the query, retrieve
// the nearest segments, hand the assembled context to the chat model.
type RAG struct {
	index *vectordb.Manager
	cfg   *config.Config
}

type Response struct {
	Query   string
	Sources []string
	Content string
}

func NewRAG(index *vectordb.Manager, cfg *config.Config) *RAG {
	return &RAG{index: index, cfg: cfg}
}

// Query retrieves up to topK segments matching the optional metadata filter
// and asks the chat model for an answer grounded in them.
func (r *RAG) Query(ctx context.Context, query string, topK int, filter map[string]string) (*Response, error) {
	if topK <= 0 {
		topK = r.cfg.RAG.TopK
	}
	hits, err := r.index.Search(ctx, query, topK, filter)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return &Response{Query: query, Content: "No relevant documents found."}, nil
	}

	var contextText strings.Builder
	sources := make([]string, 0, len(hits))
	for _, hit := range hits {
		contextText.WriteString(hit.Text)
		contextText.WriteString(models.ContextSeparator)
		if src, ok := hit.Metadata[models.MetaSource]; ok {
			sources = append(sources, src)
		}
	}

	prompt := fmt.Sprintf(models.AnswerPromptTemplate, contextText.String(), query)
	msgContent := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextContent{Text: models.AnswerSystemPrompt}},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextContent{Text: prompt}},
		},
	}

	res, err := llmservice.GenerateContent(ctx, &r.cfg.ChatLLM, nil, msgContent)
	if err != nil {
		return nil, err
	}
	if len(res.Choices) == 0 {
		return nil, fmt.Errorf("chat model returned no choices")
	}

	return &Response{
		Query:   query,
		Sources: dedupe(sources),
		Content: stripThink(res.Choices[0].Content),
	}, nil
}

// reasoning models wrap their chain of thought in <think> blocks
func stripThink(s string) string {
	return strings.TrimSpace(thinkRe.ReplaceAllString(s, ""))
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
