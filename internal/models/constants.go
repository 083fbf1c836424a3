package models

const (
	ContextSeparator = "\n---\n"
	ThinkTag         = `(?s)<think>.*?</think>`
)

var (
	AnswerPromptTemplate = `Context:
%s
Query: %s`

	AnswerSystemPrompt = "You are a policy analysis assistant. Use the provided context to answer the query. Cite the source of each claim where the context provides one."
)
