package orchestrator

import "strings"

// defaultTemplates are used when the configuration snapshot omits a
// prompt template option. Placeholders are substituted literally
// ("{name}"), matching the original system's str.format-style
// templates.
var defaultTemplates = map[string]string{
	"hyde_query":                "Write a short hypothetical passage that would answer this question: {question}",
	"rewrite_query_instruction": "Documents retrieved so far:\n{context}",
	"rewrite_query_question":    "Do the documents above contain the answer to this question? Reply yes or no: {question}",
	"rewrite_query_prompt":      "The following question did not retrieve documents containing its answer: {question}\n{motivation}\nRewrite the question to retrieve better documents. Reply with only the rewritten question.",
	"re2_prompt":                "Read the question again:",
	"rag_instruction":           "Answer the question using only the following context. If the answer is not contained in the context, say so.\n\n{context}",
	"rag_question_initial":      "{question}",
	"rag_question_followup":     "{question}",
	"rag_fetch_new_question":    "Given the conversation so far, is it necessary to fetch new documents to answer this question: {question}? Reply yes or no.",
	"summarization_query":       "Summarize the following conversation concisely, preserving any facts relevant to answering follow-up questions:\n\n{history}",
}

// render substitutes vars into the configured (or default) template
// named key.
func (o *Orchestrator) render(key string, vars map[string]string) string {
	tmpl := o.snapshot.String(key, defaultTemplates[key])
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}
