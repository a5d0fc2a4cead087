package query

import "fmt"

// promptTemplate is filled with assistant name, sentinel, context and question.
const promptTemplate = "You are %s. Answer the question using ONLY the context below. " +
	"If the answer is not in context, say '%s'\n\n" +
	"Context:\n%s\n\n" +
	"Question: %s\nAnswer:"

// buildPrompt renders the grounded generation prompt. context must contain
// only the retrieved record.
func buildPrompt(assistantName, notFound, context, question string) string {
	return fmt.Sprintf(promptTemplate, assistantName, notFound, context, question)
}
