package router

import (
	"fmt"
	"strings"

	"github.com/dshills/askdocs/pkg/types"
)

const promptHeader = `Use the following sections from the documentation to answer the question at the end.
If the answer is not in them, say that you don't know. Do not make up an answer.`

// BuildPrompt grounds question in the given document sections
func BuildPrompt(question string, chunks []types.Chunk) string {
	var b strings.Builder
	b.WriteString(promptHeader)
	b.WriteString("\n\n")
	for _, c := range chunks {
		fmt.Fprintf(&b, "[%s > %s]\n", c.SourceID, c.Header)
		b.WriteString(strings.TrimSpace(c.Text))
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Question: %s\nHelpful Answer:", question)
	return b.String()
}
