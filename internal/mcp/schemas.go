package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// askQuestionTool returns the tool definition for ask_question
func askQuestionTool() mcp.Tool {
	return mcp.Tool{
		Name:        "ask_question",
		Description: "Answer a question from the indexed documents, the web, or the language model",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"question": map[string]interface{}{
					"type":        "string",
					"description": "Natural language question",
				},
			},
			Required: []string{"question"},
		},
	}
}

// rebuildIndexTool returns the tool definition for rebuild_index
func rebuildIndexTool() mcp.Tool {
	return mcp.Tool{
		Name:        "rebuild_index",
		Description: "Re-chunk the documents directory and rebuild the vector index when the documents changed",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"force": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, rebuild even when the document fingerprint is unchanged",
					"default":     false,
				},
			},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report index statistics, the last build and storage health",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// inspectChunksTool returns the tool definition for inspect_chunks
func inspectChunksTool() mcp.Tool {
	return mcp.Tool{
		Name:        "inspect_chunks",
		Description: "List the indexed document sections",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"source": map[string]interface{}{
					"type":        "string",
					"description": "Only list sections of this document, e.g. hr_manual.md",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of sections to return (1-1000)",
					"default":     100,
					"minimum":     1,
					"maximum":     1000,
				},
			},
		},
	}
}
