// Package mcp implements the Model Context Protocol (MCP) server for askdocs.
//
// The server exposes four tools to MCP clients:
//   - ask_question: Answer a question through the strategy router
//   - rebuild_index: Re-chunk the documents and rebuild the index if they changed
//   - get_status: Report index statistics and storage health
//   - inspect_chunks: List the indexed document sections
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport. The server reads
// requests on stdin and writes responses on stdout, so every log line goes
// to stderr.
//
//	askdocs serve --watch
//
// # Tool: ask_question
//
//	Request:
//	{
//	  "name": "ask_question",
//	  "arguments": {"question": "How many vacation days do I get?"}
//	}
//
//	Response:
//	{
//	  "answer": "Employees receive twenty days of paid leave per year.",
//	  "strategy": "document_retrieval",
//	  "requested_strategy": "document_retrieval",
//	  "fell_back": false,
//	  "sources": [{"source": "hr_manual.md", "header": "Vacation Policy"}]
//	}
//
// When the requested strategy's backend is unavailable the router falls
// back along the chain and fell_back is true.
//
// # Tool: rebuild_index
//
// Pass "force": true to rebuild even when the document fingerprint is
// unchanged. A second call while one is running fails with -32002.
//
// # MCP Client Configuration
//
//	{
//	  "mcpServers": {
//	    "askdocs": {
//	      "command": "/usr/local/bin/askdocs",
//	      "args": ["serve", "--config", "/etc/askdocs.yaml"]
//	    }
//	  }
//	}
//
// Error codes:
//   - -32602: Invalid params
//   - -32603: Internal error (database, filesystem, etc.)
//   - -32002: Indexing in progress
//   - -32004: Empty question
//   - -32005: Every backend in the fallback chain failed
package mcp
