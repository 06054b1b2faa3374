package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// rememberTool returns the tool definition for remember
func rememberTool() mcp.Tool {
	return mcp.Tool{
		Name:        "remember",
		Description: "Store a new memory and return its identifier",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"agent": map[string]interface{}{
					"type":        "string",
					"description": "Name of the agent creating the memory",
				},
				"user": map[string]interface{}{
					"type":        "string",
					"description": "User the memory belongs to",
				},
				"topics": map[string]interface{}{
					"type":        "array",
					"description": "Topic tags for the memory",
					"items": map[string]interface{}{
						"type": "string",
					},
				},
				"content": map[string]interface{}{
					"type":        "string",
					"description": "Memory content text",
				},
			},
			Required: []string{"agent", "user", "topics", "content"},
		},
	}
}

// thinkTool returns the tool definition for think
func thinkTool() mcp.Tool {
	return mcp.Tool{
		Name:        "think",
		Description: "Search stored memories by keywords, ranked by relevance",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"keywords": map[string]interface{}{
					"type":        "array",
					"description": "Keywords to search for (case-insensitive)",
					"items": map[string]interface{}{
						"type": "string",
					},
				},
			},
			Required: []string{"keywords"},
		},
	}
}

// recallTool returns the tool definition for recall
func recallTool() mcp.Tool {
	return mcp.Tool{
		Name:        "recall",
		Description: "Retrieve full memory details by identifier",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"memory_ids": map[string]interface{}{
					"type":        "array",
					"description": "Memory identifiers (8 hex characters each)",
					"items": map[string]interface{}{
						"type": "string",
					},
				},
			},
			Required: []string{"memory_ids"},
		},
	}
}
