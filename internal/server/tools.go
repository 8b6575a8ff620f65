package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func rectProperties() map[string]interface{} {
	return map[string]interface{}{
		"x":      map[string]interface{}{"type": "integer", "description": "Left edge X coordinate (0-based)"},
		"y":      map[string]interface{}{"type": "integer", "description": "Top edge Y coordinate (0-based)"},
		"width":  map[string]interface{}{"type": "integer", "description": "Rectangle width in pixels"},
		"height": map[string]interface{}{"type": "integer", "description": "Rectangle height in pixels"},
	}
}

func axisSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"lower": map[string]interface{}{"type": "number", "description": "First value (inclusive)"},
			"upper": map[string]interface{}{"type": "number", "description": "Upper bound (exclusive)"},
			"step":  map[string]interface{}{"type": "number", "description": "Distance between values"},
		},
		"required": []string{"lower", "upper", "step"},
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	addSampleProps := rectProperties()
	addSampleProps["expected"] = map[string]interface{}{
		"type":        "string",
		"description": "Color the region should become, as hex (#RRGGBB)",
	}

	previewProps := rectProperties()
	previewProps["scale"] = map[string]interface{}{
		"type":        "number",
		"description": "Optional scale factor (e.g., 4.0 to enlarge small regions). Default 1.0",
		"default":     1.0,
	}

	return []Tool{
		// Source and samples
		{
			Name:        "colormatch_load",
			Description: "Load the source image to color-match. Replaces any previous source and clears all region samples. Decoded images are cached by path; pass reload after editing the file.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the image file",
					},
					"reload": map[string]interface{}{
						"type":        "boolean",
						"description": "Decode the file again instead of using the cached copy",
						"default":     false,
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "colormatch_add_sample",
			Description: "Add a region sample: the average color of the rectangle in the source is the input, the given hex color is the expected output. Pixels outside the image are ignored.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": addSampleProps,
				"required":   []string{"x", "y", "width", "height", "expected"},
			},
		},
		{
			Name:        "colormatch_list_samples",
			Description: "List the region samples in the order they were added.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "colormatch_remove_sample",
			Description: "Remove one region sample by its index.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"index": map[string]interface{}{
						"type":        "integer",
						"description": "0-based index as returned by colormatch_list_samples",
					},
				},
				"required": []string{"index"},
			},
		},
		{
			Name:        "colormatch_clear_samples",
			Description: "Remove every region sample.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "colormatch_sample_color",
			Description: "Get the exact color of one pixel of the source image.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"x": map[string]interface{}{"type": "integer", "description": "X coordinate (0-based, from left)"},
					"y": map[string]interface{}{"type": "integer", "description": "Y coordinate (0-based, from top)"},
				},
				"required": []string{"x", "y"},
			},
		},
		{
			Name:        "colormatch_region_preview",
			Description: "Render a rectangle of the source image as base64-encoded PNG, to check a sample region before adding it.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": previewProps,
				"required":   []string{"x", "y", "width", "height"},
			},
		},
		{
			Name:        "colormatch_sample_overlay",
			Description: "Render the source image with every region sample outlined and labelled with its index, as base64-encoded PNG.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"color": map[string]interface{}{
						"type":        "string",
						"description": "Outline color as hex (default #FF0000)",
						"default":     "#FF0000",
					},
				},
			},
		},

		// Search
		{
			Name:        "colormatch_run_search",
			Description: "Start a brute-force search for a 3x3 color matrix mapping every sample's input color exactly onto its expected color. Returns immediately; use colormatch_status, colormatch_wait and colormatch_poll_result to follow it.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"grid": map[string]interface{}{
						"type":        "object",
						"description": "Optional parameter grid. Omit to use the server default.",
						"properties": map[string]interface{}{
							"diagonal": map[string]interface{}{
								"type":        "array",
								"items":       axisSchema(),
								"description": "1 axis (shared diagonal) or 3 axes (m00, m11, m22)",
							},
							"off_diagonal": map[string]interface{}{
								"type":        "array",
								"items":       axisSchema(),
								"description": "6 axes for m01, m02, m10, m12, m20, m21",
							},
						},
						"required": []string{"diagonal", "off_diagonal"},
					},
				},
			},
		},
		{
			Name:        "colormatch_status",
			Description: "Report the state and counters of the current search and the worker pool.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "colormatch_poll_result",
			Description: "Return the most recently published match without waiting. Later matches overwrite earlier ones.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"include_image": map[string]interface{}{
						"type":        "boolean",
						"description": "Include the transformed image as base64 PNG",
						"default":     false,
					},
				},
			},
		},
		{
			Name:        "colormatch_wait",
			Description: "Wait until the current search has drained or the timeout expires. This call blocks the server: no other tool, colormatch_cancel included, is handled until it returns. Prefer short timeouts and poll with colormatch_status.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"timeout_seconds": map[string]interface{}{
						"type":        "number",
						"description": "Maximum time to wait (default 30, capped at 60)",
						"default":     30,
						"maximum":     60,
					},
				},
			},
		},
		{
			Name:        "colormatch_cancel",
			Description: "Cancel the current search. Candidates already running finish; queued ones are skipped.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "colormatch_matches",
			Description: "List the matches recorded so far, oldest first, without images.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"limit": map[string]interface{}{
						"type":        "integer",
						"description": "Return only the newest N matches (default 100)",
						"default":     100,
					},
					"full_only": map[string]interface{}{
						"type":        "boolean",
						"description": "Only list matches satisfying every sample",
						"default":     false,
					},
				},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
