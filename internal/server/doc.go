// Package server implements the MCP (Model Context Protocol) front end of the color
// matcher.
//
// The server plays the part of the interactive collaborator: it loads a source image,
// records region samples with their expected colors, starts searches on the engine and
// reports progress and results. It speaks JSON-RPC 2.0 over stdio:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Source and samples:
//   - colormatch_load: Load the source image (clears samples)
//   - colormatch_add_sample: Average a rectangle and pair it with an expected color
//   - colormatch_list_samples / colormatch_remove_sample / colormatch_clear_samples
//   - colormatch_sample_color: Read one source pixel
//   - colormatch_region_preview: Render a rectangle of the source as PNG
//   - colormatch_sample_overlay: Render the source with all sample rectangles outlined
//
// Search:
//   - colormatch_run_search: Start a search (returns immediately)
//   - colormatch_status: Progress of the current search
//   - colormatch_poll_result: Latest published result, optionally with its image
//   - colormatch_wait: Block until the search drains or a timeout passes
//   - colormatch_cancel: Abort the current search
//   - colormatch_matches: Every match recorded so far
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: Additional error details (typically the Go error string)
package server
