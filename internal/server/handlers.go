package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/ironsheep/colormatch-mcp/internal/imaging"
	"github.com/ironsheep/colormatch-mcp/internal/match"
	"github.com/ironsheep/colormatch-mcp/internal/search"
)

// errNoSource is returned by tools that need a loaded source image.
var errNoSource = errors.New("no source image loaded; call colormatch_load first")

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "colormatch_load").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}

	switch name {
	// Source and samples
	case "colormatch_load":
		return s.handleLoad(args)
	case "colormatch_add_sample":
		return s.handleAddSample(args)
	case "colormatch_list_samples":
		return s.handleListSamples()
	case "colormatch_remove_sample":
		return s.handleRemoveSample(args)
	case "colormatch_clear_samples":
		return s.handleClearSamples()
	case "colormatch_sample_color":
		return s.handleSampleColor(args)
	case "colormatch_region_preview":
		return s.handleRegionPreview(args)
	case "colormatch_sample_overlay":
		return s.handleSampleOverlay(args)

	// Search
	case "colormatch_run_search":
		return s.handleRunSearch(args)
	case "colormatch_status":
		return s.handleStatus()
	case "colormatch_poll_result":
		return s.handlePollResult(args)
	case "colormatch_wait":
		return s.handleWait(args)
	case "colormatch_cancel":
		return s.handleCancel()
	case "colormatch_matches":
		return s.handleMatches(args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// currentSource returns the loaded source under the lock.
func (s *Server) currentSource() (*imaging.Buffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.source == nil {
		return nil, errNoSource
	}
	return s.source, nil
}

// === Source and Sample Handlers ===

type loadArgs struct {
	Path   string `json:"path"`
	Reload bool   `json:"reload"`
}

func (s *Server) handleLoad(args json.RawMessage) (interface{}, error) {
	var a loadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	if a.Reload {
		s.cache.Evict(a.Path)
	}
	info, buf, err := imaging.DescribeSource(s.cache, a.Path)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.source = buf
	s.info = info
	s.samples = nil
	s.mu.Unlock()

	s.logger.Info("Source loaded", "path", a.Path, "width", info.Width, "height", info.Height)
	return info, nil
}

// sampleView is the JSON form of a region sample.
type sampleView struct {
	Index       int              `json:"index"`
	Rect        match.Rect       `json:"rect"`
	Input       imaging.RGBColor `json:"input"`
	InputHex    string           `json:"input_hex"`
	Expected    imaging.RGBColor `json:"expected"`
	ExpectedHex string           `json:"expected_hex"`
	Identity    bool             `json:"identity_match"`
}

func newSampleView(i int, sm match.Sample) sampleView {
	return sampleView{
		Index:       i,
		Rect:        sm.Rect,
		Input:       sm.Input,
		InputHex:    sm.Input.Hex(),
		Expected:    sm.Expected,
		ExpectedHex: sm.Expected.Hex(),
		Identity:    match.Matches(sm, match.Identity),
	}
}

type addSampleArgs struct {
	X        int    `json:"x"`
	Y        int    `json:"y"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Expected string `json:"expected"`
}

func (s *Server) handleAddSample(args json.RawMessage) (interface{}, error) {
	var a addSampleArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	expected, err := imaging.ParseHexColor(a.Expected)
	if err != nil {
		return nil, err
	}
	buf, err := s.currentSource()
	if err != nil {
		return nil, err
	}

	sm, err := match.NewSample(buf, match.Rect{X: a.X, Y: a.Y, Width: a.Width, Height: a.Height}, expected)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.source != buf {
		return nil, fmt.Errorf("source image changed while adding the sample")
	}
	s.samples = append(s.samples, sm)
	return newSampleView(len(s.samples)-1, sm), nil
}

func (s *Server) handleListSamples() (interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	views := make([]sampleView, len(s.samples))
	for i, sm := range s.samples {
		views[i] = newSampleView(i, sm)
	}
	return map[string]interface{}{"samples": views}, nil
}

type removeSampleArgs struct {
	Index int `json:"index"`
}

func (s *Server) handleRemoveSample(args json.RawMessage) (interface{}, error) {
	var a removeSampleArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.Index < 0 || a.Index >= len(s.samples) {
		return nil, fmt.Errorf("sample index %d out of range (have %d)", a.Index, len(s.samples))
	}
	removed := s.samples[a.Index]
	s.samples = append(s.samples[:a.Index:a.Index], s.samples[a.Index+1:]...)
	return map[string]interface{}{
		"removed":   newSampleView(a.Index, removed),
		"remaining": len(s.samples),
	}, nil
}

func (s *Server) handleClearSamples() (interface{}, error) {
	s.mu.Lock()
	n := len(s.samples)
	s.samples = nil
	s.mu.Unlock()
	return map[string]interface{}{"removed": n}, nil
}

type sampleColorArgs struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (s *Server) handleSampleColor(args json.RawMessage) (interface{}, error) {
	var a sampleColorArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	buf, err := s.currentSource()
	if err != nil {
		return nil, err
	}
	return imaging.SampleColor(buf, a.X, a.Y)
}

type regionPreviewArgs struct {
	X      int     `json:"x"`
	Y      int     `json:"y"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Scale  float64 `json:"scale"`
}

func (s *Server) handleRegionPreview(args json.RawMessage) (interface{}, error) {
	var a regionPreviewArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Scale == 0 {
		a.Scale = 1.0
	}
	buf, err := s.currentSource()
	if err != nil {
		return nil, err
	}
	return imaging.PreviewRegion(buf, a.X, a.Y, a.Width, a.Height, a.Scale)
}

type sampleOverlayArgs struct {
	Color string `json:"color"`
}

func (s *Server) handleSampleOverlay(args json.RawMessage) (interface{}, error) {
	var a sampleOverlayArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	outline := imaging.RGBColor{R: 255}
	if a.Color != "" {
		c, err := imaging.ParseHexColor(a.Color)
		if err != nil {
			return nil, err
		}
		outline = c
	}

	s.mu.Lock()
	buf := s.source
	rects := make([]image.Rectangle, len(s.samples))
	for i, sm := range s.samples {
		rects[i] = sm.Rect.Bounds()
	}
	s.mu.Unlock()
	if buf == nil {
		return nil, errNoSource
	}
	return imaging.SampleOverlay(buf, rects, outline)
}

// === Search Handlers ===

type runSearchArgs struct {
	Grid *search.GridSpec `json:"grid,omitempty"`
}

func (s *Server) handleRunSearch(args json.RawMessage) (interface{}, error) {
	var a runSearchArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	grid := s.grid
	if a.Grid != nil {
		grid = *a.Grid
	}

	s.mu.Lock()
	buf := s.source
	samples := append([]match.Sample(nil), s.samples...)
	s.mu.Unlock()
	if buf == nil {
		return nil, errNoSource
	}

	run, err := s.engine.RunSearch(context.Background(), buf, samples, grid)
	if err != nil {
		return nil, err
	}
	return run.Stats(), nil
}

// statusResult combines run and pool state.
type statusResult struct {
	Run        *search.RunStats `json:"run,omitempty"`
	Workers    int              `json:"workers"`
	InFlight   int64            `json:"in_flight"`
	Queued     int              `json:"queued"`
	LatestSeq  uint64           `json:"latest_seq"`
	JobsFailed int64            `json:"jobs_failed"`

	// CachedSources counts decoded images kept by colormatch_load.
	CachedSources int `json:"cached_sources"`
}

func (s *Server) handleStatus() (interface{}, error) {
	st := statusResult{
		Workers:    s.sched.Workers(),
		InFlight:   s.sched.InFlight(),
		Queued:     s.sched.Queued(),
		JobsFailed: s.sched.Failed(),

		CachedSources: s.cache.Len(),
	}
	if run := s.engine.Current(); run != nil {
		rs := run.Stats()
		st.Run = &rs
	}
	if r := s.engine.PollResult(); r != nil {
		st.LatestSeq = r.Seq
	}
	return st, nil
}

type pollResultArgs struct {
	IncludeImage bool `json:"include_image"`
}

// resultView is the JSON form of a published result.
type resultView struct {
	*search.Result
	Coefficients [9]float32            `json:"coefficients"`
	FileName     string                `json:"file_name"`
	Image        *imaging.EncodedImage `json:"image,omitempty"`
}

func (s *Server) handlePollResult(args json.RawMessage) (interface{}, error) {
	var a pollResultArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	r := s.engine.PollResult()
	if r == nil {
		return map[string]interface{}{"found": false}, nil
	}
	view := resultView{
		Result:       r,
		Coefficients: r.Transform.Coefficients(),
		FileName:     search.ResultName(r),
	}
	if a.IncludeImage && r.Image != nil {
		enc, err := imaging.EncodePNG(r.Image.ToImage())
		if err != nil {
			return nil, err
		}
		view.Image = enc
	}
	return map[string]interface{}{"found": true, "result": view}, nil
}

// Bounds for colormatch_wait. Requests are served one at a time, so a wait holds
// back every other call, colormatch_cancel included, until it returns.
const (
	defaultWaitTimeout = 30 * time.Second
	maxWaitTimeout     = 60 * time.Second
)

type waitArgs struct {
	TimeoutSeconds float64 `json:"timeout_seconds"`
}

// waitTimeout applies the default and the cap to a requested timeout.
func waitTimeout(seconds float64) time.Duration {
	if seconds <= 0 {
		return defaultWaitTimeout
	}
	if seconds >= maxWaitTimeout.Seconds() {
		return maxWaitTimeout
	}
	return time.Duration(seconds * float64(time.Second))
}

func (s *Server) handleWait(args json.RawMessage) (interface{}, error) {
	var a waitArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	run := s.engine.Current()
	if run == nil {
		return nil, fmt.Errorf("no search has been started")
	}

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout(a.TimeoutSeconds))
	defer cancel()
	finished := run.Wait(ctx) == nil
	return map[string]interface{}{
		"finished": finished,
		"run":      run.Stats(),
	}, nil
}

func (s *Server) handleCancel() (interface{}, error) {
	run := s.engine.Current()
	if run == nil {
		return nil, fmt.Errorf("no search has been started")
	}
	run.Cancel()
	return run.Stats(), nil
}

type matchesArgs struct {
	Limit    int  `json:"limit"`
	FullOnly bool `json:"full_only"`
}

func (s *Server) handleMatches(args json.RawMessage) (interface{}, error) {
	var a matchesArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Limit <= 0 {
		a.Limit = 100
	}

	all := s.engine.Matches()
	picked := make([]search.Result, 0, len(all))
	for _, m := range all {
		if a.FullOnly && m.Kind != match.Full {
			continue
		}
		picked = append(picked, m)
	}
	total := len(picked)
	if len(picked) > a.Limit {
		picked = picked[len(picked)-a.Limit:]
	}
	return map[string]interface{}{
		"total":   total,
		"matches": picked,
	}, nil
}
