// Package mcp serves proposal generation to MCP (Model Context Protocol)
// clients as tools and resources.
//
// Messages are newline-delimited JSON-RPC 2.0 on stdin and stdout, following
// the 2024-11-05 revision of the protocol. Stdout carries protocol messages
// only, so the server logs to stderr.
//
//	{
//	  "mcpServers": {
//	    "proposals": {
//	      "command": "proposal-mcp",
//	      "args": ["--config", "proposalgen.yaml"]
//	    }
//	  }
//	}
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/lvillar/proposalgen/internal/logger"
)

// ProtocolVersion is the MCP revision the server speaks.
const ProtocolVersion = "2024-11-05"

// JSON-RPC error codes.
const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603
)

// Tool is a callable operation.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
	Handler     ToolHandler    `json:"-"`
}

// ToolHandler runs a tool. A returned error becomes a tool result flagged
// with isError rather than a protocol error.
type ToolHandler func(ctx context.Context, args map[string]any) (ToolResult, error)

// ToolResult is what a tool call returns to the client.
type ToolResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

// ContentBlock is one piece of a tool result.
type ContentBlock struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	MIMEType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

// Resource is a readable document. URI is matched without its query, so
// pdf://form-fields serves pdf://form-fields?path=/a.pdf.
type Resource struct {
	URI         string          `json:"uri"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	MIMEType    string          `json:"mimeType,omitempty"`
	Handler     ResourceHandler `json:"-"`
}

// ResourceHandler reads the resource named by the full URI.
type ResourceHandler func(ctx context.Context, uri string) ([]ResourceContent, error)

// ResourceContent is the body of a read resource.
type ResourceContent struct {
	URI      string `json:"uri"`
	MIMEType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
	Blob     string `json:"blob,omitempty"`
}

type jsonrpcRequest struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      *json.RawMessage `json:"id,omitempty"`
	Method  string           `json:"method"`
	Params  json.RawMessage  `json:"params,omitempty"`
}

type jsonrpcResponse struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      *json.RawMessage `json:"id"`
	Result  any              `json:"result,omitempty"`
	Error   *jsonrpcError    `json:"error,omitempty"`
}

type jsonrpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func rpcError(code int, message string, data any) *jsonrpcError {
	return &jsonrpcError{Code: code, Message: message, Data: data}
}

// method answers one request. A nil result with a nil error sends an empty
// object.
type method func(ctx context.Context, params json.RawMessage) (any, *jsonrpcError)

// Server holds the registered tools and resources.
type Server struct {
	Name    string
	Version string
	Log     *logger.Logger

	tools     map[string]Tool
	resources map[string]Resource
	methods   map[string]method

	input  io.Reader
	output io.Writer
	mu     sync.Mutex
}

// NewServer returns a server on stdin and stdout.
func NewServer(log *logger.Logger) *Server {
	return NewServerWithIO(os.Stdin, os.Stdout, log)
}

// NewServerWithIO returns a server on the given streams.
func NewServerWithIO(in io.Reader, out io.Writer, log *logger.Logger) *Server {
	s := &Server{
		Name:      "proposal-mcp",
		Version:   "1.0.0",
		Log:       log,
		tools:     make(map[string]Tool),
		resources: make(map[string]Resource),
		input:     in,
		output:    out,
	}
	s.methods = map[string]method{
		"initialize":     s.initialize,
		"ping":           func(context.Context, json.RawMessage) (any, *jsonrpcError) { return nil, nil },
		"tools/list":     s.listTools,
		"tools/call":     s.callTool,
		"resources/list": s.listResources,
		"resources/read": s.readResource,
	}
	return s
}

// AddTool registers t, replacing any tool of the same name.
func (s *Server) AddTool(t Tool) {
	s.tools[t.Name] = t
}

// AddResource registers r, replacing any resource with the same base URI.
func (s *Server) AddResource(r Resource) {
	s.resources[resourceKey(r.URI)] = r
}

// Run serves requests one at a time until the input ends or ctx is done.
func (s *Server) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(s.input)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req jsonrpcRequest
		if err := json.Unmarshal(line, &req); err != nil {
			s.reply(nil, nil, rpcError(codeParseError, "Parse error", err.Error()))
			continue
		}
		s.dispatch(ctx, req)
	}
	return scanner.Err()
}

// dispatch answers req. Notifications carry no id and get no reply.
func (s *Server) dispatch(ctx context.Context, req jsonrpcRequest) {
	s.Log.Debugf("mcp: %s", req.Method)
	if req.ID == nil {
		return
	}
	m, ok := s.methods[req.Method]
	if !ok {
		s.reply(req.ID, nil, rpcError(codeMethodNotFound, "Method not found", req.Method))
		return
	}
	result, rerr := m(ctx, req.Params)
	if result == nil && rerr == nil {
		result = map[string]any{}
	}
	s.reply(req.ID, result, rerr)
}

func (s *Server) initialize(context.Context, json.RawMessage) (any, *jsonrpcError) {
	return map[string]any{
		"protocolVersion": ProtocolVersion,
		"capabilities": map[string]any{
			"tools":     map[string]any{},
			"resources": map[string]any{},
		},
		"serverInfo": map[string]any{"name": s.Name, "version": s.Version},
	}, nil
}

func (s *Server) listTools(context.Context, json.RawMessage) (any, *jsonrpcError) {
	tools := make([]Tool, 0, len(s.tools))
	for _, t := range s.tools {
		tools = append(tools, t)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })
	return map[string]any{"tools": tools}, nil
}

func (s *Server) callTool(ctx context.Context, params json.RawMessage) (any, *jsonrpcError) {
	var p struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, rpcError(codeInvalidParams, "Invalid params", err.Error())
	}
	tool, ok := s.tools[p.Name]
	if !ok {
		return nil, rpcError(codeInvalidParams, "Unknown tool", p.Name)
	}
	if p.Arguments == nil {
		p.Arguments = map[string]any{}
	}

	res, err := tool.Handler(ctx, p.Arguments)
	if err != nil {
		s.Log.Warnf("mcp: tool %s: %v", p.Name, err)
		return ToolResult{
			Content: []ContentBlock{{Type: "text", Text: fmt.Sprintf("Error: %v", err)}},
			IsError: true,
		}, nil
	}
	return res, nil
}

func (s *Server) listResources(context.Context, json.RawMessage) (any, *jsonrpcError) {
	list := make([]Resource, 0, len(s.resources))
	for _, r := range s.resources {
		list = append(list, r)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].URI < list[j].URI })
	return map[string]any{"resources": list}, nil
}

func (s *Server) readResource(ctx context.Context, params json.RawMessage) (any, *jsonrpcError) {
	var p struct {
		URI string `json:"uri"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, rpcError(codeInvalidParams, "Invalid params", err.Error())
	}
	r, ok := s.resources[resourceKey(p.URI)]
	if !ok {
		return nil, rpcError(codeInvalidParams, "Unknown resource", p.URI)
	}
	contents, err := r.Handler(ctx, p.URI)
	if err != nil {
		return nil, rpcError(codeInternalError, "Resource error", err.Error())
	}
	return map[string]any{"contents": contents}, nil
}

// reply writes one response line. Writes are serialised so a response is
// never interleaved with another.
func (s *Server) reply(id *json.RawMessage, result any, rerr *jsonrpcError) {
	resp := jsonrpcResponse{JSONRPC: "2.0", ID: id, Error: rerr}
	if rerr == nil {
		resp.Result = result
	}
	data, err := json.Marshal(resp)
	if err != nil {
		s.Log.Errorf("mcp: encoding response: %v", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.output.Write(append(data, '\n')); err != nil {
		s.Log.Errorf("mcp: writing response: %v", err)
	}
}

// resourceKey strips the query from a resource URI.
func resourceKey(uri string) string {
	if i := strings.IndexByte(uri, '?'); i >= 0 {
		return uri[:i]
	}
	return uri
}
