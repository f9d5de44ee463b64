package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lvillar/proposalgen/generator"
	"github.com/lvillar/proposalgen/internal/config"
	"github.com/lvillar/proposalgen/internal/logger"
	"github.com/lvillar/proposalgen/internal/pdftest"
	"github.com/lvillar/proposalgen/store"
)

func sendRequest(t *testing.T, s *Server, method string, id int, params any) jsonrpcResponse {
	t.Helper()

	req := map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  method,
	}
	if params != nil {
		req["params"] = params
	}

	reqBytes, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshaling request: %v", err)
	}
	reqBytes = append(reqBytes, '\n')

	var output bytes.Buffer
	s.input = bytes.NewReader(reqBytes)
	s.output = &output

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var resp jsonrpcResponse
	if err := json.Unmarshal(output.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshaling response %q: %v", output.String(), err)
	}
	return resp
}

// callTool invokes a tool and returns its text content.
func callTool(t *testing.T, s *Server, name string, args map[string]any) (string, bool) {
	t.Helper()
	resp := sendRequest(t, s, "tools/call", 1, map[string]any{"name": name, "arguments": args})
	if resp.Error != nil {
		t.Fatalf("%s: protocol error: %s", name, resp.Error.Message)
	}
	raw, _ := json.Marshal(resp.Result)
	var res ToolResult
	if err := json.Unmarshal(raw, &res); err != nil {
		t.Fatalf("decoding tool result: %v", err)
	}
	if len(res.Content) == 0 {
		t.Fatalf("%s: empty content", name)
	}
	return res.Content[0].Text, res.IsError
}

type fixture struct {
	gen *generator.Generator
	cfg *config.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	cfg := &config.Config{
		TemplatesDir:      filepath.Join(root, "templates"),
		OutputDir:         filepath.Join(root, "output"),
		WorkDir:           filepath.Join(root, "work"),
		ImagesDir:         filepath.Join(root, "images"),
		MembersDir:        filepath.Join(root, "members"),
		FrontPageTemplate: "front_page.pdf",
		BaseURL:           "https://example.com/files",
		CreatedBy:         "mcp",
	}
	if err := os.MkdirAll(cfg.TemplatesDir, 0o755); err != nil {
		t.Fatal(err)
	}
	pdftest.Plain(t, filepath.Join(cfg.TemplatesDir, "Intro.pdf"), 1)

	st, err := store.Open("file:"+t.Name()+"?mode=memory&cache=shared", store.Options{Log: logger.Discard()})
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	sqlDB, _ := st.DB().DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = st.Close() })

	return &fixture{gen: generator.New(cfg, st, logger.Discard()), cfg: cfg}
}

func (f *fixture) server() *Server {
	s := NewServerWithIO(nil, nil, logger.Discard())
	RegisterTools(s, f.gen)
	RegisterResources(s, f.gen)
	return s
}

var introConfig = map[string]any{
	"company": "Acme",
	"templates": []any{
		map[string]any{"name": "Intro", "fileName": "Intro.pdf", "editable": false},
	},
}

func TestServerInitialize(t *testing.T) {
	s := NewServerWithIO(nil, nil, logger.Discard())

	resp := sendRequest(t, s, "initialize", 1, map[string]any{
		"protocolVersion": "2024-11-05",
		"capabilities":    map[string]any{},
		"clientInfo":      map[string]any{"name": "test", "version": "1.0"},
	})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error.Message)
	}

	result, ok := resp.Result.(map[string]any)
	if !ok {
		t.Fatal("result is not a map")
	}
	if result["protocolVersion"] != "2024-11-05" {
		t.Fatalf("unexpected protocol version: %v", result["protocolVersion"])
	}
	serverInfo, ok := result["serverInfo"].(map[string]any)
	if !ok {
		t.Fatal("missing serverInfo")
	}
	if serverInfo["name"] != "proposal-mcp" {
		t.Fatalf("unexpected server name: %v", serverInfo["name"])
	}
}

func TestServerToolsList(t *testing.T) {
	s := newFixture(t).server()

	resp := sendRequest(t, s, "tools/list", 2, nil)
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error.Message)
	}
	result := resp.Result.(map[string]any)
	tools, ok := result["tools"].([]any)
	if !ok {
		t.Fatal("tools is not an array")
	}

	var names []string
	for _, tool := range tools {
		names = append(names, tool.(map[string]any)["name"].(string))
	}
	want := "auto_map_images,check_templates,fill_form,generate_proposal,list_versions,pdf_form_fields,refine_proposal,update_status,validate_config"
	if got := strings.Join(names, ","); got != want {
		t.Errorf("tools = %s\nwant    %s", got, want)
	}
}

func TestServerPingAndUnknownMethod(t *testing.T) {
	s := NewServerWithIO(nil, nil, logger.Discard())

	if resp := sendRequest(t, s, "ping", 4, nil); resp.Error != nil {
		t.Fatalf("ping: %v", resp.Error.Message)
	}
	resp := sendRequest(t, s, "nonexistent/method", 5, nil)
	if resp.Error == nil || resp.Error.Code != -32601 {
		t.Fatalf("expected -32601, got %+v", resp.Error)
	}
}

func TestServerUnknownTool(t *testing.T) {
	s := newFixture(t).server()
	resp := sendRequest(t, s, "tools/call", 6, map[string]any{
		"name":      "nonexistent_tool",
		"arguments": map[string]any{},
	})
	if resp.Error == nil {
		t.Fatal("expected error for unknown tool")
	}
}

func TestGenerateAndRefineTools(t *testing.T) {
	f := newFixture(t)
	s := f.server()

	text, isErr := callTool(t, s, "generate_proposal", map[string]any{"config": introConfig, "createdBy": "alice"})
	if isErr {
		t.Fatalf("generate_proposal failed: %s", text)
	}
	var sum generator.Summary
	if err := json.Unmarshal([]byte(text), &sum); err != nil {
		t.Fatalf("decoding summary: %v", err)
	}
	if sum.VersionNumber != 1 || sum.Pages != 3 || !strings.HasPrefix(sum.DownloadURL, "https://example.com/files/Acme_v1_") {
		t.Errorf("summary = %+v", sum)
	}

	text, isErr = callTool(t, s, "refine_proposal", map[string]any{"proposalId": float64(sum.ProposalID)})
	if isErr {
		t.Fatalf("refine_proposal failed: %s", text)
	}

	text, isErr = callTool(t, s, "list_versions", map[string]any{"proposalId": float64(sum.ProposalID)})
	if isErr {
		t.Fatalf("list_versions failed: %s", text)
	}
	var versions []versionInfo
	if err := json.Unmarshal([]byte(text), &versions); err != nil {
		t.Fatal(err)
	}
	if len(versions) != 2 || versions[1].Label != "v2" || versions[1].DocumentPath == "" {
		t.Errorf("versions = %+v", versions)
	}

	text, isErr = callTool(t, s, "update_status", map[string]any{"versionId": float64(versions[1].ID), "status": "Submitted"})
	if isErr || !strings.Contains(text, "submitted") {
		t.Errorf("update_status: %s", text)
	}
	if text, isErr = callTool(t, s, "update_status", map[string]any{"versionId": float64(versions[1].ID), "status": "lost"}); !isErr {
		t.Errorf("invalid status accepted: %s", text)
	}

	resp := sendRequest(t, s, "resources/read", 9, map[string]any{"uri": "proposal://versions?id=" + jsonNumber(sum.ProposalID)})
	if resp.Error != nil {
		t.Fatalf("resources/read: %s", resp.Error.Message)
	}
	raw, _ := json.Marshal(resp.Result)
	if !strings.Contains(string(raw), `\"label\": \"v2\"`) {
		t.Errorf("resource missing v2: %s", raw)
	}
}

func TestValidateConfigTool(t *testing.T) {
	s := newFixture(t).server()

	text, isErr := callTool(t, s, "validate_config", map[string]any{"config": map[string]any{"company": "", "templates": []any{}}})
	if isErr {
		t.Fatalf("validate_config failed: %s", text)
	}
	var out struct {
		Valid    bool     `json:"valid"`
		Problems []string `json:"problems"`
	}
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		t.Fatal(err)
	}
	if out.Valid || len(out.Problems) != 2 {
		t.Errorf("result = %+v", out)
	}

	if text, isErr := callTool(t, s, "generate_proposal", map[string]any{"config": map[string]any{"company": "X"}}); !isErr {
		t.Errorf("invalid config generated: %s", text)
	}
}

func TestCheckTemplatesTool(t *testing.T) {
	s := newFixture(t).server()
	text, isErr := callTool(t, s, "check_templates", map[string]any{"config": introConfig})
	if isErr {
		t.Fatalf("check_templates failed: %s", text)
	}
	var check generator.TemplateCheck
	if err := json.Unmarshal([]byte(text), &check); err != nil {
		t.Fatal(err)
	}
	if check.Valid || len(check.Missing) != 1 || check.Missing[0] != "front_page.pdf" {
		t.Errorf("check = %+v", check)
	}
}

func TestFormTools(t *testing.T) {
	f := newFixture(t)
	s := f.server()
	tpl := pdftest.FormTemplate(t, filepath.Join(f.cfg.TemplatesDir, "Letter.pdf"), []string{"company"}, []string{"Image1_af_image"})

	text, isErr := callTool(t, s, "pdf_form_fields", map[string]any{"path": tpl})
	if isErr {
		t.Fatalf("pdf_form_fields failed: %s", text)
	}
	if !strings.Contains(text, `"fieldCount": 2`) || !strings.Contains(text, `"imagePlaceholder": true`) {
		t.Errorf("unexpected field listing: %s", text)
	}

	out := filepath.Join(t.TempDir(), "filled.pdf")
	text, isErr = callTool(t, s, "fill_form", map[string]any{
		"inputPath":  tpl,
		"outputPath": out,
		"values":     map[string]any{"company": "Acme"},
	})
	if isErr {
		t.Fatalf("fill_form failed: %s", text)
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("filled PDF not written: %v", err)
	}

	resp := sendRequest(t, s, "resources/read", 3, map[string]any{"uri": "pdf://form-fields?path=" + tpl})
	if resp.Error != nil {
		t.Fatalf("resources/read: %s", resp.Error.Message)
	}
}

func TestAutoMapImagesTool(t *testing.T) {
	s := newFixture(t).server()
	dir := t.TempDir()
	for _, name := range []string{"Bob.png", "Alice.jpg", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	text, isErr := callTool(t, s, "auto_map_images", map[string]any{"imagesDir": dir})
	if isErr {
		t.Fatalf("auto_map_images failed: %s", text)
	}
	a := strings.Index(text, "Image1_af_image")
	b := strings.Index(text, "Alice.jpg")
	if a < 0 || b < a || !strings.Contains(text, `"count": 2`) {
		t.Errorf("unexpected mapping: %s", text)
	}

	if _, isErr := callTool(t, s, "auto_map_images", map[string]any{"imagesDir": filepath.Join(dir, "missing")}); !isErr {
		t.Error("missing directory accepted")
	}
}

func TestServerMultipleRequests(t *testing.T) {
	requests := []string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"test","version":"1.0"}}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
		`{"jsonrpc":"2.0","id":3,"method":"resources/list"}`,
		`{"jsonrpc":"2.0","id":4,"method":"ping"}`,
	}

	input := strings.Join(requests, "\n") + "\n"
	var output bytes.Buffer

	f := newFixture(t)
	s := NewServerWithIO(strings.NewReader(input), &output, logger.Discard())
	RegisterTools(s, f.gen)
	RegisterResources(s, f.gen)

	if err := s.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(output.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 responses, got %d: %s", len(lines), output.String())
	}
	for i, line := range lines {
		var resp jsonrpcResponse
		if err := json.Unmarshal([]byte(line), &resp); err != nil {
			t.Fatalf("response %d: unmarshal error: %v\nline: %s", i, err, line)
		}
		if resp.Error != nil {
			t.Errorf("response %d: unexpected error: %s", i, resp.Error.Message)
		}
	}
}

func TestServerParseErrorAndNotification(t *testing.T) {
	input := "{not json}\n" + `{"jsonrpc":"2.0","method":"ping"}` + "\n"
	var output bytes.Buffer
	s := NewServerWithIO(strings.NewReader(input), &output, logger.Discard())
	if err := s.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(output.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected only the parse error, got %d lines: %s", len(lines), output.String())
	}
	var resp jsonrpcResponse
	if err := json.Unmarshal([]byte(lines[0]), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error == nil || resp.Error.Code != codeParseError {
		t.Errorf("expected parse error, got %+v", resp.Error)
	}
}

func TestAddTool(t *testing.T) {
	s := NewServerWithIO(nil, nil, logger.Discard())
	s.AddTool(Tool{
		Name:        "custom_tool",
		Description: "A custom test tool",
		InputSchema: map[string]any{"type": "object", "properties": map[string]any{}},
		Handler: func(_ context.Context, _ map[string]any) (ToolResult, error) {
			return textResult("custom result"), nil
		},
	})

	text, isErr := callTool(t, s, "custom_tool", map[string]any{})
	if isErr || text != "custom result" {
		t.Fatalf("unexpected result: %s", text)
	}
}

func jsonNumber(n uint) string {
	b, _ := json.Marshal(n)
	return string(b)
}
