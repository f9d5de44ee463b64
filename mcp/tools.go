package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lvillar/proposalgen"
	"github.com/lvillar/proposalgen/form"
	"github.com/lvillar/proposalgen/generator"
	"github.com/lvillar/proposalgen/reader"
	"github.com/lvillar/proposalgen/store"
)

// RegisterTools adds the proposal tools to the server. Tools that need
// the database report an error when gen has no store.
func RegisterTools(s *Server, gen *generator.Generator) {
	s.AddTool(generateProposalTool(gen))
	s.AddTool(refineProposalTool(gen))
	s.AddTool(validateConfigTool())
	s.AddTool(checkTemplatesTool(gen))
	s.AddTool(autoMapImagesTool())
	s.AddTool(listVersionsTool(gen))
	s.AddTool(updateStatusTool(gen))
	s.AddTool(formFieldsTool())
	s.AddTool(fillFormTool())
}

var configSchema = map[string]any{
	"type":        "object",
	"description": "Proposal configuration: {company, templates:[{name, fileName, editable, fieldValues, ...}]}. Wrapped forms such as {config:{...}} are accepted.",
}

func generateProposalTool(gen *generator.Generator) Tool {
	return Tool{
		Name:        "generate_proposal",
		Description: "Generate a proposal PDF (front page, table of contents, sections, page numbers) and record version 1 unless an explicit file name is given. Returns a JSON summary.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"config": configSchema,
				"outputFileName": map[string]any{
					"type":        "string",
					"description": "Optional output file name; no version record is created when set",
				},
				"createdBy": map[string]any{
					"type":        "string",
					"description": "Author stored on the version record",
				},
			},
			"required": []string{"config"},
		},
		Handler: func(ctx context.Context, args map[string]any) (ToolResult, error) {
			cfg, err := configArg(args)
			if err != nil {
				return ToolResult{}, err
			}
			sum, err := gen.Generate(ctx, cfg, generator.GenerateOptions{
				OutputFileName: stringArg(args, "outputFileName"),
				CreatedBy:      stringArg(args, "createdBy"),
			})
			if err != nil {
				return ToolResult{}, err
			}
			return jsonResult(sum)
		},
	}
}

func refineProposalTool(gen *generator.Generator) Tool {
	return Tool{
		Name:        "refine_proposal",
		Description: "Generate the next version of an existing proposal. Without a config the configuration of the latest version is reused.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"proposalId": map[string]any{"type": "integer", "description": "Proposal id"},
				"config":     configSchema,
				"createdBy":  map[string]any{"type": "string", "description": "Author stored on the version record"},
			},
			"required": []string{"proposalId"},
		},
		Handler: func(ctx context.Context, args map[string]any) (ToolResult, error) {
			id, err := idArg(args, "proposalId")
			if err != nil {
				return ToolResult{}, err
			}
			var cfg *proposalgen.ProposalConfig
			if _, ok := args["config"]; ok {
				if cfg, err = configArg(args); err != nil {
					return ToolResult{}, err
				}
			}
			sum, err := gen.Refine(ctx, id, cfg, stringArg(args, "createdBy"))
			if err != nil {
				return ToolResult{}, err
			}
			return jsonResult(sum)
		},
	}
}

func validateConfigTool() Tool {
	return Tool{
		Name:        "validate_config",
		Description: "Check a proposal configuration for structural problems without generating anything.",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"config": configSchema},
			"required":   []string{"config"},
		},
		Handler: func(_ context.Context, args map[string]any) (ToolResult, error) {
			problems := proposalgen.Validate(args["config"])
			return jsonResult(map[string]any{
				"valid":    len(problems) == 0,
				"problems": problems,
			})
		},
	}
}

func checkTemplatesTool(gen *generator.Generator) Tool {
	return Tool{
		Name:        "check_templates",
		Description: "Report which template files referenced by a configuration, plus the front page template, are missing.",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"config": configSchema},
			"required":   []string{"config"},
		},
		Handler: func(_ context.Context, args map[string]any) (ToolResult, error) {
			cfg, err := configArg(args)
			if err != nil {
				return ToolResult{}, err
			}
			return jsonResult(gen.ValidateTemplates(cfg))
		},
	}
}

func autoMapImagesTool() Tool {
	return Tool{
		Name:        "auto_map_images",
		Description: "Map the JPEG and PNG files of a directory, sorted by name, to numbered image fields.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"imagesDir": map[string]any{"type": "string", "description": "Directory holding the images"},
				"prefix":    map[string]any{"type": "string", "description": "Field name prefix (default: Image)"},
				"suffix":    map[string]any{"type": "string", "description": "Field name suffix (default: _af_image)"},
				"maxCount":  map[string]any{"type": "integer", "description": "Maximum number of images; 0 maps all"},
			},
			"required": []string{"imagesDir"},
		},
		Handler: func(_ context.Context, args map[string]any) (ToolResult, error) {
			dir := stringArg(args, "imagesDir")
			if dir == "" {
				return ToolResult{}, fmt.Errorf("missing 'imagesDir' argument")
			}
			prefix, suffix := proposalgen.ImageFieldPrefix, proposalgen.ImageFieldSuffix
			if _, ok := args["prefix"]; ok {
				prefix = stringArg(args, "prefix")
			}
			if _, ok := args["suffix"]; ok {
				suffix = stringArg(args, "suffix")
			}
			maxCount, _ := args["maxCount"].(float64)
			mappings, err := form.AutoMapImages(dir, prefix, int(maxCount), suffix)
			if err != nil {
				return ToolResult{}, err
			}
			return jsonResult(map[string]any{"count": len(mappings), "mappings": mappings})
		},
	}
}

func listVersionsTool(gen *generator.Generator) Tool {
	return Tool{
		Name:        "list_versions",
		Description: "List the versions of a proposal, oldest first, with their status and document path.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"proposalId": map[string]any{"type": "integer", "description": "Proposal id"},
			},
			"required": []string{"proposalId"},
		},
		Handler: func(ctx context.Context, args map[string]any) (ToolResult, error) {
			if gen.Store == nil {
				return ToolResult{}, errNoStore
			}
			id, err := idArg(args, "proposalId")
			if err != nil {
				return ToolResult{}, err
			}
			versions, err := gen.Store.ListVersions(ctx, id)
			if err != nil {
				return ToolResult{}, err
			}
			return jsonResult(versionInfos(versions))
		},
	}
}

func updateStatusTool(gen *generator.Generator) Tool {
	statuses := make([]string, len(store.Statuses))
	for i, st := range store.Statuses {
		statuses[i] = string(st)
	}
	return Tool{
		Name:        "update_status",
		Description: "Move a proposal version to a new review status.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"versionId": map[string]any{"type": "integer", "description": "Version id"},
				"status":    map[string]any{"type": "string", "enum": statuses},
			},
			"required": []string{"versionId", "status"},
		},
		Handler: func(ctx context.Context, args map[string]any) (ToolResult, error) {
			if gen.Store == nil {
				return ToolResult{}, errNoStore
			}
			id, err := idArg(args, "versionId")
			if err != nil {
				return ToolResult{}, err
			}
			status, err := store.ParseStatus(stringArg(args, "status"))
			if err != nil {
				return ToolResult{}, err
			}
			if err := gen.Store.UpdateStatus(ctx, id, status); err != nil {
				return ToolResult{}, err
			}
			return textResult(fmt.Sprintf("Version %d is now %s", id, status)), nil
		},
	}
}

func formFieldsTool() Tool {
	return Tool{
		Name:        "pdf_form_fields",
		Description: "List the form fields of a PDF template with their type, page and widget rectangle.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{"type": "string", "description": "Path to the PDF file"},
			},
			"required": []string{"path"},
		},
		Handler: func(_ context.Context, args map[string]any) (ToolResult, error) {
			info, err := formFieldInfo(stringArg(args, "path"))
			if err != nil {
				return ToolResult{}, err
			}
			return jsonResult(info)
		},
	}
}

func fillFormTool() Tool {
	return Tool{
		Name:        "fill_form",
		Description: "Fill form fields of a PDF with values. The form stays editable.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"inputPath":  map[string]any{"type": "string", "description": "Path to the PDF form"},
				"outputPath": map[string]any{"type": "string", "description": "Path for the filled PDF"},
				"values": map[string]any{
					"type":                 "object",
					"description":          "Map of field names to values",
					"additionalProperties": map[string]any{"type": "string"},
				},
			},
			"required": []string{"inputPath", "outputPath", "values"},
		},
		Handler: func(_ context.Context, args map[string]any) (ToolResult, error) {
			inputPath := stringArg(args, "inputPath")
			outputPath := stringArg(args, "outputPath")
			rawValues, _ := args["values"].(map[string]any)
			if inputPath == "" || outputPath == "" || rawValues == nil {
				return ToolResult{}, fmt.Errorf("inputPath, outputPath, and values are required")
			}

			values := make(map[string]string, len(rawValues))
			for k, v := range rawValues {
				values[k] = fmt.Sprint(v)
			}
			if err := form.FillFile(inputPath, outputPath, values); err != nil {
				return ToolResult{}, fmt.Errorf("filling form: %w", err)
			}
			return textResult(fmt.Sprintf("Filled %d fields: %s", len(values), outputPath)), nil
		},
	}
}

var errNoStore = fmt.Errorf("%w: no database configured", proposalgen.ErrPersistence)

// configArg decodes the "config" argument, given either as an object or as
// a JSON or YAML string.
func configArg(args map[string]any) (*proposalgen.ProposalConfig, error) {
	raw, ok := args["config"]
	if !ok {
		return nil, fmt.Errorf("missing 'config' argument")
	}
	if s, ok := raw.(string); ok {
		return proposalgen.Parse([]byte(s))
	}
	return proposalgen.FromValue(raw)
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return strings.TrimSpace(s)
}

// idArg reads a positive integer id. JSON numbers arrive as float64.
func idArg(args map[string]any, key string) (uint, error) {
	switch v := args[key].(type) {
	case float64:
		if v >= 1 && v == float64(uint(v)) {
			return uint(v), nil
		}
	case string:
		var n uint
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil && n > 0 {
			return n, nil
		}
	}
	return 0, fmt.Errorf("'%s' must be a positive integer", key)
}

func textResult(text string) ToolResult {
	return ToolResult{Content: []ContentBlock{{Type: "text", Text: text}}}
}

func jsonResult(v any) (ToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return ToolResult{}, fmt.Errorf("encoding result: %w", err)
	}
	return ToolResult{Content: []ContentBlock{{Type: "text", MIMEType: "application/json", Text: string(data)}}}, nil
}

type versionInfo struct {
	ID            uint   `json:"id"`
	VersionNumber int    `json:"versionNumber"`
	Label         string `json:"label"`
	Status        string `json:"status"`
	DocumentPath  string `json:"documentPath"`
	CreatedBy     string `json:"createdBy"`
	CreatedAt     string `json:"createdAt"`
}

func versionInfos(versions []store.ProposalVersion) []versionInfo {
	out := make([]versionInfo, 0, len(versions))
	for _, v := range versions {
		out = append(out, versionInfo{
			ID:            v.ID,
			VersionNumber: v.VersionNumber,
			Label:         v.VersionLabel,
			Status:        string(v.Status),
			DocumentPath:  v.DocumentPath,
			CreatedBy:     v.CreatedBy,
			CreatedAt:     v.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
	return out
}

type fieldInfo struct {
	Name     string    `json:"name"`
	Type     string    `json:"type"`
	Value    string    `json:"value,omitempty"`
	Page     int       `json:"page"`
	Rect     []float64 `json:"rect,omitempty"`
	ReadOnly bool      `json:"readOnly,omitempty"`
	Image    bool      `json:"imagePlaceholder,omitempty"`
}

func formFieldInfo(path string) (map[string]any, error) {
	if path == "" {
		return nil, fmt.Errorf("missing 'path' argument")
	}
	doc, err := reader.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	all, err := doc.AllFields()
	if err != nil {
		return nil, fmt.Errorf("reading form fields: %w", err)
	}

	fields := make([]fieldInfo, 0, len(all))
	for _, f := range all {
		if f.Name == "" || f.Type == "" {
			continue
		}
		fi := fieldInfo{
			Name:     f.FullName,
			Type:     f.Type,
			Value:    f.Value,
			Page:     f.Page + 1,
			ReadOnly: f.IsReadOnly(),
			Image:    f.IsPushButton() || strings.HasSuffix(f.FullName, proposalgen.ImageFieldSuffix),
		}
		if w := f.Widget(); w != nil {
			fi.Page = w.Page + 1
			fi.Rect = []float64{w.Rect.LLX, w.Rect.LLY, w.Rect.URX, w.Rect.URY}
		}
		fields = append(fields, fi)
	}
	return map[string]any{
		"path":       path,
		"pages":      doc.NumPages(),
		"fieldCount": len(fields),
		"fields":     fields,
	}, nil
}
