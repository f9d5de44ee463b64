package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/lvillar/proposalgen/generator"
)

// RegisterResources adds the proposal resources to the server. Resources
// take their arguments as query parameters.
func RegisterResources(s *Server, gen *generator.Generator) {
	s.AddResource(Resource{
		URI:         "proposal://versions",
		Name:        "Proposal Versions",
		Description: "All versions of a proposal. Pass the proposal id as a query parameter: proposal://versions?id=3",
		MIMEType:    "application/json",
		Handler: func(ctx context.Context, uri string) ([]ResourceContent, error) {
			if gen.Store == nil {
				return nil, errNoStore
			}
			raw, err := queryParam(uri, "id")
			if err != nil {
				return nil, err
			}
			id, err := strconv.ParseUint(raw, 10, 64)
			if err != nil || id == 0 {
				return nil, fmt.Errorf("invalid proposal id %q", raw)
			}
			p, err := gen.Store.GetProposal(ctx, uint(id))
			if err != nil {
				return nil, err
			}
			return jsonContent(uri, map[string]any{
				"id":        p.ID,
				"title":     p.Title,
				"createdBy": p.CreatedBy,
				"versions":  versionInfos(p.Versions),
			})
		},
	})

	s.AddResource(Resource{
		URI:         "pdf://form-fields",
		Name:        "PDF Form Fields",
		Description: "List all form fields in a PDF template. Pass the file path as a query parameter: pdf://form-fields?path=/path/to/file.pdf",
		MIMEType:    "application/json",
		Handler: func(_ context.Context, uri string) ([]ResourceContent, error) {
			path, err := queryParam(uri, "path")
			if err != nil {
				return nil, err
			}
			info, err := formFieldInfo(path)
			if err != nil {
				return nil, err
			}
			return jsonContent(uri, info)
		},
	})
}

func queryParam(uri, key string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("invalid resource URI %q: %w", uri, err)
	}
	v := u.Query().Get(key)
	if v == "" {
		return "", fmt.Errorf("missing '%s' parameter in URI", key)
	}
	return v, nil
}

func jsonContent(uri string, v any) ([]ResourceContent, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return []ResourceContent{{
		URI:      uri,
		MIMEType: "application/json",
		Text:     string(data),
	}}, nil
}
