package ai

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"

	"google.golang.org/genai"
)

// ToolName is the function the upstream model is forced to call
const (
	ToolName        = "analyze_resume"
	ToolDescription = "Returns structured resume analysis results"
)

// JSONSchema is the subset of JSON Schema used to describe the tool parameters
type JSONSchema struct {
	Type                 string                 `json:"type"`
	Description          string                 `json:"description,omitempty"`
	Properties           map[string]*JSONSchema `json:"properties,omitempty"`
	Items                *JSONSchema            `json:"items,omitempty"`
	Required             []string               `json:"required,omitempty"`
	Enum                 []string               `json:"enum,omitempty"`
	AdditionalProperties *bool                  `json:"additionalProperties,omitempty"`
}

// AnalysisSchema returns the parameter schema of the analyze_resume tool.
// It mirrors types.AnalysisResult.
func AnalysisSchema() *JSONSchema {
	closed := false
	return &JSONSchema{
		Type: "object",
		Properties: map[string]*JSONSchema{
			"atsScore": {
				Type:        "number",
				Description: "ATS compatibility score from 0-100",
			},
			"matchedSkills": {
				Type:        "array",
				Items:       &JSONSchema{Type: "string"},
				Description: "Skills found in both resume and job description",
			},
			"missingSkills": {
				Type:        "array",
				Items:       &JSONSchema{Type: "string"},
				Description: "Important skills from job description missing in resume",
			},
			"suggestions": {
				Type:        "array",
				Description: "3-5 prioritized improvement suggestions",
				Items: &JSONSchema{
					Type: "object",
					Properties: map[string]*JSONSchema{
						"title":       {Type: "string"},
						"description": {Type: "string"},
						"priority":    {Type: "string", Enum: []string{"high", "medium", "low"}},
					},
					Required: []string{"title", "description", "priority"},
				},
			},
			"topCompanies": {
				Type:        "array",
				Description: "Top 5 company matches based on resume",
				Items: &JSONSchema{
					Type: "object",
					Properties: map[string]*JSONSchema{
						"company":       {Type: "string"},
						"position":      {Type: "string"},
						"location":      {Type: "string"},
						"score":         {Type: "number"},
						"matchedSkills": {Type: "number"},
						"totalSkills":   {Type: "number"},
					},
					Required: []string{"company", "position", "location", "score", "matchedSkills", "totalSkills"},
				},
			},
		},
		Required:             []string{"atsScore", "matchedSkills", "missingSkills", "suggestions", "topCompanies"},
		AdditionalProperties: &closed,
	}
}

// Validate checks a decoded JSON value against the schema.
// Numbers must be decoded with UseNumber or as float64.
func (s *JSONSchema) Validate(value any) error {
	return s.validate("$", value)
}

func (s *JSONSchema) validate(path string, value any) error {
	switch s.Type {
	case "object":
		obj, ok := value.(map[string]any)
		if !ok {
			return fmt.Errorf("%s: expected object, got %s", path, jsonTypeName(value))
		}
		for _, key := range s.Required {
			if _, present := obj[key]; !present {
				return fmt.Errorf("%s: missing required field %q", path, key)
			}
		}
		keys := make([]string, 0, len(obj))
		for key := range obj {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			prop, known := s.Properties[key]
			if !known {
				if s.AdditionalProperties != nil && !*s.AdditionalProperties {
					return fmt.Errorf("%s: unexpected field %q", path, key)
				}
				continue
			}
			if err := prop.validate(path+"."+key, obj[key]); err != nil {
				return err
			}
		}
	case "array":
		items, ok := value.([]any)
		if !ok {
			return fmt.Errorf("%s: expected array, got %s", path, jsonTypeName(value))
		}
		if s.Items == nil {
			return nil
		}
		for i, item := range items {
			if err := s.Items.validate(fmt.Sprintf("%s[%d]", path, i), item); err != nil {
				return err
			}
		}
	case "string":
		str, ok := value.(string)
		if !ok {
			return fmt.Errorf("%s: expected string, got %s", path, jsonTypeName(value))
		}
		if len(s.Enum) > 0 && !slices.Contains(s.Enum, str) {
			return fmt.Errorf("%s: %q is not one of %v", path, str, s.Enum)
		}
	case "number":
		switch value.(type) {
		case json.Number, float64:
		default:
			return fmt.Errorf("%s: expected number, got %s", path, jsonTypeName(value))
		}
	}
	return nil
}

func jsonTypeName(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number, float64:
		return "number"
	default:
		return fmt.Sprintf("%T", value)
	}
}

// GenaiSchema converts the schema into the Gemini function declaration form.
// Gemini has no additionalProperties; the local validator enforces it instead.
func (s *JSONSchema) GenaiSchema() *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Description: s.Description,
		Required:    s.Required,
		Enum:        s.Enum,
		Items:       s.Items.GenaiSchema(),
	}
	switch s.Type {
	case "object":
		out.Type = genai.TypeObject
	case "array":
		out.Type = genai.TypeArray
	case "string":
		out.Type = genai.TypeString
	case "number":
		out.Type = genai.TypeNumber
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = prop.GenaiSchema()
		}
	}
	return out
}
