package gemini

import (
	"fmt"
	"sort"

	"github.com/getkin/kin-openapi/openapi3"
	"google.golang.org/genai"
)

// ConvertSchema maps the OpenAPI subset used for structured output onto genai.Schema.
// Property order follows Required first, then the remaining names sorted, so that
// the model emits keys in a stable order.
func ConvertSchema(s *openapi3.Schema) (*genai.Schema, error) {
	if s == nil {
		return nil, nil
	}

	out := &genai.Schema{
		Description: s.Description,
		Required:    append([]string(nil), s.Required...),
	}

	switch {
	case s.Type.Is(openapi3.TypeObject):
		out.Type = genai.TypeObject
	case s.Type.Is(openapi3.TypeArray):
		out.Type = genai.TypeArray
	case s.Type.Is(openapi3.TypeString):
		out.Type = genai.TypeString
	case s.Type.Is(openapi3.TypeInteger):
		out.Type = genai.TypeInteger
	case s.Type.Is(openapi3.TypeNumber):
		out.Type = genai.TypeNumber
	case s.Type.Is(openapi3.TypeBoolean):
		out.Type = genai.TypeBoolean
	default:
		return nil, fmt.Errorf("unsupported schema type %v", s.Type.Slice())
	}

	for _, v := range s.Enum {
		str, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("enum value %v is not a string", v)
		}
		out.Enum = append(out.Enum, str)
	}

	if s.Min != nil {
		minimum := *s.Min
		out.Minimum = &minimum
	}

	if s.Items != nil && s.Items.Value != nil {
		items, err := ConvertSchema(s.Items.Value)
		if err != nil {
			return nil, fmt.Errorf("items: %w", err)
		}
		out.Items = items
	}

	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, ref := range s.Properties {
			if ref == nil || ref.Value == nil {
				continue
			}
			prop, err := ConvertSchema(ref.Value)
			if err != nil {
				return nil, fmt.Errorf("property %s: %w", name, err)
			}
			out.Properties[name] = prop
		}
		out.PropertyOrdering = propertyOrder(s)
	}

	return out, nil
}

func propertyOrder(s *openapi3.Schema) []string {
	seen := make(map[string]bool, len(s.Properties))
	order := make([]string, 0, len(s.Properties))
	for _, name := range s.Required {
		if _, ok := s.Properties[name]; ok && !seen[name] {
			order = append(order, name)
			seen[name] = true
		}
	}
	rest := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(order, rest...)
}
