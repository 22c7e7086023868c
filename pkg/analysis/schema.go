package analysis

import (
	"github.com/aretw0/proofline/pkg/domain"
	"github.com/getkin/kin-openapi/openapi3"
)

// Response field names shared by the schema, the decoder and the prompt.
const (
	fieldCorrectedFullText = "correctedFullText"
	fieldIssues            = "issues"
	fieldStatistics        = "statistics"

	fieldOriginal    = "original"
	fieldReplacement = "replacement"
	fieldExplanation = "explanation"
	fieldCategory    = "category"
	fieldContext     = "context"

	fieldWordCount        = "wordCount"
	fieldCharacterCount   = "characterCount"
	fieldReadabilityScore = "readabilityScore"
	fieldTone             = "tone"
)

// ResponseSchema builds the strict output schema declared to the service.
// The same schema validates the response body on receipt.
func ResponseSchema() *openapi3.Schema {
	categories := make([]any, 0, len(domain.Categories()))
	for _, c := range domain.Categories() {
		categories = append(categories, string(c))
	}

	issue := openapi3.NewObjectSchema().
		WithProperty(fieldOriginal, describe(openapi3.NewStringSchema().WithMinLength(1),
			"The exact word or phrase that is incorrect")).
		WithProperty(fieldReplacement, describe(openapi3.NewStringSchema(),
			"The corrected version")).
		WithProperty(fieldExplanation, describe(openapi3.NewStringSchema(),
			"Syntactic explanation of the error")).
		WithProperty(fieldCategory, describe(openapi3.NewStringSchema().WithEnum(categories...),
			"The type of error")).
		WithProperty(fieldContext, describe(openapi3.NewStringSchema(),
			"Small snippet of text around the error for locating it"))
	issue.Required = []string{fieldOriginal, fieldReplacement, fieldExplanation, fieldCategory, fieldContext}

	stats := openapi3.NewObjectSchema().
		WithProperty(fieldWordCount, openapi3.NewIntegerSchema().WithMin(0)).
		WithProperty(fieldCharacterCount, openapi3.NewIntegerSchema().WithMin(0)).
		WithProperty(fieldReadabilityScore, openapi3.NewStringSchema()).
		WithProperty(fieldTone, openapi3.NewStringSchema())
	stats.Required = []string{fieldWordCount, fieldCharacterCount, fieldReadabilityScore, fieldTone}

	root := openapi3.NewObjectSchema().
		WithProperty(fieldCorrectedFullText, openapi3.NewStringSchema()).
		WithProperty(fieldIssues, openapi3.NewArraySchema().WithItems(issue)).
		WithProperty(fieldStatistics, stats)
	root.Required = []string{fieldCorrectedFullText, fieldIssues, fieldStatistics}

	return root
}

func describe(s *openapi3.Schema, text string) *openapi3.Schema {
	s.Description = text
	return s
}
