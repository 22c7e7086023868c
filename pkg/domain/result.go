package domain

// Statistics is the service-provided summary of the analyzed text.
type Statistics struct {
	WordCount        int    `json:"wordCount"`
	CharacterCount   int    `json:"characterCount"`
	ReadabilityScore string `json:"readabilityScore"`
	Tone             string `json:"tone"`
}

// AnalysisResult is the output of one analysis request.
// OriginalText, CorrectedFullText and Statistics are frozen to the request-time
// snapshot; only Issues is pruned as corrections are applied.
type AnalysisResult struct {
	OriginalText      string     `json:"originalText"`
	CorrectedFullText string     `json:"correctedFullText"`
	Issues            []Issue    `json:"issues"`
	Statistics        Statistics `json:"statistics"`
}

// Issue looks up a pending issue by ID.
func (r *AnalysisResult) Issue(id int) (Issue, bool) {
	if r == nil {
		return Issue{}, false
	}
	for _, is := range r.Issues {
		if is.ID == id {
			return is, true
		}
	}
	return Issue{}, false
}

// Clone returns a deep copy of the result.
func (r *AnalysisResult) Clone() *AnalysisResult {
	if r == nil {
		return nil
	}
	c := *r
	c.Issues = make([]Issue, len(r.Issues))
	copy(c.Issues, r.Issues)
	return &c
}
