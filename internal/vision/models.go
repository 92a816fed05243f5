package vision

// ModelSpec names a remote vision model and the label its answer is
// displayed under. Spec order determines result slot order.
type ModelSpec struct {
	Label string `json:"label"`
	ID    string `json:"id"`
}

// ModelResult is one model's slot in an analysis outcome: either answer
// text or the error that replaced it, never both.
type ModelResult struct {
	Spec    ModelSpec
	Content string
	Err     error
}

// OK reports whether the slot carries answer text
func (r ModelResult) OK() bool {
	return r.Err == nil
}

// ErrorText returns the user-visible error text for a failed slot
func (r ModelResult) ErrorText() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// DefaultModelSpecs returns the stock two-model configuration. The two
// answers are rendered side by side, Scout on the left.
func DefaultModelSpecs() []ModelSpec {
	return []ModelSpec{
		{Label: "Llama-4 Scout (17B)", ID: "meta-llama/llama-4-scout-17b-16e-instruct"},
		{Label: "Llama-4 Maverick (90B)", ID: "meta-llama/llama-4-maverick-17b-128e-instruct"},
	}
}
