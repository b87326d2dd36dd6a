package imagegen

import (
	"fmt"
	"strings"
)

type hfRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
	Options    hfOptions    `json:"options"`
}

type hfParameters struct {
	NegativePrompt string `json:"negative_prompt"`
}

type hfOptions struct {
	WaitForModel bool `json:"wait_for_model"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// image returns the first inline image part of the first candidate.
func (r geminiResponse) image() (geminiInlineData, error) {
	if len(r.Candidates) == 0 {
		if r.PromptFeedback != nil && r.PromptFeedback.BlockReason != "" {
			return geminiInlineData{}, fmt.Errorf("%w: blocked: %s", ErrNoImage, r.PromptFeedback.BlockReason)
		}
		return geminiInlineData{}, fmt.Errorf("%w: no candidates", ErrNoImage)
	}
	for _, part := range r.Candidates[0].Content.Parts {
		if part.InlineData != nil && strings.HasPrefix(part.InlineData.MimeType, "image/") {
			return *part.InlineData, nil
		}
	}
	return geminiInlineData{}, fmt.Errorf("%w: response has no image part", ErrNoImage)
}
