package main

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/Simplici0/forma/internal/imagegen"
)

// Sketches arrive as base64 data URLs and can be large.
const maxSketchBody = 10 << 20

type textToImageRequest struct {
	Prompt string `json:"prompt"`
}

type drawToImageRequest struct {
	SketchBase64 string `json:"sketchBase64"`
	Prompt       string `json:"prompt"`
}

type imageResponse struct {
	Success bool `json:"success"`
	imagegen.Image
	Message string `json:"message"`
}

func (s *server) handleTextToImage(w http.ResponseWriter, r *http.Request) {
	var req textToImageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request JSON")
		return
	}

	img, err := s.images.TextToImage(r.Context(), req.Prompt)
	if err != nil {
		s.imageError(w, "text-to-image", err)
		return
	}
	writeJSON(w, http.StatusOK, imageResponse{Success: true, Image: img, Message: "Image generated successfully"})
}

func (s *server) handleDrawToImage(w http.ResponseWriter, r *http.Request) {
	var req drawToImageRequest
	if err := decodeJSONLimit(w, r, &req, maxSketchBody); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request JSON")
		return
	}

	img, err := s.images.DrawToImage(r.Context(), req.SketchBase64, req.Prompt)
	if err != nil {
		s.imageError(w, "draw-to-image", err)
		return
	}
	writeJSON(w, http.StatusOK, imageResponse{Success: true, Image: img, Message: "Image generated from sketch"})
}

func (s *server) imageError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, imagegen.ErrInvalidInput):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, imagegen.ErrNotConfigured):
		writeJSONError(w, http.StatusServiceUnavailable, "image generation is not configured")
	default:
		s.log.Error("image generation failed", zap.String("operation", op), zap.Error(err))
		writeJSONError(w, http.StatusBadGateway, "image generation failed")
	}
}
