package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AnshRaj112/astroguide-backend/internal/insights"
	"github.com/AnshRaj112/astroguide-backend/internal/models"
)

// MaxImageBytes caps palm and face uploads at 10MB.
const MaxImageBytes = 10 << 20

// PostPalm answers POST /api/palm with a multipart "file" photo.
func (h *Handler) PostPalm(w http.ResponseWriter, r *http.Request) {
	h.readImage(w, r, insights.Palm, models.ReadingKindPalm)
}

// PostFace answers POST /api/face with a multipart "file" photo.
func (h *Handler) PostFace(w http.ResponseWriter, r *http.Request) {
	h.readImage(w, r, insights.Face, models.ReadingKindFace)
}

func (h *Handler) readImage(w http.ResponseWriter, r *http.Request, domain insights.Domain, kind models.ReadingKind) {
	// room for the multipart envelope around the image
	const maxBody = MaxImageBytes + 64<<10
	if r.ContentLength > maxBody {
		writeError(w, http.StatusRequestEntityTooLarge, "Image must be 10MB or smaller")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := r.ParseMultipartForm(MaxImageBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Image must be 10MB or smaller")
			return
		}
		writeError(w, http.StatusBadRequest, "Failed to parse form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxImageBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read file")
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}
	if len(data) > MaxImageBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "Image must be 10MB or smaller")
		return
	}

	ctx := r.Context()
	report := h.Insights.Read(ctx, domain, data)

	var imageURL string
	if h.Archive != nil {
		url, err := h.Archive.Upload(ctx, string(domain), data)
		if err != nil {
			h.Logger.Warn("image archive failed", zap.String("domain", string(domain)), zap.Error(err))
		} else {
			imageURL = url
		}
	}

	id := identity(r)
	readingID := uuid.New().String()
	h.saveReading(ctx, id, models.Reading{
		ReadingID: readingID,
		Kind:      kind,
		CreatedAt: time.Now().UTC(),
		Payload:   map[string]interface{}{"report": report, "imageUrl": imageURL},
	})
	h.countAppUsage(ctx, id)

	resp := map[string]interface{}{
		"success": true,
		"id":      readingID,
		"reading": report,
	}
	if imageURL != "" {
		resp["imageUrl"] = imageURL
	}
	writeJSON(w, http.StatusOK, resp)
}
