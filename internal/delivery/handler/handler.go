package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"bazaar-service/internal/domain"
	"bazaar-service/internal/infrastructure/metrics"
	"bazaar-service/internal/repository"
	"bazaar-service/internal/service"
	"bazaar-service/pkg/logger"
	"bazaar-service/pkg/utils"
)

const maxMultipartMemory = 32 << 20

type AdHandler struct {
	service service.AdService
	logger  *logger.Loggers
	metrics *metrics.HandlerMetrics
	tracer  trace.Tracer
}

func NewAdHandler(service service.AdService, logger *logger.Loggers, metrics *metrics.HandlerMetrics) *AdHandler {
	tracer := otel.Tracer("bazaar-service/handler")
	return &AdHandler{
		service: service,
		logger:  logger,
		metrics: metrics,
		tracer:  tracer,
	}
}

type pagedRequest struct {
	PerPage *int             `json:"per_page"`
	Offset  *int             `json:"offset"`
	Filters *domain.AdFilter `json:"filters"`
}

type cursorRequest struct {
	Cursor  *string          `json:"cursor"`
	Count   int              `json:"count"`
	Filters *domain.AdFilter `json:"filters"`
}

func (h *AdHandler) GetAds(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetAds")
	defer span.End()

	startTime := time.Now()
	status := "success"

	defer func() {
		duration := time.Since(startTime).Seconds()
		h.metrics.RequestCount.WithLabelValues("GET", "/ads", status).Inc()
		h.metrics.RequestDuration.WithLabelValues("GET", "/ads", status).Observe(duration)
	}()

	// The request body is optional; an absent or empty body means the
	// default first page with no filters.
	var req pagedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		status = "error"
		utils.RespondWithErrorJSON(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	perPage := 10
	if req.PerPage != nil {
		perPage = *req.PerPage
	}
	offset := 0
	if req.Offset != nil {
		offset = *req.Offset
	}
	if perPage < 0 || offset < 0 {
		status = "error"
		utils.RespondWithErrorJSON(w, http.StatusBadRequest, "per_page and offset must not be negative")
		return
	}

	var filter domain.AdFilter
	if req.Filters != nil {
		filter = *req.Filters
	}

	span.SetAttributes(
		attribute.Int("ads.per_page", perPage),
		attribute.Int("ads.offset", offset),
	)

	result, err := h.service.GetAds(ctx, offset, perPage, filter)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, repository.ErrFilterParse) {
			status = "error"
			utils.RespondWithErrorJSON(w, http.StatusBadRequest, err.Error())
			return
		}
		status = "error"
		h.logger.ErrorLogger.Error("failed to retrieve ads", utils.Err(err))
		utils.RespondWithErrorJSON(w, http.StatusInternalServerError, "could not retrieve ads")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, result)
}

func (h *AdHandler) GetAdByID(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetAdByID")
	defer span.End()

	startTime := time.Now()
	status := "success"

	defer func() {
		duration := time.Since(startTime).Seconds()
		h.metrics.RequestCount.WithLabelValues("GET", "/ads/{id}", status).Inc()
		h.metrics.RequestDuration.WithLabelValues("GET", "/ads/{id}", status).Observe(duration)
	}()

	id, ok := parseIDParam(w, r)
	if !ok {
		status = "error"
		return
	}

	span.SetAttributes(attribute.Int64("ad.id", int64(id)))

	ad, err := h.service.GetAdByID(ctx, id)
	if err != nil {
		if errors.Is(err, service.ErrInvalidID) {
			status = "error"
			utils.RespondWithErrorJSON(w, http.StatusBadRequest, "invalid id parameter")
		} else if errors.Is(err, service.ErrAdNotFound) {
			status = "not_found"
			utils.RespondWithErrorJSON(w, http.StatusNotFound, "ad not found")
		} else {
			status = "error"
			h.logger.ErrorLogger.Error("failed to get ad by ID", utils.Err(err))
			utils.RespondWithErrorJSON(w, http.StatusInternalServerError, "internal server error")
		}
		span.RecordError(err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, ad)
}

func (h *AdHandler) CreateAd(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateAd")
	defer span.End()

	startTime := time.Now()
	status := "success"

	defer func() {
		duration := time.Since(startTime).Seconds()
		h.metrics.RequestCount.WithLabelValues("POST", "/ads", status).Inc()
		h.metrics.RequestDuration.WithLabelValues("POST", "/ads", status).Observe(duration)
	}()

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		status = "error"
		utils.RespondWithErrorJSON(w, http.StatusBadRequest, "invalid multipart payload")
		return
	}

	price, err := decimal.NewFromString(r.FormValue("price"))
	if err != nil {
		status = "error"
		utils.RespondWithErrorJSON(w, http.StatusBadRequest, "invalid price")
		return
	}

	topAd := false
	if v := r.FormValue("top_ad"); v != "" {
		topAd, err = strconv.ParseBool(v)
		if err != nil {
			status = "error"
			utils.RespondWithErrorJSON(w, http.StatusBadRequest, "invalid top_ad")
			return
		}
	}

	content := domain.AdContent{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Price:       price,
		UserEmail:   r.FormValue("user_email"),
		UserPhone:   r.FormValue("user_phone"),
		TopAd:       topAd,
	}

	var uploads []service.ImageUpload
	for _, fh := range r.MultipartForm.File["images"] {
		if fh.Filename == "" || fh.Header.Get("Content-Type") == "" {
			status = "error"
			utils.RespondWithErrorJSON(w, http.StatusBadRequest, "image parts require a file name and content type")
			return
		}

		file, err := fh.Open()
		if err != nil {
			status = "error"
			h.logger.ErrorLogger.Error("failed to open image part", utils.Err(err))
			utils.RespondWithErrorJSON(w, http.StatusBadRequest, "unreadable image part")
			return
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			status = "error"
			h.logger.ErrorLogger.Error("failed to read image part", utils.Err(err))
			utils.RespondWithErrorJSON(w, http.StatusBadRequest, "unreadable image part")
			return
		}

		uploads = append(uploads, service.ImageUpload{
			FileName: fh.Filename,
			MimeType: fh.Header.Get("Content-Type"),
			Data:     data,
		})
	}

	span.SetAttributes(
		attribute.String("ad.title", content.Title),
		attribute.Int("ad.images", len(uploads)),
	)

	createdAd, err := h.service.CreateAd(ctx, content, uploads)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, service.ErrImagePart) {
			status = "error"
			utils.RespondWithErrorJSON(w, http.StatusBadRequest, err.Error())
			return
		}
		status = "error"
		h.logger.ErrorLogger.Error("could not create ad", utils.Err(err))
		utils.RespondWithErrorJSON(w, http.StatusInternalServerError, "could not create ad")
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(strconv.FormatInt(int64(createdAd.ID), 10)))
}

func (h *AdHandler) FetchAdsCursor(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "FetchAdsCursor")
	defer span.End()

	startTime := time.Now()
	status := "success"

	defer func() {
		duration := time.Since(startTime).Seconds()
		h.metrics.RequestCount.WithLabelValues("POST", "/ads/cursor", status).Inc()
		h.metrics.RequestDuration.WithLabelValues("POST", "/ads/cursor", status).Observe(duration)
	}()

	var req cursorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		status = "error"
		utils.RespondWithErrorJSON(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	if req.Count < 0 || req.Count > 255 {
		status = "error"
		utils.RespondWithErrorJSON(w, http.StatusBadRequest, "count must be between 0 and 255")
		return
	}

	var filter domain.AdFilter
	if req.Filters != nil {
		filter = *req.Filters
	}

	name := ""
	if req.Cursor != nil {
		name = *req.Cursor
	} else {
		created, err := h.service.OpenCursor(ctx, filter)
		if err != nil {
			span.RecordError(err)
			if errors.Is(err, repository.ErrFilterParse) {
				status = "error"
				utils.RespondWithErrorJSON(w, http.StatusBadRequest, err.Error())
				return
			}
			status = "error"
			h.logger.ErrorLogger.Error("could not open cursor", utils.Err(err))
			utils.RespondWithErrorJSON(w, http.StatusInternalServerError, "could not open cursor")
			return
		}
		name = created
	}

	span.SetAttributes(
		attribute.String("cursor.name", name),
		attribute.Int("cursor.count", req.Count),
	)

	ads, err := h.service.FetchCursor(ctx, name, uint8(req.Count))
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, repository.ErrCursorNotFound) {
			status = "not_found"
			utils.RespondWithErrorJSON(w, http.StatusNotFound, "cursor not found")
			return
		}
		status = "error"
		h.logger.ErrorLogger.Error("could not fetch from cursor", utils.Err(err))
		utils.RespondWithErrorJSON(w, http.StatusInternalServerError, "could not fetch from cursor")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, service.CursorResult{Cursor: name, Items: ads})
}

func (h *AdHandler) CloseAdsCursor(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CloseAdsCursor")
	defer span.End()

	startTime := time.Now()
	status := "success"

	defer func() {
		duration := time.Since(startTime).Seconds()
		h.metrics.RequestCount.WithLabelValues("DELETE", "/ads/cursor/{name}", status).Inc()
		h.metrics.RequestDuration.WithLabelValues("DELETE", "/ads/cursor/{name}", status).Observe(duration)
	}()

	name := chi.URLParam(r, "name")
	if name == "" {
		status = "error"
		utils.RespondWithErrorJSON(w, http.StatusBadRequest, "missing cursor name")
		return
	}

	span.SetAttributes(attribute.String("cursor.name", name))

	if err := h.service.CloseCursor(ctx, name); err != nil {
		span.RecordError(err)
		if errors.Is(err, repository.ErrCursorNotFound) {
			status = "not_found"
			utils.RespondWithErrorJSON(w, http.StatusNotFound, "cursor not found")
			return
		}
		status = "error"
		h.logger.ErrorLogger.Error("could not close cursor", utils.Err(err))
		utils.RespondWithErrorJSON(w, http.StatusInternalServerError, "could not close cursor")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "cursor closed"})
}

func (h *AdHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetImage")
	defer span.End()

	startTime := time.Now()
	status := "success"

	defer func() {
		duration := time.Since(startTime).Seconds()
		h.metrics.RequestCount.WithLabelValues("GET", "/images/{id}", status).Inc()
		h.metrics.RequestDuration.WithLabelValues("GET", "/images/{id}", status).Observe(duration)
	}()

	id := chi.URLParam(r, "id")

	image, err := h.service.GetImage(ctx, id)
	if err != nil {
		// Any read fault, including a missing image, is a server fault.
		status = "error"
		h.logger.ErrorLogger.Error("failed to read image", utils.Err(err))
		span.RecordError(err)
		utils.RespondWithErrorJSON(w, http.StatusInternalServerError, "could not read image")
		return
	}

	span.SetAttributes(attribute.String("image.id", id))

	w.Header().Set("Content-Type", image.MimeType)
	w.WriteHeader(http.StatusOK)
	w.Write(image.Bytes)
}

// UpdateAd is a deliberate no-op stub. It validates the id and returns
// success without mutating state; the repository-level update is
// complete but not yet exposed here.
func (h *AdHandler) UpdateAd(w http.ResponseWriter, r *http.Request) {
	_, span := h.tracer.Start(r.Context(), "UpdateAd")
	defer span.End()

	startTime := time.Now()
	status := "success"

	defer func() {
		duration := time.Since(startTime).Seconds()
		h.metrics.RequestCount.WithLabelValues("PUT", "/ads/{id}", status).Inc()
		h.metrics.RequestDuration.WithLabelValues("PUT", "/ads/{id}", status).Observe(duration)
	}()

	if _, ok := parseIDParam(w, r); !ok {
		status = "error"
		return
	}

	w.WriteHeader(http.StatusOK)
}

// DeleteAd is a deliberate no-op stub, like UpdateAd.
func (h *AdHandler) DeleteAd(w http.ResponseWriter, r *http.Request) {
	_, span := h.tracer.Start(r.Context(), "DeleteAd")
	defer span.End()

	startTime := time.Now()
	status := "success"

	defer func() {
		duration := time.Since(startTime).Seconds()
		h.metrics.RequestCount.WithLabelValues("DELETE", "/ads/{id}", status).Inc()
		h.metrics.RequestDuration.WithLabelValues("DELETE", "/ads/{id}", status).Observe(duration)
	}()

	if _, ok := parseIDParam(w, r); !ok {
		status = "error"
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func parseIDParam(w http.ResponseWriter, r *http.Request) (int32, bool) {
	idParam := chi.URLParam(r, "id")
	if idParam == "" {
		utils.RespondWithErrorJSON(w, http.StatusBadRequest, "missing id parameter")
		return 0, false
	}

	id, err := strconv.ParseInt(idParam, 10, 32)
	if err != nil || id <= 0 {
		utils.RespondWithErrorJSON(w, http.StatusBadRequest, "invalid id parameter")
		return 0, false
	}

	return int32(id), true
}
