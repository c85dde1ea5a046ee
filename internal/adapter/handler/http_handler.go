package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/maiandreh/ecommerce-fullstack/internal/core/domain"
	"github.com/maiandreh/ecommerce-fullstack/internal/core/service"
)

const (
	idempotencyHeader = "Idempotency-Key"
	requestTimeout    = 30 * time.Second
)

type HTTPHandler struct {
	orderService   *service.OrderService
	catalogService *service.CatalogService
	logger         *zap.Logger
}

func NewHTTPHandler(orderService *service.OrderService, catalogService *service.CatalogService, logger *zap.Logger) *HTTPHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPHandler{
		orderService:   orderService,
		catalogService: catalogService,
		logger:         logger,
	}
}

// Routes builds the router for the public API.
func (h *HTTPHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(h.logger))
	r.Use(allowAllOrigins)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/health", h.HealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/orders", h.PlaceOrder)
		r.Get("/orders/{id}", h.GetOrder)
		r.Get("/products", h.ListProducts)
		r.Get("/products/top-sellers", h.TopSellers)
	})

	return r
}

func (h *HTTPHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, domain.NewValidationError("body: malformed JSON"))
		return
	}

	lines, err := toLineRequests(req.Items)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	// The header wins; the body field serves clients that cannot set headers.
	key := r.Header.Get(idempotencyHeader)
	if key == "" {
		key = req.IdempotencyKey
	}

	placed, err := h.orderService.PlaceOrder(r.Context(), key, lines)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	status := http.StatusCreated
	if placed.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, toOrderResponse(placed.Order))
}

func (h *HTTPHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orderService.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *HTTPHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var details []string
	page, ok := queryInt(q.Get("page"), 0)
	if !ok {
		details = append(details, "page: must be an integer")
	}
	size, ok := queryInt(q.Get("size"), service.DefaultPageSize)
	if !ok {
		details = append(details, "size: must be an integer")
	}
	if len(details) > 0 {
		h.writeError(w, r, domain.NewValidationError(details...))
		return
	}

	result, err := h.catalogService.ListProducts(r.Context(), domain.ProductFilter{
		Search: q.Get("search"),
		Page:   page,
		Size:   size,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toProductPageResponse(result))
}

func (h *HTTPHandler) TopSellers(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(r.URL.Query().Get("limit"), service.DefaultTopSellerLimit)
	if !ok {
		h.writeError(w, r, domain.NewValidationError("limit: must be an integer"))
		return
	}

	sellers, err := h.catalogService.TopSellers(r.Context(), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toTopSellerResponses(sellers))
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := errorResponse(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
	}
	writeJSON(w, status, body)
}

func queryInt(v string, fallback int) (int, bool) {
	if v == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(v)
	return n, err == nil
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

func allowAllOrigins(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+idempotencyHeader)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
