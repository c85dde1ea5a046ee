package handler

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/maiandreh/ecommerce-fullstack/internal/core/domain"
	"github.com/maiandreh/ecommerce-fullstack/internal/core/service"
)

// errorResponse maps an error kind to its HTTP status and body. Unexpected
// errors get a generic body; the caller logs the cause.
func errorResponse(err error) (int, ErrorResponse) {
	var (
		validation *domain.ValidationError
		notFound   *domain.ProductNotFoundError
		stock      *domain.InsufficientStockError
	)

	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, ErrorResponse{Error: "Validation failed", Details: validation.Details}
	case errors.As(err, &notFound):
		return http.StatusBadRequest, ErrorResponse{
			Error:   "Product not found",
			Message: fmt.Sprintf("product %d not found", notFound.ProductID),
		}
	case errors.As(err, &stock):
		resp := ErrorResponse{Error: "Insufficient stock", Message: "some items exceed the available stock"}
		for _, s := range stock.Shortfalls {
			resp.StockErrors = append(resp.StockErrors, StockErrorResponse{ProductID: s.ProductID, Available: s.Available})
		}
		return http.StatusBadRequest, resp
	case errors.Is(err, domain.ErrConcurrencyConflict):
		return http.StatusConflict, ErrorResponse{
			Error:   "Concurrency conflict",
			Message: "the product was updated by another order, try again",
		}
	case errors.Is(err, service.ErrDuplicateRequest):
		return http.StatusConflict, ErrorResponse{
			Error:   "Duplicate request",
			Message: "a request with this idempotency key is still in progress",
		}
	case errors.Is(err, domain.ErrOrderNotFound):
		return http.StatusNotFound, ErrorResponse{Error: "Order not found"}
	default:
		return http.StatusInternalServerError, ErrorResponse{
			Error:   "Unexpected error",
			Message: "an unexpected error occurred",
		}
	}
}

func grpcError(err error) error {
	var (
		validation *domain.ValidationError
		notFound   *domain.ProductNotFoundError
		stock      *domain.InsufficientStockError
	)

	switch {
	case errors.As(err, &validation):
		st := status.New(codes.InvalidArgument, validation.Error())
		br := &errdetails.BadRequest{}
		for _, d := range validation.Details {
			br.FieldViolations = append(br.FieldViolations, &errdetails.BadRequest_FieldViolation{Description: d})
		}
		if ds, derr := st.WithDetails(br); derr == nil {
			st = ds
		}
		return st.Err()
	case errors.As(err, &notFound):
		return status.Error(codes.NotFound, notFound.Error())
	case errors.As(err, &stock):
		st := status.New(codes.FailedPrecondition, stock.Error())
		pf := &errdetails.PreconditionFailure{}
		for _, s := range stock.Shortfalls {
			pf.Violations = append(pf.Violations, &errdetails.PreconditionFailure_Violation{
				Type:        "STOCK",
				Subject:     fmt.Sprintf("products/%d", s.ProductID),
				Description: fmt.Sprintf("available %d", s.Available),
			})
		}
		if ds, derr := st.WithDetails(pf); derr == nil {
			st = ds
		}
		return st.Err()
	case errors.Is(err, domain.ErrConcurrencyConflict):
		return status.Error(codes.Aborted, "concurrency conflict, try again")
	case errors.Is(err, service.ErrDuplicateRequest):
		return status.Error(codes.AlreadyExists, "duplicate request")
	case errors.Is(err, domain.ErrOrderNotFound):
		return status.Error(codes.NotFound, "order not found")
	default:
		return status.Error(codes.Internal, "internal error")
	}
}
