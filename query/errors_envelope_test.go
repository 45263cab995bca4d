package query

import (
	"context"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-gateway/core"
)

func TestContinuationStatusMessage_ValidateReturnsRichError(t *testing.T) {
	err := (ContinuationStatusMessage{}).Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryValidation {
		t.Fatalf("expected validation category, got %q", rich.Category)
	}
	if rich.TextCode != core.GatewayErrorBadInput {
		t.Fatalf("expected %q text code, got %q", core.GatewayErrorBadInput, rich.TextCode)
	}
	if rich.Code != http.StatusBadRequest {
		t.Fatalf("expected %d code, got %d", http.StatusBadRequest, rich.Code)
	}
	validation := rich.AllValidationErrors()
	if len(validation) == 0 {
		t.Fatalf("expected validation errors in envelope")
	}
	if validation[0].Field != core.HeaderCorrelationID {
		t.Fatalf("expected correlation_id validation field, got %q", validation[0].Field)
	}

	if err := (PendingContinuationsMessage{Limit: -1}).Validate(); err == nil {
		t.Fatalf("expected negative limit to be rejected")
	}
}

func TestContinuationStatusQuery_NilReaderReturnsRichError(t *testing.T) {
	var q *ContinuationStatusQuery
	_, err := q.Query(context.Background(), ContinuationStatusMessage{})
	if err == nil {
		t.Fatalf("expected dependency error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal category, got %q", rich.Category)
	}
	if rich.TextCode != core.GatewayErrorInternal {
		t.Fatalf("expected %q text code, got %q", core.GatewayErrorInternal, rich.TextCode)
	}
}
