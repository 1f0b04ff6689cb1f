package httpx

import (
	"errors"
	"net/http"

	"github.com/Digigit24/kumsserp-sub000/internal/shared"
	"github.com/Digigit24/kumsserp-sub000/internal/workflow"
)

// RespondError maps domain errors to RFC7807 responses. Invalid transitions,
// version conflicts and duplicates are 409s: the document state moved and the
// caller must re-inspect before retrying.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrDuplicateNumber):
		Problem(w, http.StatusConflict, "Duplicate Document Number", err.Error())
	case errors.Is(err, workflow.ErrRoleMismatch):
		Problem(w, http.StatusForbidden, "Role Not Permitted", err.Error())
	case errors.Is(err, workflow.ErrStaleVersion):
		Problem(w, http.StatusConflict, "Stale Version", err.Error())
	case errors.Is(err, workflow.ErrAlreadyFinalized):
		Problem(w, http.StatusConflict, "Already Finalized", err.Error())
	case errors.Is(err, workflow.ErrInvalidTransition):
		Problem(w, http.StatusConflict, "Invalid Transition", err.Error())
	case errors.Is(err, shared.ErrDocumentBusy):
		Problem(w, http.StatusConflict, "Document Busy", err.Error())
	case errors.Is(err, workflow.ErrMissingReason),
		errors.Is(err, workflow.ErrQuantityOutOfRange),
		errors.Is(err, workflow.ErrNoIssuableItems),
		errors.Is(err, workflow.ErrNoQuotationSelected),
		errors.Is(err, workflow.ErrMultipleQuotationsSelected),
		errors.Is(err, workflow.ErrUnknownLineItem),
		errors.Is(err, workflow.ErrOverReceiptNotAllowed):
		Problem(w, http.StatusUnprocessableEntity, "Unprocessable Operation", err.Error())
	case errors.Is(err, shared.ErrRepositoryUnavailable):
		Problem(w, http.StatusServiceUnavailable, "Storage Unavailable", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// RespondValidation reports request-shape failures (malformed JSON, failed
// DTO validation) as 400s.
func RespondValidation(w http.ResponseWriter, err error) {
	Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
}
