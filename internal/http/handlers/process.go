package handlers

import (
	"errors"
	"net/http"

	"github.com/JI-DeepSleep/DocuSnap-Backend/internal/domain"
	"github.com/JI-DeepSleep/DocuSnap-Backend/internal/middleware"
	"github.com/JI-DeepSleep/DocuSnap-Backend/internal/service/submission"
)

// processRequest uses pointers so absent fields can be told from zero values.
type processRequest struct {
	ClientID   *string `json:"client_id"`
	Type       *string `json:"type"`
	SHA256     *string `json:"SHA256"`
	HasContent *bool   `json:"has_content"`
	Content    *string `json:"content"`
	AESKey     string  `json:"aes_key"`
}

type processResponse struct {
	Status      domain.TaskStatus `json:"status"`
	Result      string            `json:"result,omitempty"`
	ErrorDetail domain.ErrorCode  `json:"error_detail,omitempty"`
}

func (a *App) Process(w http.ResponseWriter, r *http.Request) {
	var body processRequest
	if err := a.decode(w, r, &body); err != nil {
		if errors.Is(err, errBodyTooLarge) {
			a.processError(w, http.StatusRequestEntityTooLarge, domain.CodeInvalidJSON)
			return
		}
		a.processError(w, http.StatusBadRequest, domain.CodeInvalidJSON)
		return
	}
	if body.ClientID == nil || body.Type == nil || body.SHA256 == nil || body.HasContent == nil {
		a.processError(w, http.StatusBadRequest, domain.CodeMissingRequiredField)
		return
	}
	if *body.HasContent && body.Content == nil {
		a.processError(w, http.StatusBadRequest, domain.CodeMissingContent)
		return
	}

	req := submission.Request{
		ClientID:    *body.ClientID,
		Type:        domain.TaskType(*body.Type),
		ContentHash: *body.SHA256,
		HasContent:  *body.HasContent,
		WrappedKey:  body.AESKey,
	}
	if body.Content != nil {
		req.Content = *body.Content
	}

	out, err := a.Tasks.Submit(r.Context(), req)
	if err != nil {
		code := domain.CodeOf(err, domain.CodeProcessingError)
		a.Logger.Debug().
			Err(err).
			Str("request_id", middleware.RequestIDFromContext(r.Context())).
			Str("error_detail", string(code)).
			Msg("process rejected")
		a.processError(w, syncStatus(code), code)
		return
	}

	switch out.Status {
	case domain.TaskStatusCompleted:
		a.json(w, http.StatusOK, processResponse{Status: out.Status, Result: out.Result})
	case domain.TaskStatusError:
		a.processError(w, http.StatusBadRequest, out.ErrorDetail)
	default:
		a.json(w, http.StatusAccepted, processResponse{Status: domain.TaskStatusProcessing})
	}
}

func (a *App) processError(w http.ResponseWriter, status int, code domain.ErrorCode) {
	a.json(w, status, processResponse{Status: domain.TaskStatusError, ErrorDetail: code})
}

// syncStatus maps a synchronous rejection to its HTTP status. Only server
// side failures are 5xx.
func syncStatus(code domain.ErrorCode) int {
	switch code {
	case domain.CodeDatabaseError, domain.CodeProcessingError:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}
