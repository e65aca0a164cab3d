package handlers

import (
	"net/http"

	"github.com/JI-DeepSleep/DocuSnap-Backend/internal/domain"
	"github.com/JI-DeepSleep/DocuSnap-Backend/internal/service/submission"
)

type clearRequest struct {
	ClientID string `json:"client_id"`
	SHA256   string `json:"SHA256"`
	Type     string `json:"type"`
}

func (a *App) Clear(w http.ResponseWriter, r *http.Request) {
	var body clearRequest
	if err := a.decode(w, r, &body); err != nil || body.ClientID == "" {
		a.json(w, http.StatusBadRequest, map[string]string{"error": string(domain.CodeMissingRequiredField)})
		return
	}
	_, err := a.Tasks.Clear(r.Context(), submission.ClearRequest{
		ClientID:    body.ClientID,
		ContentHash: body.SHA256,
		Type:        domain.TaskType(body.Type),
	})
	if err != nil {
		code := domain.CodeOf(err, domain.CodeCacheClearFailed)
		status := http.StatusInternalServerError
		if code == domain.CodeMissingRequiredField {
			status = http.StatusBadRequest
		}
		a.json(w, status, map[string]string{"error": string(code)})
		return
	}
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}
