package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/JI-DeepSleep/DocuSnap-Backend/internal/infra"
	"github.com/JI-DeepSleep/DocuSnap-Backend/internal/service/submission"
)

const defaultMaxBodyBytes = 32 << 20

// Tasks is the submission protocol the handlers expose.
type Tasks interface {
	Submit(ctx context.Context, req submission.Request) (submission.Outcome, error)
	Clear(ctx context.Context, req submission.ClearRequest) (int64, error)
}

type App struct {
	Tasks        Tasks
	PublicKeyPEM []byte
	MaxBodyBytes int64
	Logger       infra.Logger
}

func NewApp(tasks Tasks, publicKeyPEM []byte, maxBodyBytes int64, logger infra.Logger) *App {
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}
	return &App{Tasks: tasks, PublicKeyPEM: publicKeyPEM, MaxBodyBytes: maxBodyBytes, Logger: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

var errBodyTooLarge = errors.New("request body too large")

// decode reads one JSON object from the capped request body into v.
func (a *App) decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, a.MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errBodyTooLarge
		}
		return err
	}
	return nil
}
