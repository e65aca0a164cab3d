package handlers

import (
	"net/http"
)

func (a *App) CheckStatus(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"server_status": "ok"})
}

// PublicKey serves the PEM public key clients wrap their AES keys with.
func (a *App) PublicKey(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"public_key": string(a.PublicKeyPEM)})
}
