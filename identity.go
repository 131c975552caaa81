/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"net/http"

	"github.com/google/uuid"
)

const participantCookieName = "triviabox_id"

// participantID returns the caller's self-asserted id, falling back to the
// id cookie and minting a new one if there is none.
func participantID(w http.ResponseWriter, r *http.Request, asserted string) string {
	if asserted != "" {
		return asserted
	}

	if c, err := r.Cookie(participantCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	id := uuid.NewString()

	http.SetCookie(w, &http.Cookie{
		Name:     participantCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return id
}
