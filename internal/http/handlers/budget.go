package handlers

import "net/http"

// GetBudget reports the session spending snapshot.
func (a *App) GetBudget(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, a.Scheduler.Budget())
}
