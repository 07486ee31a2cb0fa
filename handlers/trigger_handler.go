package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"swallowSafeAPI/services"
)

// TriggerHandler exposes the bodies the external scheduler invokes:
// the daily broken-streak sweep and the hourly reminder fan-out.
type TriggerHandler struct {
	streakService   *services.StreakService
	reminderService *services.ReminderService
}

func NewTriggerHandler(streakService *services.StreakService, reminderService *services.ReminderService) *TriggerHandler {
	return &TriggerHandler{
		streakService:   streakService,
		reminderService: reminderService,
	}
}

func (h *TriggerHandler) SweepBrokenStreaks(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	reset, err := h.streakService.SweepBrokenStreaks(ctx, time.Now())
	if err != nil {
		log.Printf("Sweep trigger failed: %v", err)
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]int{"reset_count": reset})
}

func (h *TriggerHandler) RunReminders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	notified, err := h.reminderService.RunHourlyReminders(ctx, time.Now())
	if err != nil {
		log.Printf("Reminder trigger failed: %v", err)
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]int{"notified_count": notified})
}
