package handlers

import (
	"net/http"
	"time"

	"github.com/amaumene/seriesync/internal/models"
	"github.com/amaumene/seriesync/internal/notify"
	"github.com/amaumene/seriesync/internal/scheduler"
	"github.com/sirupsen/logrus"
)

// StatsSource counts the library
type StatsSource interface {
	GetStats() (*models.Stats, error)
}

// SchedulerStatus reports the scheduler state
type SchedulerStatus interface {
	Status() scheduler.Status
}

// ChangeSource reports the last change signal
type ChangeSource interface {
	Last() (notify.Event, int, bool)
}

// StatusHandler handles status requests
type StatusHandler struct {
	stats     StatsSource
	scheduler SchedulerStatus
	changes   ChangeSource
	breaker   func() string
	logger    *logrus.Logger
}

// NewStatusHandler creates a new status handler. breaker may be nil.
func NewStatusHandler(stats StatsSource, sched SchedulerStatus, changes ChangeSource, breaker func() string, logger *logrus.Logger) *StatusHandler {
	return &StatusHandler{
		stats:     stats,
		scheduler: sched,
		changes:   changes,
		breaker:   breaker,
		logger:    logger,
	}
}

// StatusResponse represents the status response
type StatusResponse struct {
	Shows          int         `json:"shows"`
	Episodes       int         `json:"episodes"`
	Watched        int         `json:"watched"`
	Collected      int         `json:"collected"`
	Running        bool        `json:"running"`
	LastUpdate     *time.Time  `json:"last_update,omitempty"`
	LastActivity   *time.Time  `json:"last_activity_update,omitempty"`
	FailedCounter  int         `json:"failed_counter"`
	NextRunAt      time.Time   `json:"next_run_at"`
	HeldUntil      *time.Time  `json:"held_until,omitempty"`
	MetadataSource string      `json:"metadata_breaker,omitempty"`
	LastPass       *PassStatus `json:"last_pass,omitempty"`
	Changes        int         `json:"changes"`
	LastChange     *time.Time  `json:"last_change,omitempty"`
}

// PassStatus describes the last finished pass
type PassStatus struct {
	Mode      string    `json:"mode"`
	Result    string    `json:"result"`
	Refreshed int       `json:"refreshed"`
	Failed    []string  `json:"failed,omitempty"`
	NewShows  int       `json:"new_shows"`
	Error     string    `json:"error,omitempty"`
	Finished  time.Time `json:"finished"`
	Duration  string    `json:"duration"`
}

// ServeHTTP handles the status endpoint
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats, err := h.stats.GetStats()
	if err != nil {
		h.logger.WithError(err).Error("Failed to get library stats")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	status := h.scheduler.Status()
	response := StatusResponse{
		Shows:         stats.Shows,
		Episodes:      stats.Episodes,
		Watched:       stats.Watched,
		Collected:     stats.Collected,
		Running:       status.Running,
		LastUpdate:    optionalTime(status.State.LastUpdate),
		LastActivity:  optionalTime(status.State.LastActivityUpdate),
		FailedCounter: status.State.FailedCounter,
		NextRunAt:     status.NextRunAt,
		HeldUntil:     optionalTime(status.HeldUntil),
	}

	if h.breaker != nil {
		response.MetadataSource = h.breaker()
	}

	if last := status.Last; last != nil {
		pass := &PassStatus{
			Mode:      last.Request.Mode.String(),
			Result:    last.Outcome.Result.String(),
			Refreshed: last.Outcome.Refresh.Updated,
			Failed:    last.Outcome.Refresh.Failed,
			NewShows:  len(last.Outcome.NewShows),
			Finished:  last.Finished,
			Duration:  last.Outcome.Duration.String(),
		}
		if last.Err != nil {
			pass.Error = last.Err.Error()
		}
		response.LastPass = pass
	}

	if event, sent, ok := h.changes.Last(); ok {
		response.Changes = sent
		response.LastChange = &event.At
	}

	writeJSON(w, http.StatusOK, response)
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
