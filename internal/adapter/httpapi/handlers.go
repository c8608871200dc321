package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/tlaxclima/acciones-service/internal/adapter/survey"
	"github.com/tlaxclima/acciones-service/internal/dataset"
	"github.com/tlaxclima/acciones-service/internal/domain"
	"github.com/tlaxclima/acciones-service/internal/filter"
)

const dateLayout = "2006-01-02"

type handlers struct {
	provider SnapshotProvider
	logger   *slog.Logger
}

type markersResponse struct {
	Total   int             `json:"total"`
	Stale   bool            `json:"datos_obsoletos"`
	Markers []domain.Marker `json:"marcadores"`
}

// handleMarkers returns the visible marker set for the requested filter
// state. Checkbox toggles arrive as repeated query parameters; the timeline
// arrives as either anio or desde/hasta.
func (h *handlers) handleMarkers(w http.ResponseWriter, r *http.Request) {
	res, err := h.provider.Snapshot(r.Context())
	if err != nil {
		h.writeSnapshotError(w, err)
		return
	}

	fs := filter.NewSet()
	q := r.URL.Query()
	for _, v := range q["dependencia"] {
		fs.Toggle(filter.ByDependency, v)
	}
	for _, v := range q["tipo"] {
		fs.Toggle(filter.ByKind, v)
	}
	for _, v := range q["estado"] {
		fs.Toggle(filter.ByStatus, v)
	}

	timeline := filter.NewTimeline(res.Markers)
	if rawYear := q.Get("anio"); rawYear != "" {
		year, err := strconv.Atoi(rawYear)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid anio parameter"})
			return
		}
		timeline.ToggleYear(year)
	}
	if q.Get("desde") != "" || q.Get("hasta") != "" {
		from, to, err := parseDateRange(q.Get("desde"), q.Get("hasta"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		if err := timeline.SetRange(from, to); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
	}
	fs.SetTemporal(timeline.Predicate())

	visible := fs.Apply(res.Markers)
	writeJSON(w, http.StatusOK, markersResponse{
		Total:   len(visible),
		Stale:   res.Stale,
		Markers: visible,
	})
}

func (h *handlers) handleProjects(w http.ResponseWriter, r *http.Request) {
	res, err := h.provider.Snapshot(r.Context())
	if err != nil {
		h.writeSnapshotError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total":           len(res.Dataset.Projects),
		"datos_obsoletos": res.Stale,
		"proyectos":       res.Dataset.Projects,
	})
}

type metadataResponse struct {
	domain.Metadata
	Stale    bool             `json:"datos_obsoletos"`
	Timeline timelineMetadata `json:"timeline"`
}

type timelineMetadata struct {
	Enabled bool  `json:"habilitado"`
	Years   []int `json:"anios"`
	MinYear int   `json:"anio_min"`
	MaxYear int   `json:"anio_max"`
}

func (h *handlers) handleMetadata(w http.ResponseWriter, r *http.Request) {
	res, err := h.provider.Snapshot(r.Context())
	if err != nil {
		h.writeSnapshotError(w, err)
		return
	}

	timeline := filter.NewTimeline(res.Markers)
	minYear, maxYear := timeline.Bounds()
	writeJSON(w, http.StatusOK, metadataResponse{
		Metadata: res.Dataset.Metadata,
		Stale:    res.Stale,
		Timeline: timelineMetadata{
			Enabled: timeline.Enabled(),
			Years:   timeline.Years(),
			MinYear: minYear,
			MaxYear: maxYear,
		},
	})
}

func (h *handlers) handleRefresh(w http.ResponseWriter, r *http.Request) {
	res, err := h.provider.Refresh(r.Context())
	if err != nil {
		h.writeSnapshotError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"datos_obsoletos": res.Stale,
		"metadata":        res.Dataset.Metadata,
	})
}

// writeSnapshotError maps the typed fetch errors onto a response the portal
// tailors its error panel copy by, switched on the kind field rather than
// message text. A timed-out upstream reads as 504, everything else as 502,
// matching the proxy's split.
func (h *handlers) writeSnapshotError(w http.ResponseWriter, err error) {
	h.logger.Error("snapshot unavailable", "error", err)
	kind := errorKind(err)
	status := http.StatusBadGateway
	if kind == "timeout" {
		status = http.StatusGatewayTimeout
	}
	writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"kind":  kind,
	})
}

func errorKind(err error) string {
	var (
		timeoutErr   *survey.TimeoutError
		networkErr   *survey.NetworkError
		httpErr      *survey.HTTPError
		shapeErr     *survey.DataShapeError
		exhaustedErr *dataset.ExhaustedRetriesError
	)
	// Check the wrapper first so the kind reflects the underlying cause.
	if errors.As(err, &exhaustedErr) {
		err = exhaustedErr.Err
	}
	switch {
	case errors.As(err, &timeoutErr):
		return "timeout"
	case errors.As(err, &networkErr):
		return "network"
	case errors.As(err, &httpErr):
		return "http"
	case errors.As(err, &shapeErr):
		return "data_shape"
	default:
		return "unknown"
	}
}

func parseDateRange(rawFrom, rawTo string) (time.Time, time.Time, error) {
	if rawFrom == "" || rawTo == "" {
		return time.Time{}, time.Time{}, errors.New("both desde and hasta are required")
	}
	from, err := time.Parse(dateLayout, rawFrom)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("invalid desde date, expected YYYY-MM-DD")
	}
	to, err := time.Parse(dateLayout, rawTo)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("invalid hasta date, expected YYYY-MM-DD")
	}
	return from, to, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
