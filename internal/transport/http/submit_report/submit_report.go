package submitreport

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/crashfeed/reporter/internal/service/models/report"
	"github.com/go-playground/validator/v10"
)

// service is an interface for the service layer.
type service interface {
	Submit(rec report.Record)
}

// submitReportRequest represents a report submission request. Endpoint and
// API key are optional; the pipeline falls back to its configured
// destination when they are absent.
type submitReportRequest struct {
	Payload  string `json:"payload"  validate:"required"`
	Endpoint string `json:"endpoint" validate:"omitempty,url"`
	APIKey   string `json:"apiKey"`
}

// SubmitReport accepts one serialized report payload for asynchronous
// delivery.
func SubmitReport(w http.ResponseWriter, r *http.Request, svc service) {
	var req submitReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Failed to decode submit report request", "error", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)

		return
	}

	if err := validator.New().Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)

		return
	}

	dest := report.Destination{
		Endpoint: req.Endpoint,
		APIKey:   req.APIKey,
	}
	svc.Submit(report.NewRecord(req.Payload, dest))

	w.WriteHeader(http.StatusAccepted)
}
