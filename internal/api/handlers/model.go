// Package handlers implements the HTTP handlers of the calibration service.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wonny/crossasset/internal/builder"
	"github.com/wonny/crossasset/internal/metrics"
	"github.com/wonny/crossasset/internal/model"
	"github.com/wonny/crossasset/pkg/logger"
)

// ModelHandler serves model snapshots and calibration results.
type ModelHandler struct {
	builder *builder.Builder
	logger  *logger.Logger
}

// NewModelHandler creates the handler around a model builder.
func NewModelHandler(b *builder.Builder, log *logger.Logger) *ModelHandler {
	return &ModelHandler{builder: b, logger: log}
}

// modelSnapshot is the JSON shape of GET /api/model.
type modelSnapshot struct {
	Currencies  []string `json:"currencies"`
	NumEq       int      `json:"num_eq"`
	NumInf      int      `json:"num_inf"`
	NumCr       int      `json:"num_cr"`
	StateDim    int      `json:"state_dim"`
	BrownianDim int      `json:"brownian_dim"`
	Generation  uint64   `json:"generation"`
	Rebuilds    uint64   `json:"rebuilds"`
	ConfigHash  string   `json:"config_hash"`
}

// GetModel returns the current model snapshot, building it on first use.
// GET /api/model
func (h *ModelHandler) GetModel(w http.ResponseWriter, r *http.Request) {
	m, err := h.builder.Model()
	if err != nil {
		h.logger.WithError(err).Error("model build failed")
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, modelSnapshot{
		Currencies:  m.Currencies(),
		NumEq:       m.NumEq(),
		NumInf:      m.NumInf(),
		NumCr:       m.NumCr(),
		StateDim:    m.StateDim(),
		BrownianDim: m.BrownianDim(),
		Generation:  m.Generation(),
		Rebuilds:    h.builder.Rebuilds(),
		ConfigHash:  h.builder.Config().Hash(),
	})
}

// GetReport returns the calibration report of the last successful build.
// GET /api/calibration/report
func (h *ModelHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	report := h.builder.Report()
	if report == nil {
		respondError(w, http.StatusNotFound, "no calibration run yet")
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// GetCalibrationErrors returns the basket residuals of one factor.
// GET /api/calibration/errors/{class}/{name}
func (h *ModelHandler) GetCalibrationErrors(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	class, ok := assetClass(vars["class"])
	if !ok {
		respondError(w, http.StatusBadRequest, "unknown asset class "+vars["class"])
		return
	}
	errs := h.builder.CalibrationErrors(class, vars["name"])
	if errs == nil {
		respondError(w, http.StatusNotFound, "no calibration errors for "+vars["class"]+":"+vars["name"])
		return
	}
	respondJSON(w, http.StatusOK, errs)
}

// Recalibrate forces a rebuild on the next model access and runs it.
// POST /api/model/recalibrate
func (h *ModelHandler) Recalibrate(w http.ResponseWriter, r *http.Request) {
	h.builder.ForceRecalculate()
	_, err := h.builder.Model()
	metrics.RecordRebuild(err)
	if err != nil {
		h.logger.WithError(err).Error("forced recalibration failed")
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	metrics.RecordReport(h.builder.Report())
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"rebuilds": h.builder.Rebuilds(),
		"run_id":   h.builder.Report().RunID,
	})
}

func assetClass(s string) (model.AssetClass, bool) {
	switch s {
	case "ir", "IR":
		return model.IR, true
	case "fx", "FX":
		return model.FX, true
	case "eq", "EQ":
		return model.EQ, true
	case "inf", "INF":
		return model.INF, true
	case "cr", "CR":
		return model.CR, true
	}
	return 0, false
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
