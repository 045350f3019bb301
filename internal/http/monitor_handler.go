package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"vibration-monitor/internal/models"
	"vibration-monitor/internal/service"

	"go.uber.org/zap"
)

// MonitorHandler 设备与倒计时接口
type MonitorHandler struct {
	svc    service.MonitorService
	logger *zap.Logger
}

func NewMonitorHandler(svc service.MonitorService, logger *zap.Logger) *MonitorHandler {
	return &MonitorHandler{svc: svc, logger: logger}
}

// ListDevices GET /devices
func (h *MonitorHandler) ListDevices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Ok(h.svc.ListDevices(r.Context())))
}

// GetData GET /data?device=N 或 /data?device=Pompa1/Vibration
// 序号越界时回落到第 0 台设备，设备标识不存在时返回 404
func (h *MonitorHandler) GetData(w http.ResponseWriter, r *http.Request) {
	ref := strings.TrimSpace(r.URL.Query().Get("device"))

	var (
		snap *service.DeviceSnapshot
		err  error
	)
	if _, convErr := strconv.Atoi(ref); ref == "" || convErr == nil {
		snap, err = h.svc.LatestByIndex(r.Context(), parseInt(ref, 0))
	} else {
		snap, err = h.svc.Latest(r.Context(), ref)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(snap))
}

// GetCountdown GET /get_countdown/{id}
func (h *MonitorHandler) GetCountdown(w http.ResponseWriter, r *http.Request, id string) {
	status, err := h.svc.GetCountdown(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(status))
}

type countdownChange struct {
	Status    string `json:"status"`
	Remaining int64  `json:"remaining"`
}

// ResetCountdown POST /reset_countdown/{id}
func (h *MonitorHandler) ResetCountdown(w http.ResponseWriter, r *http.Request, id string) {
	seconds, err := h.svc.ResetCountdown(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(countdownChange{Status: "reset", Remaining: seconds}))
}

// SetCountdown POST /countdown/{id}/set  body: {"value": "1y2m10d"}
func (h *MonitorHandler) SetCountdown(w http.ResponseWriter, r *http.Request, id string) {
	var body struct {
		Value string `json:"value"`
	}
	if err := readBodyJSON(r, 1<<16, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}

	seconds, err := h.svc.SetCountdown(r.Context(), id, body.Value)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(countdownChange{Status: "ok", Remaining: seconds}))
}

// GetEndDate GET /countdown/{id}/end_date
func (h *MonitorHandler) GetEndDate(w http.ResponseWriter, r *http.Request, id string) {
	date, err := h.svc.EndDate(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]string{"end_date": date}))
}

// ExportCountdowns GET /countdown/export
func (h *MonitorHandler) ExportCountdowns(w http.ResponseWriter, r *http.Request) {
	data, err := h.svc.ExportCountdowns(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	filename := "countdowns_" + time.Now().Format("20060102_150405") + ".xlsx"
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *MonitorHandler) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, models.ErrUnknownDevice) {
		writeJSON(w, http.StatusNotFound, NotFound(err.Error()))
		return
	}
	h.logger.Error("Request failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, Fail(err.Error()))
}
