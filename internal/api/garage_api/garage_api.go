// Package garage_api exposes the lifecycle engine over HTTP JSON.
package garage_api

import (
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"github.com/PlateWorks/ServiceBox/internal/models"
	"github.com/PlateWorks/ServiceBox/internal/plates"
	"github.com/PlateWorks/ServiceBox/internal/services/garage"
)

type GarageAPI struct {
	svc *garage.Service
}

func New(svc *garage.Service) *GarageAPI {
	return &GarageAPI{svc: svc}
}

func (a *GarageAPI) Router() chi.Router {
	r := chi.NewRouter()
	r.Route("/v1", func(r chi.Router) {
		r.Get("/statuses", a.listStatuses)
		r.Get("/plates/{plate}", a.getPlate)
		r.Patch("/plates/{plate}/current", a.patchCurrentByPlate)
		r.Get("/services/open", a.listOpen)
		r.Post("/services", a.createService)
		r.Patch("/services/{serviceID}", a.patchService)
		r.Post("/services/{serviceID}/signature", a.attachSignature)
	})
	return r
}

type createServiceRequest struct {
	Plate        string        `json:"plate"`
	Status       models.Status `json:"status"`
	MechanicName *string       `json:"mechanic_name"`
	Description  *string       `json:"description"`
	StartedAt    *time.Time    `json:"started_at"`
}

func (a *GarageAPI) createService(w http.ResponseWriter, r *http.Request) {
	var req createServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	svc, err := a.svc.Create(r.Context(), bearerToken(r), models.ServiceCreateInput{
		Plate:        req.Plate,
		Status:       req.Status,
		MechanicName: req.MechanicName,
		Description:  req.Description,
		StartedAt:    req.StartedAt,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toServicePayload(svc))
}

func (a *GarageAPI) patchService(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "serviceID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid service id")
		return
	}

	var patch models.ServicePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	svc, err := a.svc.Transition(r.Context(), bearerToken(r), id, patch)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toServicePayload(svc))
}

func (a *GarageAPI) patchCurrentByPlate(w http.ResponseWriter, r *http.Request) {
	var patch models.ServicePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	svc, err := a.svc.TransitionCurrentByPlate(r.Context(), bearerToken(r), chi.URLParam(r, "plate"), patch)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toServicePayload(svc))
}

type attachSignatureRequest struct {
	ImageBase64 string  `json:"image_base64"`
	SignerName  *string `json:"signer_name"`
}

func (a *GarageAPI) attachSignature(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "serviceID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid service id")
		return
	}

	var req attachSignatureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	image, err := base64.StdEncoding.DecodeString(req.ImageBase64)
	if err != nil || len(image) == 0 {
		writeError(w, http.StatusBadRequest, "image_base64 is not valid base64")
		return
	}

	svc, err := a.svc.AttachSignature(r.Context(), bearerToken(r), id, image, req.SignerName)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toServicePayload(svc))
}

func (a *GarageAPI) getPlate(w http.ResponseWriter, r *http.Request) {
	view, err := a.svc.QueryByPlate(r.Context(), chi.URLParam(r, "plate"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPlatePayload(view))
}

func (a *GarageAPI) listOpen(w http.ResponseWriter, r *http.Request) {
	views, err := a.svc.OpenAcrossFleet(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]platePayload, 0, len(views))
	for _, v := range views {
		out = append(out, toPlatePayload(v))
	}
	writeJSON(w, http.StatusOK, out)
}

type statusPayload struct {
	Value string      `json:"value"`
	Label string      `json:"label"`
	Tone  models.Tone `json:"tone"`
}

func (a *GarageAPI) listStatuses(w http.ResponseWriter, r *http.Request) {
	out := make([]statusPayload, 0, len(models.AllStatuses))
	for _, st := range models.AllStatuses {
		out = append(out, statusPayload{Value: string(st), Label: st.Label(), Tone: st.Tone()})
	}
	writeJSON(w, http.StatusOK, out)
}

type servicePayload struct {
	ID           uint64        `json:"id"`
	VehicleID    uint64        `json:"vehicle_id"`
	MechanicID   *uint64       `json:"mechanic_id"`
	Description  string        `json:"description"`
	Status       models.Status `json:"status"`
	StatusLabel  string        `json:"status_label"`
	StartedAt    time.Time     `json:"started_at"`
	FinishedAt   *time.Time    `json:"finished_at"`
	SignatureURL *string       `json:"signature_url"`
	SignerName   *string       `json:"signer_name"`
	SignedAt     *time.Time    `json:"signed_at"`
	CreatedAt    time.Time     `json:"created_at"`
}

func toServicePayload(s *models.Service) servicePayload {
	return servicePayload{
		ID:           s.ID,
		VehicleID:    s.VehicleID,
		MechanicID:   s.MechanicID,
		Description:  s.Description,
		Status:       s.Status,
		StatusLabel:  s.Status.Label(),
		StartedAt:    s.StartedAt,
		FinishedAt:   s.FinishedAt,
		SignatureURL: s.SignatureURL,
		SignerName:   s.SignerName,
		SignedAt:     s.SignedAt,
		CreatedAt:    s.CreatedAt,
	}
}

type platePayload struct {
	Plate       string              `json:"plate"`
	PlateMasked string              `json:"plate_masked"`
	Current     *models.ServiceView `json:"current"`
	Last        *models.ServiceView `json:"last"`
}

func toPlatePayload(v *models.PlateView) platePayload {
	return platePayload{
		Plate:       v.Plate,
		PlateMasked: plates.Mask(v.Plate),
		Current:     v.Current,
		Last:        v.Last,
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, models.ErrInvalidPlate),
		errors.Is(err, models.ErrInvalidStatus),
		errors.Is(err, models.ErrInvalidPatch),
		errors.Is(err, models.ErrInvalidStatusForCreate),
		errors.Is(err, models.ErrEmptySignatureImage):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrServiceNotFound),
		errors.Is(err, models.ErrNoCurrentService):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrDuplicateOpenService),
		errors.Is(err, models.ErrServiceClosed),
		errors.Is(err, models.ErrServiceNotDelivered),
		errors.Is(err, models.ErrAlreadySigned):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, models.ErrStoreUnavailable):
		slog.Error("garage api", "err", err)
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
	default:
		slog.Error("garage api", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
