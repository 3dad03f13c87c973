package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ashureev/datagym/internal/dataset"
	"github.com/ashureev/datagym/internal/domain"
	"github.com/ashureev/datagym/internal/lab"
	"github.com/ashureev/datagym/internal/logging"
	"github.com/ashureev/datagym/internal/workspace"
)

// previewRows is how many rows the dataset preview shows.
const previewRows = 5

// multipartMemory is the in-memory part of a parsed upload; the rest
// spills to temporary files.
const multipartMemory = 32 << 20

type settingsBody struct {
	Track      string `json:"track"`
	Difficulty string `json:"difficulty"`
}

type runRequest struct {
	Code  string `json:"code"`
	Track string `json:"track,omitempty"`
}

type datasetResponse struct {
	Loaded    bool             `json:"loaded"`
	TableName string           `json:"table_name,omitempty"`
	FileName  string           `json:"file_name,omitempty"`
	Rows      int              `json:"rows"`
	Preview   *dataset.Dataset `json:"preview,omitempty"`
	Changed   bool             `json:"changed"`
}

func describe(reg *dataset.Registration, changed bool) datasetResponse {
	if reg == nil {
		return datasetResponse{}
	}
	return datasetResponse{
		Loaded:    true,
		TableName: reg.TableName,
		FileName:  reg.FileName,
		Rows:      reg.Dataset.Len(),
		Preview:   reg.Dataset.Head(previewRows),
		Changed:   changed,
	}
}

// GetSettings returns the workspace track and difficulty.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	track, difficulty := ws.Settings()
	JSON(w, http.StatusOK, settingsBody{Track: string(track), Difficulty: string(difficulty)})
}

// PutSettings changes the workspace track and difficulty.
func (h *Handler) PutSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsBody
	if err := decode(r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	track, err := domain.ParseTrack(req.Track)
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	difficulty, err := domain.ParseDifficulty(req.Difficulty)
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	ws.SetSettings(track, difficulty)
	JSON(w, http.StatusOK, settingsBody{Track: string(track), Difficulty: string(difficulty)})
}

// GetDataset describes the registered dataset.
func (h *Handler) GetDataset(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	JSON(w, http.StatusOK, describe(ws.Registration(), false))
}

// UploadDataset registers an uploaded CSV or XLSX file. Uploading the same
// file name again is ignored until the workspace is reset.
func (h *Handler) UploadDataset(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			Error(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		Error(w, http.StatusBadRequest, "invalid multipart upload")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		Error(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer func() { _ = file.Close() }()

	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	reg, changed, err := ws.Upload(header.Filename, func() (*dataset.Dataset, error) {
		return dataset.Parse(header.Filename, file)
	})
	if err != nil {
		h.registrationFailed(w, r, ws, err)
		return
	}
	if changed {
		logging.FromContext(r.Context()).Info("Dataset registered",
			"workspace", ws.Key().String(),
			"table", reg.TableName,
			"rows", reg.Dataset.Len())
	}
	JSON(w, http.StatusOK, describe(reg, changed))
}

// LoadSample registers the built-in sample dataset.
func (h *Handler) LoadSample(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	reg, changed, err := ws.Upload(dataset.SampleFileName, dataset.Sample)
	if err != nil {
		h.registrationFailed(w, r, ws, err)
		return
	}
	JSON(w, http.StatusOK, describe(reg, changed))
}

// ResetDataset clears the registration and the upload marker.
func (h *Handler) ResetDataset(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	ws.Reset()
	JSON(w, http.StatusOK, describe(nil, false))
}

func (h *Handler) registrationFailed(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace, err error) {
	if errors.Is(err, dataset.ErrRegistration) {
		logging.FromContext(r.Context()).Warn("Dataset rejected", "workspace", ws.Key().String(), "error", err)
		Error(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	logging.FromContext(r.Context()).Error("Dataset registration failed", "workspace", ws.Key().String(), "error", err)
	Error(w, http.StatusInternalServerError, "failed to register dataset")
}

// Run evaluates a submission. Evaluation failures are a 200 with ok=false.
func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := decode(r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}

	track, _ := ws.Settings()
	if req.Track != "" {
		t, err := domain.ParseTrack(req.Track)
		if err != nil {
			Error(w, http.StatusBadRequest, err.Error())
			return
		}
		track = t
	}

	report, err := h.runner.Run(r.Context(), ws, track, req.Code)
	switch {
	case errors.Is(err, lab.ErrNoDataset):
		Error(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, lab.ErrRunInProgress):
		Error(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		logging.FromContext(r.Context()).Error("Run failed", "workspace", ws.Key().String(), "error", err)
		Error(w, http.StatusInternalServerError, "run failed")
		return
	}
	JSON(w, http.StatusOK, report)
}
