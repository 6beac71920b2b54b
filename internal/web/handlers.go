package web

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/fankserver/transcribe-web/internal/jobs"
	"github.com/fankserver/transcribe-web/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const (
	// MsgFileTooLarge is shown when an upload exceeds the configured limit
	MsgFileTooLarge = "File too large"

	multipartMemory = 32 << 20
)

// Handlers serves the upload, polling, result and download pages
type Handlers struct {
	launcher       *jobs.Launcher
	reporter       *jobs.Reporter
	maxUploadBytes int64
	ready          func() bool
	logger         *logrus.Entry
}

// NewHandlers creates the page handlers. maxUploadBytes <= 0 disables the size
// limit. ready backs /healthz; nil reports always ready.
func NewHandlers(launcher *jobs.Launcher, reporter *jobs.Reporter, maxUploadBytes int64, ready func() bool) *Handlers {
	return &Handlers{
		launcher:       launcher,
		reporter:       reporter,
		maxUploadBytes: maxUploadBytes,
		ready:          ready,
		logger:         logrus.WithField("component", "web"),
	}
}

// Router builds the chi router. A nil metrics middleware skips request metrics.
func (h *Handlers) Router(mm *metrics.Middleware) chi.Router {
	router := chi.NewRouter()

	if mm != nil {
		router.Use(mm.Handler)
	}
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		RequestLogger,
		middleware.Recoverer,
	)

	router.Get("/", h.index)
	router.Post("/", h.upload)
	router.Get("/processing/{jobId}", h.processing)
	router.Get("/progress/{jobId}", h.progress)
	router.Get("/result/{jobId}", h.result)
	router.Get("/download/{filename}", h.download)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", h.healthz)

	return router
}

func (h *Handlers) renderIndex(w http.ResponseWriter, status int, errMsg string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := templates.ExecuteTemplate(w, "index.html", indexPage{Error: errMsg, Languages: Languages}); err != nil {
		h.logger.WithError(err).Error("Failed to render upload form")
	}
}

func (h *Handlers) index(w http.ResponseWriter, r *http.Request) {
	h.renderIndex(w, http.StatusOK, "")
}

func (h *Handlers) upload(w http.ResponseWriter, r *http.Request) {
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}

	var upload *jobs.Upload
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.renderIndex(w, http.StatusRequestEntityTooLarge, MsgFileTooLarge)
			return
		}
		h.logger.WithError(err).Debug("Upload without multipart form")
	} else {
		defer func() {
			if err := r.MultipartForm.RemoveAll(); err != nil {
				h.logger.WithError(err).Warn("Failed to remove multipart temp files")
			}
		}()

		file, header, err := r.FormFile("file")
		switch {
		case err == nil:
			defer file.Close()
			upload = &jobs.Upload{Filename: header.Filename, Body: file}
		case errors.Is(err, http.ErrMissingFile) && hasEmptyFilePart(r.MultipartForm):
			// browsers send an unnamed part when no file was selected
			upload = &jobs.Upload{Body: strings.NewReader("")}
		}
	}

	jobID, err := h.launcher.Submit(r.Context(), upload, r.FormValue("language"))
	if err != nil {
		var verr *jobs.ValidationError
		if errors.As(err, &verr) {
			h.renderIndex(w, http.StatusOK, verr.Message)
			return
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.renderIndex(w, http.StatusRequestEntityTooLarge, MsgFileTooLarge)
			return
		}
		h.logger.WithError(err).Error("Failed to start transcription job")
		http.Error(w, "failed to start transcription", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, processingURL(jobID), http.StatusFound)
}

func hasEmptyFilePart(form *multipart.Form) bool {
	if form == nil {
		return false
	}
	_, ok := form.Value["file"]
	return ok
}

func (h *Handlers) processing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.ExecuteTemplate(w, "processing.html", processingPage{JobID: chi.URLParam(r, "jobId")}); err != nil {
		h.logger.WithError(err).Error("Failed to render processing page")
	}
}

func (h *Handlers) progress(w http.ResponseWriter, r *http.Request) {
	// JSON regardless of Accept; the record's internal fields only have JSON tags
	render.JSON(w, r, h.reporter.Poll(chi.URLParam(r, "jobId")))
}

func (h *Handlers) result(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")

	res, err := h.reporter.FetchResult(jobID)
	if err != nil {
		http.Redirect(w, r, processingURL(jobID), http.StatusFound)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	page := resultPage{
		Text:        res.Text,
		DownloadURL: "/download/" + url.PathEscape(res.Filename),
	}
	if err := templates.ExecuteTemplate(w, "result.html", page); err != nil {
		h.logger.WithError(err).Error("Failed to render result page")
	}
}

func (h *Handlers) download(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")

	path, err := h.reporter.ResultPath(filename)
	if err != nil {
		h.logger.WithError(err).WithField("file", filename).Debug("Download not available")
		http.NotFound(w, r)
		return
	}

	// #nosec G304 - path is resolved inside the result directory
	f, err := os.Open(path)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	http.ServeContent(w, r, filename, info.ModTime(), f)
}

func (h *Handlers) healthz(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil && !h.ready() {
		render.Status(r, http.StatusServiceUnavailable)
		render.PlainText(w, r, "transcriber not ready")
		return
	}
	render.PlainText(w, r, "ok")
}

func processingURL(jobID string) string {
	return "/processing/" + url.PathEscape(jobID)
}
