// Package http wires the API routes and middleware.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"studylm/internal/handlers"
)

// Deps holds the handlers the router mounts.
type Deps struct {
	Upload      *handlers.UploadHandler
	IngestURL   *handlers.IngestURLHandler
	Ask         *handlers.AskHandler
	Notebooks   *handlers.NotebookHandler
	Study       *handlers.StudyHandler
	Files       *handlers.FilesHandler
	Notes       *handlers.NoteHandler
	Models      *handlers.ModelsHandler
	Health      *handlers.HealthHandler
	CORSOrigins []string
	UploadsDir  string
}

// NewRouter creates the HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(CORS(deps.CORSOrigins))
	r.Use(LoggerMiddleware)

	r.Post("/upload", deps.Upload.UploadPDF)
	r.Post("/upload_image", deps.Upload.UploadImage)
	r.Method(http.MethodPost, "/ingest_url", deps.IngestURL)
	r.Method(http.MethodPost, "/ask", deps.Ask)

	r.Route("/notebooks", func(r chi.Router) {
		r.Post("/", deps.Notebooks.Create)
		r.Get("/", deps.Notebooks.List)

		r.Route("/{notebookID}", func(r chi.Router) {
			r.Get("/", deps.Notebooks.Get)
			r.Patch("/", deps.Notebooks.Patch)
			r.Delete("/", deps.Notebooks.Delete)

			r.Post("/sources", deps.Notebooks.AttachSource)
			r.Delete("/sources/{fileID}", deps.Notebooks.DetachSource)
			r.Post("/facts", deps.Notebooks.AddFact)
			r.Delete("/facts/{factID}", deps.Notebooks.RemoveFact)
			r.Get("/history", deps.Notebooks.History)
			r.Delete("/history", deps.Notebooks.ClearHistory)
			r.Get("/settings", deps.Notebooks.GetSettings)
			r.Patch("/settings", deps.Notebooks.PatchSettings)

			r.Post("/ask", deps.Study.Ask)
			r.Post("/summarize", deps.Study.Summarize)
			r.Post("/flashcards", deps.Study.Flashcards)
			r.Post("/quiz", deps.Study.Quiz)
			r.Get("/study", deps.Study.GetStudy)
			r.Get("/export.md", deps.Study.ExportMarkdown)
			r.Get("/export.html", deps.Study.ExportHTML)
		})
	})

	r.Get("/files", deps.Files.List)
	r.Get("/files-meta", deps.Files.ListMeta)
	r.Get("/uploads-list", deps.Files.ListUploads)
	r.Get("/status/{fileID}", deps.Files.Status)
	r.Route("/file/{fileID}", func(r chi.Router) {
		r.Get("/", deps.Files.Info)
		r.Delete("/", deps.Files.Delete)
		r.Patch("/label", deps.Files.PatchLabel)
	})

	r.Post("/save_note", deps.Notes.Save)
	r.Get("/notes/{fileID}", deps.Notes.List)

	r.Method(http.MethodGet, "/models", deps.Models)
	r.Method(http.MethodGet, "/health", deps.Health)

	// Serve uploaded sources for citation links.
	fileServer := http.StripPrefix("/uploads/", http.FileServer(http.Dir(deps.UploadsDir)))
	r.Get("/uploads/*", func(w http.ResponseWriter, req *http.Request) {
		fileServer.ServeHTTP(w, req)
	})

	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("StudyLM API"))
	})

	return StripAPIPrefix(r)
}
