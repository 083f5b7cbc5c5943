package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/RyanBlaney/sonido-maestro/grading"
	"github.com/RyanBlaney/sonido-maestro/grading/comparison"
	"github.com/RyanBlaney/sonido-maestro/grading/notes"
	"github.com/RyanBlaney/sonido-maestro/grading/score"
	"github.com/RyanBlaney/sonido-maestro/logging"
	"github.com/RyanBlaney/sonido-maestro/transcode"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
)

const maxUploadBytes = 32 << 20

var (
	serveAddr    string
	serveOrigins []string
)

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
	serveCmd.Flags().StringSliceVar(&serveOrigins, "allowed-origins", []string{"*"}, "CORS allowed origins")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves the grading API",
	Long:  `Serves the grading API over HTTP.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := newGrader()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		dec := newDecoder()
		if err := dec.ValidateConfig(); err != nil {
			return fmt.Errorf("audio decoder unavailable: %w", err)
		}

		return serve(ctx, serveAddr, newRouter(g, dec, serveOrigins))
	},
}

// CompareRequest is the body of POST /api/compare
type CompareRequest struct {
	IdealNotes  []notes.Note     `json:"ideal_notes"`
	ActualNotes []notes.Note     `json:"actual_notes"`
	NoteInfo    []notes.NoteInfo `json:"note_info,omitempty"`
}

type errorResponse struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

type statusResponse struct {
	ID     string    `json:"id"`
	Status string    `json:"status"`
	Time   time.Time `json:"time"`
}

type server struct {
	grader  *grading.Grader
	decoder *transcode.Decoder
	logger  logging.Logger
}

func newRouter(g *grading.Grader, dec *transcode.Decoder, origins []string) http.Handler {
	s := &server{
		grader:  g,
		decoder: dec,
		logger: logging.WithFields(logging.Fields{
			"component": "api",
		}),
	}

	router := mux.NewRouter().StrictSlash(true)
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/compare", s.handleCompare).Methods(http.MethodPost)
	api.HandleFunc("/grade", s.handleGrade).Methods(http.MethodPost)

	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(router)
}

func serve(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("Listening", logging.Fields{"addr": addr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logging.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		ID:     uuid.NewString(),
		Status: "ok",
		Time:   time.Now().UTC(),
	})
}

func (s *server) handleCompare(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()
	logger := s.logger.WithFields(logging.Fields{"request_id": id, "route": "compare"})

	var req CompareRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUploadBytes)).Decode(&req); err != nil {
		s.fail(w, logger, id, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	report, err := s.grader.Compare(req.IdealNotes, req.ActualNotes, req.NoteInfo)
	if err != nil {
		s.fail(w, logger, id, statusFor(err), err)
		return
	}

	report.ID = id
	writeJSON(w, http.StatusOK, report)
}

func (s *server) handleGrade(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()
	logger := s.logger.WithFields(logging.Fields{"request_id": id, "route": "grade"})

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.fail(w, logger, id, http.StatusBadRequest, fmt.Errorf("invalid multipart form: %w", err))
		return
	}

	tempo := 0.0
	if v := r.FormValue("tempo"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || parsed < 0 {
			s.fail(w, logger, id, http.StatusBadRequest, fmt.Errorf("invalid tempo %q", v))
			return
		}
		tempo = parsed
	}

	scoreFile, scoreHeader, err := r.FormFile("score")
	if err != nil {
		s.fail(w, logger, id, http.StatusBadRequest, fmt.Errorf("missing score file: %w", err))
		return
	}
	defer scoreFile.Close()

	sc, err := score.Read(scoreFile, filepath.Ext(scoreHeader.Filename))
	if err != nil {
		s.fail(w, logger, id, statusFor(err), fmt.Errorf("invalid score: %w", err))
		return
	}

	recFile, _, err := r.FormFile("recording")
	if err != nil {
		s.fail(w, logger, id, http.StatusBadRequest, fmt.Errorf("missing recording file: %w", err))
		return
	}
	defer recFile.Close()

	rec, err := s.decoder.DecodeReader(r.Context(), recFile)
	if err != nil {
		s.fail(w, logger, id, http.StatusBadRequest, fmt.Errorf("invalid recording: %w", err))
		return
	}

	report, err := s.grader.Grade(logging.ContextWithFields(r.Context(), logging.Fields{"request_id": id}), sc, rec.PCM, rec.SampleRate, tempo)
	if err != nil {
		s.fail(w, logger, id, statusFor(err), err)
		return
	}

	report.ID = id
	writeJSON(w, http.StatusOK, report)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, comparison.ErrEmptyInput):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}

func (s *server) fail(w http.ResponseWriter, logger logging.Logger, id string, status int, err error) {
	logger.Warn("Request failed", logging.Fields{"status": status, "error": err.Error()})
	writeJSON(w, status, errorResponse{ID: id, Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error(err, "Failed to write response")
	}
}
