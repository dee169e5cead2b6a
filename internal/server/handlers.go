package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fakeyudi/typetrace/internal/export"
	"github.com/fakeyudi/typetrace/internal/source"
)

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debugw("write response failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, err error) {
	s.writeJSON(w, code, errorBody{Error: err.Error()})
}

// lastParam reads the optional ?last=n query parameter. ok is false when
// the parameter is absent.
func lastParam(r *http.Request) (n int, ok bool, err error) {
	raw := r.URL.Query().Get("last")
	if raw == "" {
		return 0, false, nil
	}
	n, err = strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false, fmt.Errorf("last must be a non-negative integer, got %q", raw)
	}
	return n, true, nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.poller.Stats())
}

func (s *Server) handleChanges(w http.ResponseWriter, r *http.Request) {
	n, ok, err := lastParam(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if ok {
		s.writeJSON(w, http.StatusOK, s.poller.LastChanges(n))
		return
	}
	s.writeJSON(w, http.StatusOK, s.poller.Changes())
}

func (s *Server) handleCPS(w http.ResponseWriter, r *http.Request) {
	n, ok, err := lastParam(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if !ok {
		n = DefaultCPSSamples
	}
	s.writeJSON(w, http.StatusOK, s.poller.CPSHistory(n))
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.poller.Start(r.Context()); err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, source.ErrUnavailable) {
			code = http.StatusServiceUnavailable
		}
		s.logger.Warnw("start rejected", "error", err)
		s.writeError(w, code, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.poller.Stop()
	s.writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.poller.ClearChanges()
	s.writeJSON(w, http.StatusOK, s.status())
}

// Document builds the export of the current history.
func (s *Server) Document() *export.Document {
	doc := export.Build(s.poller.Stats(), s.poller.Changes(), s.now())
	doc.Author = s.author
	doc.RunID = s.poller.RunID()
	return doc
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	switch format {
	case "", "json":
		format = "json"
	case "markdown", "md":
		format = "markdown"
	default:
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("unknown format %q", format))
		return
	}

	doc := s.Document()
	data, err := export.RendererFor(format).Render(doc)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("render export: %w", err))
		return
	}

	contentType := "application/json"
	if format == "markdown" {
		contentType = "text/markdown; charset=utf-8"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition",
		mime.FormatMediaType("attachment", map[string]string{"filename": export.Filename(format, doc.ExportDate)}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

type textBody struct {
	Text string `json:"text"`
}

func (s *Server) handleText(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, textBody{Text: s.poller.CurrentText(r.Context())})
}

// handleDocument accepts the document body either as raw text or as
// {"text": "..."} with a JSON content type.
func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	if s.push == nil {
		s.writeError(w, http.StatusNotFound, errors.New("this daemon does not accept pushed documents"))
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxDocumentBytes))
	if err != nil {
		s.writeError(w, http.StatusRequestEntityTooLarge, fmt.Errorf("read document: %w", err))
		return
	}

	text := string(body)
	if ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); ct == "application/json" {
		var tb textBody
		if err := json.Unmarshal(body, &tb); err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode document: %w", err))
			return
		}
		text = tb.Text
	}

	s.push.Set(text)
	w.WriteHeader(http.StatusNoContent)
}

// handleWS streams Stats every refresh interval until the client goes away
// or the server shuts down.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debugw("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// Reads only detect the peer closing.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.refresh)
	defer ticker.Stop()

	for {
		if err := conn.WriteJSON(s.poller.Stats()); err != nil {
			s.logger.Debugw("websocket write failed", "error", err)
			return
		}
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(time.Second))
			return
		case <-ticker.C:
		}
	}
}
