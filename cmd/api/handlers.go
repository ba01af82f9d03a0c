package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pochini/pochini/engine/advisor"
	"github.com/pochini/pochini/engine/domain"
	"github.com/pochini/pochini/engine/news"
	"github.com/pochini/pochini/engine/recall"
	"github.com/pochini/pochini/pkg/metrics"
	"github.com/pochini/pochini/pkg/resilience"
	"github.com/pochini/pochini/pkg/vehiclenlp"
)

const (
	msgAnalysisDone  = "Анализ завершен."
	msgScheduleDone  = "График создан."
	msgBadRequest    = "Некорректный запрос."
	msgNotFound      = "Запись не найдена."
	msgTooMany       = "Слишком много запросов. Пожалуйста, подождите немного."
	msgRecallOff     = "Поиск похожих консультаций недоступен."
	maxBodyBytes     = 1 << 20
	maxSimilarResult = 10
)

// advisorService is the part of *advisor.Advisor the handlers use.
type advisorService interface {
	AnalyzeSymptoms(ctx context.Context, in advisor.SymptomInput) (*advisor.SymptomAnalysis, error)
	MaintenanceSchedule(ctx context.Context, in advisor.MaintenanceInput) (*advisor.Schedule, error)
	Chat(ctx context.Context, in advisor.ChatInput) (*advisor.ChatReply, error)
	ChatStream(ctx context.Context, in advisor.ChatInput, onToken func(string) error) (*advisor.ChatReply, error)
}

// similarFinder is the part of *recall.Service the handlers use.
type similarFinder interface {
	Similar(ctx context.Context, text string, k int) ([]recall.Match, error)
}

// server holds the handler dependencies. recall is nil when Qdrant is not
// configured.
type server struct {
	advisor  advisorService
	store    news.Store
	recorder *news.Recorder
	recall   similarFinder
	metrics  *metrics.Registry
	logger   *slog.Logger
	now      func() time.Time
	upgrader websocket.Upgrader
	// llmState reports the model circuit breaker; nil omits it from health.
	llmState func() resilience.State
	// fallbacks counts feed operations served by the file store after a
	// document store failure; nil omits it.
	fallbacks func() int64
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.Handle("GET /metrics", s.metricsHandler())
	mux.HandleFunc("POST /api/symptoms", s.handleSymptoms)
	mux.HandleFunc("POST /api/maintenance", s.handleMaintenance)
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("POST /api/chat/stream", s.handleChatStream)
	mux.HandleFunc("GET /api/chat/ws", s.handleChatWS)
	mux.HandleFunc("GET /api/news", s.handleNewsList)
	mux.HandleFunc("GET /api/news/similar", s.handleNewsSimilar)
	mux.HandleFunc("GET /api/news/{id}", s.handleNewsGet)
	return mux
}

// --- Envelope ---

// state is the response envelope of every JSON endpoint.
type state struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter, message string, data any) {
	writeJSON(w, http.StatusOK, state{Status: "success", Message: message, Data: data})
}

func writeFail(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, state{Status: "error", Message: message})
}

// internalError answers panics and rate limits without leaking details.
func internalError(w http.ResponseWriter, _ *http.Request) {
	writeFail(w, http.StatusInternalServerError, domain.MsgUnexpected)
}

func tooManyRequests(w http.ResponseWriter, _ *http.Request) {
	writeFail(w, http.StatusTooManyRequests, msgTooMany)
}

// statusFor maps a validation or flow error to an HTTP status and the
// message shown to the user.
func statusFor(err error) (int, string) {
	if domain.IsValidation(err) {
		return http.StatusBadRequest, domain.UserMessage(err)
	}
	if msg := domain.UserMessage(err); msg != "" {
		return http.StatusUnprocessableEntity, msg
	}
	if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrRateLimited) {
		return http.StatusServiceUnavailable, domain.MsgUnexpected
	}
	return http.StatusInternalServerError, domain.MsgUnexpected
}

func (s *server) fail(w http.ResponseWriter, r *http.Request, flow string, err error) {
	code, msg := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed", "flow", flow, "path", r.URL.Path, "err", err)
	}
	writeFail(w, code, msg)
}

// --- Decoding ---

func isForm(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && (mt == "application/x-www-form-urlencoded" || mt == "multipart/form-data")
}

// decode fills dst from a JSON body, or from form fields through fromForm.
func decode(w http.ResponseWriter, r *http.Request, dst any, fromForm func(get func(string) string)) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if fromForm != nil && isForm(r) {
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return err
		}
		fromForm(r.PostFormValue)
		return nil
	}
	return json.NewDecoder(r.Body).Decode(dst)
}

// --- Handlers ---

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	body := map[string]string{"status": "ok"}
	if s.llmState != nil {
		body["llm"] = s.llmState().String()
	}
	if s.fallbacks != nil {
		body["newsFallbacks"] = strconv.FormatInt(s.fallbacks(), 10)
	}
	writeJSON(w, http.StatusOK, body)
}

// metricsHandler refreshes sampled gauges before rendering the registry.
func (s *server) metricsHandler() http.Handler {
	next := s.metrics.Handler()
	if s.fallbacks == nil {
		return next
	}
	gauge := s.metrics.Gauge("news_store_fallbacks", "Feed operations served by the file store after a document store failure.")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gauge.Set(float64(s.fallbacks()))
		next.ServeHTTP(w, r)
	})
}

func (s *server) handleSymptoms(w http.ResponseWriter, r *http.Request) {
	var f domain.SymptomForm
	if err := decode(w, r, &f, func(get func(string) string) {
		f = domain.SymptomForm{Make: get("make"), Model: get("model"), Year: get("year"), Symptoms: get("symptoms")}
	}); err != nil {
		writeFail(w, http.StatusBadRequest, msgBadRequest)
		return
	}
	vehicle, symptoms, err := domain.ValidateSymptomForm(f, s.now())
	if err != nil {
		s.fail(w, r, "symptoms", err)
		return
	}
	out, err := s.advisor.AnalyzeSymptoms(r.Context(), advisor.SymptomInput{
		VehicleDetails: vehicle.Details(),
		Symptoms:       symptoms,
	})
	if err != nil {
		s.fail(w, r, "symptoms", err)
		return
	}

	answer, err := json.Marshal(out.Diagnoses)
	if err == nil {
		a := news.NewArticle(news.SourceSymptoms, "Диагностика: "+vehicle.Details(), symptoms, string(answer), s.now())
		a.Vehicle = vehicle.Details()
		s.recorder.Record(r.Context(), a)
	}
	writeOK(w, msgAnalysisDone, out)
}

func (s *server) handleMaintenance(w http.ResponseWriter, r *http.Request) {
	var f domain.MaintenanceForm
	if err := decode(w, r, &f, func(get func(string) string) {
		f = domain.MaintenanceForm{Make: get("make"), Model: get("model")}
	}); err != nil {
		writeFail(w, http.StatusBadRequest, msgBadRequest)
		return
	}
	vehicle, err := domain.ValidateMaintenanceForm(f)
	if err != nil {
		s.fail(w, r, "maintenance", err)
		return
	}
	out, err := s.advisor.MaintenanceSchedule(r.Context(), advisor.MaintenanceInput{Make: vehicle.Make, Model: vehicle.Model})
	if err != nil {
		s.fail(w, r, "maintenance", err)
		return
	}

	a := news.NewArticle(news.SourceMaintenance, "График ТО: "+vehicle.Details(),
		"График обслуживания для "+vehicle.Details(), out.Text, s.now())
	a.Vehicle = vehicle.Details()
	s.recorder.Record(r.Context(), a)
	writeOK(w, msgScheduleDone, out)
}

func (s *server) decodeChat(w http.ResponseWriter, r *http.Request) (domain.ChatForm, bool) {
	var f domain.ChatForm
	if err := decode(w, r, &f, nil); err != nil {
		writeFail(w, http.StatusBadRequest, msgBadRequest)
		return f, false
	}
	f, err := domain.ValidateChatForm(f)
	if err != nil {
		s.fail(w, r, "chat", err)
		return f, false
	}
	return f, true
}

// recordChat stores a chat exchange, titled with the vehicle it mentions.
func (s *server) recordChat(ctx context.Context, question, answer string) {
	title := "Вопрос ассистенту"
	var vehicle string
	if m := vehiclenlp.ExtractBest(question); m != nil {
		vehicle = m.String()
		title = "Вопрос о " + vehicle
	}
	a := news.NewArticle(news.SourceChat, title, question, answer, s.now())
	a.Vehicle = vehicle
	s.recorder.Record(ctx, a)
}

func (s *server) handleChat(w http.ResponseWriter, r *http.Request) {
	f, ok := s.decodeChat(w, r)
	if !ok {
		return
	}
	reply, err := s.advisor.Chat(r.Context(), advisor.ChatInput{Message: f.Message, History: f.History})
	if err != nil {
		s.fail(w, r, "chat", err)
		return
	}
	s.recordChat(r.Context(), f.Message, reply.Response)
	writeOK(w, "", reply)
}

func writeEvent(w http.ResponseWriter, f http.Flusher, event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	f.Flush()
	return nil
}

// handleChatStream answers over server-sent events: one "token" event per
// fragment, then "done" with the full reply or "error".
func (s *server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	f, ok := s.decodeChat(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeFail(w, http.StatusInternalServerError, domain.MsgUnexpected)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	reply, err := s.advisor.ChatStream(r.Context(), advisor.ChatInput{Message: f.Message, History: f.History}, func(tok string) error {
		return writeEvent(w, flusher, "token", map[string]string{"token": tok})
	})
	if err != nil {
		code, msg := statusFor(err)
		if code >= http.StatusInternalServerError {
			s.logger.Error("chat stream failed", "err", err)
		}
		writeEvent(w, flusher, "error", map[string]string{"message": msg})
		return
	}
	s.recordChat(r.Context(), f.Message, reply.Response)
	writeEvent(w, flusher, "done", reply)
}

// wsFrame is a websocket chat message from the server.
type wsFrame struct {
	Type     string `json:"type"` // token | done | error
	Token    string `json:"token,omitempty"`
	Response string `json:"response,omitempty"`
	Message  string `json:"message,omitempty"`
}

// handleChatWS serves a chat session over a websocket. Each client frame is
// a ChatForm; the answer streams back as token frames and a final done frame.
func (s *server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxBodyBytes)

	for {
		var f domain.ChatForm
		if err := conn.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("websocket read failed", "err", err)
			}
			return
		}
		f, err := domain.ValidateChatForm(f)
		if err != nil {
			_, msg := statusFor(err)
			if conn.WriteJSON(wsFrame{Type: "error", Message: msg}) != nil {
				return
			}
			continue
		}
		reply, err := s.advisor.ChatStream(r.Context(), advisor.ChatInput{Message: f.Message, History: f.History}, func(tok string) error {
			return conn.WriteJSON(wsFrame{Type: "token", Token: tok})
		})
		if err != nil {
			code, msg := statusFor(err)
			if code >= http.StatusInternalServerError {
				s.logger.Error("websocket chat failed", "err", err)
			}
			if conn.WriteJSON(wsFrame{Type: "error", Message: msg}) != nil {
				return
			}
			continue
		}
		s.recordChat(r.Context(), f.Message, reply.Response)
		if conn.WriteJSON(wsFrame{Type: "done", Response: reply.Response}) != nil {
			return
		}
	}
}

func (s *server) handleNewsList(w http.ResponseWriter, r *http.Request) {
	articles, err := s.store.List(r.Context())
	if err != nil {
		s.fail(w, r, "news", err)
		return
	}
	if articles == nil {
		articles = []news.Article{}
	}
	writeOK(w, "", articles)
}

func (s *server) handleNewsGet(w http.ResponseWriter, r *http.Request) {
	a, err := s.store.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, news.ErrNotFound) {
		writeFail(w, http.StatusNotFound, msgNotFound)
		return
	}
	if err != nil {
		s.fail(w, r, "news", err)
		return
	}
	writeOK(w, "", a)
}

func (s *server) handleNewsSimilar(w http.ResponseWriter, r *http.Request) {
	if s.recall == nil {
		writeFail(w, http.StatusServiceUnavailable, msgRecallOff)
		return
	}
	q := r.URL.Query().Get("q")
	if q == "" {
		writeFail(w, http.StatusBadRequest, msgBadRequest)
		return
	}
	k := 0
	if v := r.URL.Query().Get("k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeFail(w, http.StatusBadRequest, msgBadRequest)
			return
		}
		k = min(n, maxSimilarResult)
	}
	matches, err := s.recall.Similar(r.Context(), q, k)
	if err != nil {
		s.fail(w, r, "similar", err)
		return
	}
	if matches == nil {
		matches = []recall.Match{}
	}
	writeOK(w, "", matches)
}
