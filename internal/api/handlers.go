package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/jmylchreest/leilao/internal/domain"
	"github.com/jmylchreest/leilao/internal/logger"
	"github.com/jmylchreest/leilao/internal/ranking"
	"github.com/jmylchreest/leilao/internal/version"
)

const maxBodyBytes = 1 << 20

var validate = validator.New()

func init() {
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		return name
	})
}

type analyzeRequest struct {
	State         string  `json:"estado" validate:"required,len=2,alpha"`
	City          string  `json:"cidade" validate:"required"`
	MinScore      float64 `json:"min_nota" validate:"gte=0,lte=10"`
	MaxProperties *int    `json:"max_imoveis,omitempty" validate:"omitempty,gte=1"`
}

func (r analyzeRequest) params() domain.RunParams {
	p := domain.RunParams{State: r.State, City: r.City, MinScore: r.MinScore}
	if r.MaxProperties != nil {
		p.MaxProperties = *r.MaxProperties
	}
	return p.Normalize()
}

type analyzeResponse struct {
	TaskID    string            `json:"task_id"`
	Status    domain.TaskStatus `json:"status"`
	Message   string            `json:"message"`
	StatusURL string            `json:"status_url"`
	ResultURL string            `json:"result_url"`
	CreatedAt time.Time         `json:"created_at"`
}

type taskView struct {
	domain.Task
	HasResult bool `json:"has_result"`
}

func viewOf(t domain.Task) taskView {
	return taskView{Task: t, HasResult: t.HasResult()}
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":        "Leilão Imóveis API",
		"version":     version.Get().Version,
		"description": "Análise automatizada de imóveis de leilão",
		"endpoints": map[string]string{
			"POST /analyze":          "Inicia análise",
			"GET /status/{task_id}":  "Verifica status",
			"GET /result/{task_id}":  "Obtém resultado",
			"GET /ranking":           "Lista imóveis analisados",
			"DELETE /task/{task_id}": "Remove tarefa",
			"GET /tasks":             "Lista tarefas",
			"GET /health":            "Healthcheck",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "healthy",
		"timestamp":    s.now(),
		"version":      version.Get().Version,
		"active_tasks": s.tasks.Active(),
	})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "corpo inválido: "+err.Error())
		return
	}
	req.State = strings.TrimSpace(req.State)
	req.City = strings.TrimSpace(req.City)
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, validationMessage(err))
		return
	}

	t, err := s.tasks.Submit(req.params())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "Serviço em desligamento: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, analyzeResponse{
		TaskID:    t.ID,
		Status:    t.Status,
		Message:   "Análise iniciada. Use o task_id para acompanhar o progresso.",
		StatusURL: "/status/" + t.ID,
		ResultURL: "/result/" + t.ID,
		CreatedAt: t.CreatedAt,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	t, err := s.tasks.Get(mux.Vars(r)["task_id"])
	if err != nil {
		writeTaskError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(t))
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["task_id"]
	report, err := s.tasks.Result(id)
	if err == nil {
		writeJSON(w, http.StatusOK, report)
		return
	}
	if errors.Is(err, domain.ErrNotReady) {
		if t, gerr := s.tasks.Get(id); gerr == nil && t.Status == domain.TaskPending {
			writeError(w, http.StatusTooEarly, "Análise ainda não iniciada")
			return
		}
		writeError(w, http.StatusTooEarly, "Análise ainda em execução")
		return
	}
	writeTaskError(w, err)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.tasks.Delete(mux.Vars(r)["task_id"]); err != nil {
		writeTaskError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Task removida com sucesso"})
}

func (s *Server) handleTasks(w http.ResponseWriter, _ *http.Request) {
	tasks := s.tasks.List()
	views := make([]taskView, 0, len(tasks))
	for _, t := range tasks {
		views = append(views, viewOf(t))
	}
	writeJSON(w, http.StatusOK, map[string]any{"total": len(views), "tasks": views})
}

func (s *Server) handleRanking(w http.ResponseWriter, r *http.Request) {
	q, err := parseRankingQuery(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := q.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, validationMessage(err))
		return
	}

	res, err := s.ranker.Query(q)
	if err != nil {
		logger.Error("ranking query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Erro ao buscar ranking: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func parseRankingQuery(r *http.Request) (ranking.Query, error) {
	q := ranking.NewQuery()
	values := r.URL.Query()

	if v := values.Get("min_nota"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return q, errors.New("min_nota deve ser numérico")
		}
		q.MinScore = f
	}
	if v := values.Get("max_results"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return q, errors.New("max_results deve ser inteiro")
		}
		q.MaxResults = n
	}
	q.Comarca = strings.TrimSpace(values.Get("comarca"))
	return q, nil
}

func writeTaskError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "Task não encontrada")
	case errors.Is(err, domain.ErrTaskFailed):
		msg := strings.TrimPrefix(err.Error(), domain.ErrTaskFailed.Error()+": ")
		writeError(w, http.StatusInternalServerError, "Análise falhou: "+msg)
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fe.Field()+": "+fe.Tag()+" "+fe.Param())
	}
	return "parâmetros inválidos: " + strings.Join(parts, "; ")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		logger.Warn("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
