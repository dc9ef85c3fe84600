// Pacote httpapi expõe os handlers REST do Vote Store e traduz requisições HTTP para o serviço de votação.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/marcelojr/zelda-votos/internal/app/voting"
	"github.com/marcelojr/zelda-votos/internal/domain"
	"github.com/marcelojr/zelda-votos/internal/platform/antifraude"
	"github.com/marcelojr/zelda-votos/internal/platform/metrics"
)

// API empacota handlers HTTP ligados ao serviço de votação e ao logger.
type API struct {
	service domain.VotingService
	logger  *slog.Logger
}

func New(service domain.VotingService, logger *slog.Logger) *API {
	return &API{service: service, logger: logger}
}

func (a *API) Register(mux *http.ServeMux) {
	// Mantemos as rotas centralizadas para facilitar testes e reuso em servidores diferentes.
	mux.HandleFunc("/healthz", a.handleHealthz)
	mux.HandleFunc("/votes", a.handleVotes)
}

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (a *API) handleVotes(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listarTotais(w, r)
	case http.MethodPost:
		a.registrarVoto(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "metodo nao suportado", http.StatusMethodNotAllowed)
	}
}

// listarTotais devolve todos os itens; o cliente filtra pelo seu item_id.
func (a *API) listarTotais(w http.ResponseWriter, r *http.Request) {
	totais, err := a.service.Totais(r.Context())
	if err != nil {
		a.logger.Error("erro ao listar totais", "err", err)
		responderErro(w, err)
		return
	}
	if totais == nil {
		totais = []domain.Placar{}
	}

	responderJSON(w, http.StatusOK, totais)
}

func (a *API) registrarVoto(w http.ResponseWriter, r *http.Request) {
	var voto domain.Voto
	if err := json.NewDecoder(r.Body).Decode(&voto); err != nil {
		metrics.ObserveVoteRequest("invalid_payload")
		a.logger.Warn("payload invalido ao registrar voto", "err", err)
		http.Error(w, "payload invalido", http.StatusBadRequest)
		return
	}

	// Origem nunca vem do corpo; ID e CriadoEm são sobrescritos pelo serviço.
	voto.OrigemIP = origem(r)
	voto.UserAgent = r.UserAgent()

	if err := a.service.RegistrarVoto(r.Context(), voto); err != nil {
		status := statusFromError(err)
		metrics.ObserveVoteRequest(status)
		a.logger.Warn("falha ao registrar voto", "err", err, "item", voto.ItemID, "status", status)
		responderErro(w, err)
		return
	}

	if a.service.Assincrono() {
		metrics.ObserveVoteRequest("accepted")
		responderJSON(w, http.StatusAccepted, map[string]string{"status": "recebido"})
	} else {
		metrics.ObserveVoteRequest("created")
		responderJSON(w, http.StatusCreated, map[string]string{"status": "registrado"})
	}
	a.logger.Info("voto recebido", "item", voto.ItemID)
}

func origem(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func responderJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func responderErro(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, voting.ErrItemInvalido):
		status = http.StatusBadRequest
	case errors.Is(err, voting.ErrValorInvalido):
		status = http.StatusBadRequest
	case errors.Is(err, voting.ErrVotanteObrigatorio):
		status = http.StatusBadRequest
	case errors.Is(err, antifraude.ErrRateLimitExceeded):
		status = http.StatusTooManyRequests
	}

	responderJSON(w, status, map[string]string{"erro": err.Error()})
}

func statusFromError(err error) string {
	switch {
	case errors.Is(err, antifraude.ErrRateLimitExceeded):
		return "rate_limited"
	case errors.Is(err, voting.ErrItemInvalido), errors.Is(err, voting.ErrValorInvalido), errors.Is(err, voting.ErrVotanteObrigatorio):
		return "invalid"
	default:
		return "error"
	}
}
