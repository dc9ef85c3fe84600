package web

// Pacote web centraliza a camada de apresentação HTML (SSR): a página de teste do contador ao vivo.

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/marcelojr/zelda-votos/internal/domain"
	"github.com/marcelojr/zelda-votos/internal/platform/antifraude"
)

//go:embed templates/*.gohtml
var templateFS embed.FS

// ItemPadrao é o item exibido quando a página abre sem `item_id`.
const ItemPadrao domain.ItemID = 42

// Frontend renderiza a página de voto com o total inicial vindo do servidor.
type Frontend struct {
	templates  *template.Template
	service    domain.VotingService
	staleGuard bool
}

// New carrega os templates embutidos e registra as dependências necessárias.
// staleGuard liga no browser o descarte de eventos com versão antiga, com o
// mesmo padrão (desligado) do cliente votesync.
func New(service domain.VotingService, staleGuard bool) (*Frontend, error) {
	if service == nil {
		return nil, fmt.Errorf("frontend: serviço de votação inexistente")
	}
	tmpl, err := template.ParseFS(templateFS,
		"templates/layout.gohtml",
		"templates/websocket.gohtml",
	)
	if err != nil {
		return nil, err
	}

	for _, name := range []string{"websocket_body", "layout"} {
		if tmpl.Lookup(name) == nil {
			return nil, fmt.Errorf("frontend: template %s não encontrado", name)
		}
	}

	return &Frontend{templates: tmpl, service: service, staleGuard: staleGuard}, nil
}

// Register expõe as rotas HTML na mesma mux da API.
func (f *Frontend) Register(mux *http.ServeMux) {
	mux.HandleFunc("/", f.handleRoot)
	mux.HandleFunc("/websocket", f.handleWebsocket)
}

func (f *Frontend) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	http.Redirect(w, r, "/websocket", http.StatusFound)
}

func (f *Frontend) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	item := ItemPadrao
	if raw := strings.TrimSpace(r.FormValue("item_id")); raw != "" {
		id, err := domain.ParseItemID(raw)
		if err != nil || !id.Valido() {
			f.render(w, http.StatusBadRequest, websocketPageData{ItemID: int64(item), StaleGuard: f.staleGuard, Error: "Informe um ID de ítem válido."})
			return
		}
		item = id
	}

	// Sem JS o formulário cai aqui; com JS o voto vai direto em POST /votes.
	if r.Method == http.MethodPost {
		voto := domain.Voto{
			ItemID:    item,
			VotanteID: uuid.NewString(),
			Valor:     1,
			OrigemIP:  clientIP(r),
			UserAgent: r.UserAgent(),
		}
		status := "success"
		if err := f.service.RegistrarVoto(ctx, voto); err != nil {
			status = translateVoteStatus(err)
		}
		http.Redirect(w, r, "/websocket?item_id="+url.QueryEscape(item.String())+"&status="+status, http.StatusSeeOther)
		return
	}

	data := websocketPageData{ItemID: int64(item), StaleGuard: f.staleGuard}
	switch r.URL.Query().Get("status") {
	case "success":
		data.Message = "Voto registrado!"
	case "rate_limited":
		data.Message = "Límite de votos alcanzado, espera un momento."
	case "error":
		data.Message = "Error al registrar el voto"
	}

	placares, err := f.service.Totais(ctx)
	if err != nil {
		// Igual ao cliente: snapshot falhou, mostramos 0 e seguimos ao vivo.
		data.SnapshotError = true
	}
	for _, p := range placares {
		if p.ItemID == item {
			data.Total = p.Total
			data.Versao = p.Versao
			break
		}
	}

	f.render(w, http.StatusOK, data)
}

func (f *Frontend) render(w http.ResponseWriter, status int, data websocketPageData) {
	var content strings.Builder
	if err := f.templates.ExecuteTemplate(&content, "websocket_body", data); err != nil {
		http.Error(w, "erro ao montar a página", http.StatusInternalServerError)
		return
	}

	page := struct {
		Title   string
		Content template.HTML
	}{
		Title:   "Prueba de WebSockets",
		Content: template.HTML(content.String()),
	}

	var out strings.Builder
	if err := f.templates.ExecuteTemplate(&out, "layout", page); err != nil {
		http.Error(w, "erro ao renderizar página", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(out.String()))
}

type websocketPageData struct {
	ItemID        int64
	Total         int64
	Versao        int64
	StaleGuard    bool
	Message       string
	Error         string
	SnapshotError bool
}

func translateVoteStatus(err error) string {
	switch {
	case errors.Is(err, antifraude.ErrRateLimitExceeded):
		return "rate_limited"
	default:
		return "error"
	}
}

func clientIP(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		parts := strings.Split(xf, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}
