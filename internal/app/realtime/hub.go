// Pacote realtime é o lado servidor do canal de broadcast: distribui EventoVoto para as conexões websocket.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/marcelojr/zelda-votos/internal/domain"
	"github.com/marcelojr/zelda-votos/internal/platform/metrics"
)

// Config controla timeouts e buffers das conexões.
type Config struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	SendBuffer      int
	BroadcastBuffer int
	CheckOrigin     func(r *http.Request) bool
}

func DefaultConfig() Config {
	return Config{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		SendBuffer:      64,
		BroadcastBuffer: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// O CORS do HTTP já restringe quem chama a API; o socket só empurra totais públicos.
			return true
		},
	}
}

// Hub mantém as conexões abertas e faz o fan-out dos eventos.
type Hub struct {
	mu       sync.RWMutex
	conexoes map[*conexao]struct{}

	upgrader websocket.Upgrader
	config   Config
	logger   *slog.Logger

	eventos chan domain.EventoVoto
}

type conexao struct {
	id     string
	filtro domain.ItemID
	ws     *websocket.Conn
	send   chan []byte
	hub    *Hub
	once   sync.Once
}

func NewHub(config Config, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		conexoes: make(map[*conexao]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     config.CheckOrigin,
		},
		config:  config,
		logger:  logger,
		eventos: make(chan domain.EventoVoto, config.BroadcastBuffer),
	}
}

// Run processa os eventos enfileirados até o contexto encerrar e então fecha todas as conexões.
func (h *Hub) Run(ctx context.Context) error {
	h.logger.Info("hub websocket iniciado")
	defer h.fecharTodas()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("hub websocket encerrando")
			return nil
		case evento := <-h.eventos:
			h.distribuir(evento)
		}
	}
}

// Broadcast nunca bloqueia quem publica; com o buffer cheio o evento é descartado.
func (h *Hub) Broadcast(evento domain.EventoVoto) {
	select {
	case h.eventos <- evento:
	default:
		metrics.IncBroadcastDropped()
		h.logger.Warn("buffer de broadcast cheio, descartando evento", "item", evento.ItemID)
	}
}

// Conexoes devolve o número de conexões ativas.
func (h *Hub) Conexoes() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conexoes)
}

// ServeHTTP faz o upgrade; `?item_id=` opcional restringe o fan-out daquela conexão a um item.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var filtro domain.ItemID
	if raw := r.URL.Query().Get("item_id"); raw != "" {
		id, err := domain.ParseItemID(raw)
		if err != nil || !id.Valido() {
			http.Error(w, "item_id invalido", http.StatusBadRequest)
			return
		}
		filtro = id
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade já respondeu ao cliente com o erro HTTP.
		h.logger.Warn("falha no upgrade websocket", "err", err)
		return
	}

	c := &conexao{
		id:     uuid.NewString(),
		filtro: filtro,
		ws:     ws,
		send:   make(chan []byte, h.config.SendBuffer),
		hub:    h,
	}
	h.registrar(c)

	go c.writePump()
	go c.readPump()
}

func (h *Hub) registrar(c *conexao) {
	h.mu.Lock()
	h.conexoes[c] = struct{}{}
	total := len(h.conexoes)
	h.mu.Unlock()

	metrics.SetWebsocketConnections(total)
	h.logger.Debug("conexao websocket registrada", "conexao", c.id, "item", c.filtro, "total", total)
}

func (h *Hub) remover(c *conexao) {
	c.once.Do(func() {
		h.mu.Lock()
		delete(h.conexoes, c)
		total := len(h.conexoes)
		close(c.send)
		h.mu.Unlock()

		metrics.SetWebsocketConnections(total)
		h.logger.Debug("conexao websocket removida", "conexao", c.id, "total", total)
	})
}

func (h *Hub) distribuir(evento domain.EventoVoto) {
	payload, err := Codificar(evento)
	if err != nil {
		h.logger.Error("falha ao serializar evento", "err", err)
		return
	}

	// Snapshot das conexões para não segurar o lock durante o envio.
	h.mu.RLock()
	alvos := make([]*conexao, 0, len(h.conexoes))
	for c := range h.conexoes {
		if c.filtro != 0 && c.filtro != evento.ItemID {
			continue
		}
		alvos = append(alvos, c)
	}
	h.mu.RUnlock()

	entregues := 0
	for _, c := range alvos {
		if h.enviar(c, payload) {
			entregues++
			continue
		}
		// Conexão lenta: derrubamos. Ao reconectar o cliente busca o snapshot de novo.
		h.logger.Warn("buffer da conexao cheio, fechando", "conexao", c.id)
		metrics.IncBroadcastDropped()
		h.remover(c)
		_ = c.ws.Close()
	}
	metrics.AddBroadcastDelivered(entregues)
}

func (h *Hub) fecharTodas() {
	h.mu.RLock()
	alvos := make([]*conexao, 0, len(h.conexoes))
	for c := range h.conexoes {
		alvos = append(alvos, c)
	}
	h.mu.RUnlock()

	for _, c := range alvos {
		h.remover(c)
	}
}

// enviar segura o RLock para que remover não feche send durante a escrita.
// Conexões já removidas contam como entregues.
func (h *Hub) enviar(c *conexao, payload []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.conexoes[c]; !ok {
		return true
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *conexao) writePump() {
	ticker := time.NewTicker(c.hub.config.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.hub.config.WriteTimeout))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.hub.logger.Debug("falha ao escrever no websocket", "conexao", c.id, "err", err)
				c.hub.remover(c)
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.hub.config.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.hub.remover(c)
				return
			}
		}
	}
}

// readPump só existe para processar pong/close; o cliente não envia comandos.
func (c *conexao) readPump() {
	defer func() {
		c.hub.remover(c)
		_ = c.ws.Close()
	}()

	c.ws.SetReadLimit(c.hub.config.MaxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
	})

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("websocket fechado inesperadamente", "conexao", c.id, "err", err)
			}
			return
		}
	}
}

// Codificar monta o envelope `{"type":"vote:update","data":{...}}`.
func Codificar(evento domain.EventoVoto) ([]byte, error) {
	dados, err := json.Marshal(evento)
	if err != nil {
		return nil, fmt.Errorf("realtime: serializar evento: %w", err)
	}
	return json.Marshal(domain.Mensagem{Tipo: domain.TopicoVoto, Dados: dados})
}
