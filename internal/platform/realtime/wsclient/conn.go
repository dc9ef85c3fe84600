// Pacote wsclient é o lado cliente do canal de broadcast: uma conexão websocket
// compartilhada pelo processo, com várias assinaturas lógicas em cima dela.
package wsclient

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/marcelojr/zelda-votos/internal/domain"
)

type Config struct {
	URL              string
	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	BackoffInicial   time.Duration
	BackoffMaximo    time.Duration
	Clock            clockwork.Clock
}

func DefaultConfig(url string) Config {
	return Config{
		URL:              url,
		HandshakeTimeout: 5 * time.Second,
		ReadTimeout:      90 * time.Second,
		BackoffInicial:   500 * time.Millisecond,
		BackoffMaximo:    30 * time.Second,
		Clock:            clockwork.NewRealClock(),
	}
}

// Conn mantém uma conexão física e reconecta sozinha enquanto Run estiver rodando.
type Conn struct {
	config Config
	dialer *websocket.Dialer
	logger *slog.Logger

	conectado atomic.Bool

	subMu  sync.RWMutex
	subs   map[uint64]*assinatura
	proxID uint64

	lisMu     sync.Mutex
	listeners []func(domain.EstadoConexao)
}

func New(config Config, logger *slog.Logger) *Conn {
	if config.Clock == nil {
		config.Clock = clockwork.NewRealClock()
	}
	if config.BackoffInicial <= 0 {
		config.BackoffInicial = 500 * time.Millisecond
	}
	if config.BackoffMaximo < config.BackoffInicial {
		config.BackoffMaximo = config.BackoffInicial
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Conn{
		config: config,
		dialer: &websocket.Dialer{HandshakeTimeout: config.HandshakeTimeout},
		logger: logger,
		subs:   make(map[uint64]*assinatura),
	}
}

type assinatura struct {
	handler func(domain.EventoVoto)
	ativa   atomic.Bool
}

// Subscribe registra o handler para todos os eventos de voto. O filtro por item
// é responsabilidade de quem assina. Handlers rodam sem lock nenhum: podem
// assinar e cancelar, inclusive a própria assinatura. Depois que o cancelamento
// retorna nenhuma entrega nova começa para aquele handler.
func (c *Conn) Subscribe(handler func(domain.EventoVoto)) func() {
	sub := &assinatura{handler: handler}
	sub.ativa.Store(true)

	c.subMu.Lock()
	id := c.proxID
	c.proxID++
	c.subs[id] = sub
	c.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			sub.ativa.Store(false)
			c.subMu.Lock()
			delete(c.subs, id)
			c.subMu.Unlock()
		})
	}
}

func (c *Conn) State() domain.EstadoConexao {
	if c.conectado.Load() {
		return domain.Conectado
	}
	return domain.Desconectado
}

// OnStateChange registra um listener de connected/disconnected, só para exibição.
func (c *Conn) OnStateChange(fn func(domain.EstadoConexao)) {
	c.lisMu.Lock()
	c.listeners = append(c.listeners, fn)
	c.lisMu.Unlock()
}

func (c *Conn) Assinantes() int {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return len(c.subs)
}

// Run conecta e mantém a conexão até o contexto ser cancelado.
// Entre tentativas espera um backoff exponencial limitado a BackoffMaximo.
func (c *Conn) Run(ctx context.Context) error {
	espera := c.config.BackoffInicial
	for {
		ws, _, err := c.dialer.DialContext(ctx, c.config.URL, nil)
		if err == nil {
			espera = c.config.BackoffInicial
			c.setEstado(domain.Conectado)
			err = c.ler(ctx, ws)
			c.setEstado(domain.Desconectado)
		}

		if ctx.Err() != nil {
			return nil
		}
		c.logger.Warn("conexao websocket perdida", "url", c.config.URL, "err", err, "retry_em", espera)

		select {
		case <-ctx.Done():
			return nil
		case <-c.config.Clock.After(espera):
		}

		espera = proximoBackoff(espera, c.config.BackoffMaximo)
	}
}

func proximoBackoff(atual, maximo time.Duration) time.Duration {
	proximo := atual * 2
	if proximo > maximo {
		return maximo
	}
	return proximo
}

func (c *Conn) ler(ctx context.Context, ws *websocket.Conn) error {
	fim := make(chan struct{})
	defer close(fim)
	go func() {
		select {
		case <-ctx.Done():
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			_ = ws.Close()
		case <-fim:
			_ = ws.Close()
		}
	}()

	estenderPrazo := func() {
		if c.config.ReadTimeout > 0 {
			_ = ws.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		}
	}
	estenderPrazo()
	ws.SetPingHandler(func(data string) error {
		estenderPrazo()
		err := ws.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	for {
		_, payload, err := ws.ReadMessage()
		if err != nil {
			return err
		}
		estenderPrazo()

		evento, ok := Decodificar(payload)
		if !ok {
			continue
		}
		c.entregar(evento)
	}
}

func (c *Conn) entregar(evento domain.EventoVoto) {
	c.subMu.RLock()
	subs := make([]*assinatura, 0, len(c.subs))
	for _, sub := range c.subs {
		subs = append(subs, sub)
	}
	c.subMu.RUnlock()

	for _, sub := range subs {
		// Cancelada por um handler anterior desta mesma entrega.
		if !sub.ativa.Load() {
			continue
		}
		sub.handler(evento)
	}
}

func (c *Conn) setEstado(estado domain.EstadoConexao) {
	novo := estado == domain.Conectado
	if c.conectado.Swap(novo) == novo {
		return
	}

	c.lisMu.Lock()
	listeners := append([]func(domain.EstadoConexao){}, c.listeners...)
	c.lisMu.Unlock()
	for _, fn := range listeners {
		fn(estado)
	}
}

// Decodificar extrai o EventoVoto de um envelope `vote:update`. Outros tipos e
// frames malformados devolvem ok=false.
func Decodificar(payload []byte) (domain.EventoVoto, bool) {
	var msg domain.Mensagem
	if err := json.Unmarshal(payload, &msg); err != nil || msg.Tipo != domain.TopicoVoto {
		return domain.EventoVoto{}, false
	}
	var evento domain.EventoVoto
	if err := json.Unmarshal(msg.Dados, &evento); err != nil || !evento.ItemID.Valido() {
		return domain.EventoVoto{}, false
	}
	return evento, true
}
