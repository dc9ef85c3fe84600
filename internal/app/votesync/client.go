// Pacote votesync mantém o total de um item sincronizado com o Vote Store:
// snapshot na ativação e eventos de broadcast depois disso.
package votesync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/marcelojr/zelda-votos/internal/domain"
)

var (
	ErrItemInvalido = errors.New("votesync: item invalido")
	ErrInativo      = errors.New("votesync: cliente inativo")
	ErrDesconectado = errors.New("votesync: canal desconectado")
	ErrSubmissao    = errors.New("votesync: falha ao registrar voto")
)

// Store é o lado request/response do Vote Store.
type Store interface {
	FetchTotals(ctx context.Context) ([]domain.Placar, error)
	Submit(ctx context.Context, voto domain.Voto) error
}

// Channel entrega eventos de broadcast. A função devolvida por Subscribe cancela
// a assinatura; depois que ela retorna nenhuma entrega nova começa. Handlers são
// chamados sem lock do canal e podem assinar ou cancelar de dentro da entrega.
// State é lido com o lock do cliente e não pode bloquear.
type Channel interface {
	Subscribe(handler func(domain.EventoVoto)) (unsubscribe func())
	State() domain.EstadoConexao
}

type Estado string

const (
	Idle    Estado = "idle"
	Syncing Estado = "syncing"
	Live    Estado = "live"
)

// View é o que a camada de UI precisa para renderizar.
type View struct {
	ItemID  domain.ItemID
	Total   int64
	Estado  Estado
	Conexao domain.EstadoConexao
}

type Option func(*Client)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithStaleGuard descarta eventos e snapshots com versão menor que a já aplicada.
// O padrão é desligado (last-write-wins), o mesmo da página /websocket; os dois
// seguem VOTESYNC_STALE_GUARD.
func WithStaleGuard(ativo bool) Option {
	return func(c *Client) { c.staleGuard = ativo }
}

// WithOnChange registra o callback chamado sempre que total ou estado mudam.
// O callback roda fora do lock e pode vir de goroutines diferentes, inclusive da
// goroutine de leitura do canal. Pode chamar Activate e Deactivate.
func WithOnChange(fn func(View)) Option {
	return func(c *Client) { c.onChange = fn }
}

// WithTokenGenerator troca o gerador de voter_id (padrão: UUID v4 novo por voto).
func WithTokenGenerator(fn func() string) Option {
	return func(c *Client) {
		if fn != nil {
			c.novoToken = fn
		}
	}
}

// Client é uma instância de exibição: um item, um total em cache.
// Instâncias não compartilham estado; só se coordenam pelo canal.
type Client struct {
	store      Store
	canal      Channel
	logger     *slog.Logger
	staleGuard bool
	onChange   func(View)
	novoToken  func() string

	mu          sync.Mutex
	item        domain.ItemID
	total       int64
	versao      int64
	estado      Estado
	epoca       uint64
	cancelarSub func()
	cancelarReq context.CancelFunc
	ctxReq      context.Context
	busca       uint64

	pendentes sync.WaitGroup
}

func New(store Store, canal Channel, opts ...Option) *Client {
	c := &Client{
		store:     store,
		canal:     canal,
		logger:    slog.Default(),
		novoToken: uuid.NewString,
		estado:    Idle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Activate passa a acompanhar o item: assina o canal e dispara o snapshot em background.
// Reativar com outro item libera a assinatura anterior antes.
func (c *Client) Activate(ctx context.Context, item domain.ItemID) error {
	if !item.Valido() {
		return fmt.Errorf("%w: %d", ErrItemInvalido, item)
	}

	c.mu.Lock()
	cancelarSub, cancelarReq := c.liberarLocked()
	c.epoca++
	epoca := c.epoca
	c.item = item
	c.total = 0
	c.versao = 0
	c.estado = Syncing
	view := c.viewLocked()
	c.mu.Unlock()

	// Cancelar fora do lock: o canal pode estar entregando um evento que espera por c.mu.
	liberar(cancelarSub, cancelarReq)
	c.notificar(view)

	sub := c.canal.Subscribe(func(evento domain.EventoVoto) {
		c.aplicar(epoca, evento)
	})

	reqCtx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	if c.epoca != epoca {
		// Desativado (ou reativado) enquanto assinava.
		c.mu.Unlock()
		sub()
		cancel()
		return nil
	}
	c.cancelarSub = sub
	c.cancelarReq = cancel
	c.ctxReq = reqCtx
	c.busca++
	busca := c.busca
	c.pendentes.Add(1)
	c.mu.Unlock()

	go c.sincronizar(reqCtx, epoca, busca, item)
	return nil
}

// Resync busca o snapshot de novo para o item ativo, sem trocar a assinatura.
// Serve para reconexões do canal: eventos perdidos enquanto ele estava fora
// não voltam. Só o resultado da busca mais recente é aplicado.
func (c *Client) Resync() error {
	c.mu.Lock()
	if c.estado == Idle || c.ctxReq == nil {
		c.mu.Unlock()
		return ErrInativo
	}
	epoca, item, ctx := c.epoca, c.item, c.ctxReq
	c.busca++
	busca := c.busca
	c.pendentes.Add(1)
	c.mu.Unlock()

	go c.sincronizar(ctx, epoca, busca, item)
	return nil
}

// Deactivate libera a assinatura. Chamadas repetidas não fazem nada.
func (c *Client) Deactivate() {
	c.mu.Lock()
	if c.estado == Idle {
		c.mu.Unlock()
		return
	}
	cancelarSub, cancelarReq := c.liberarLocked()
	c.epoca++
	c.estado = Idle
	view := c.viewLocked()
	c.mu.Unlock()

	liberar(cancelarSub, cancelarReq)
	c.notificar(view)
}

// SubmitVote envia um voto com voter_id novo. O total local não muda aqui:
// o valor confirmado chega pelo evento de broadcast.
func (c *Client) SubmitVote(ctx context.Context) error {
	c.mu.Lock()
	if c.estado == Idle {
		c.mu.Unlock()
		return ErrInativo
	}
	item := c.item
	c.mu.Unlock()

	if c.canal.State() != domain.Conectado {
		return ErrDesconectado
	}

	voto := domain.Voto{ItemID: item, VotanteID: c.novoToken(), Valor: 1}
	if err := c.store.Submit(ctx, voto); err != nil {
		c.logger.Warn("falha ao registrar voto", "item", item, "err", err)
		return fmt.Errorf("%w: %w", ErrSubmissao, err)
	}
	return nil
}

// OnBroadcastEvent aplica um evento ao item acompanhado; eventos de outros itens são ignorados.
func (c *Client) OnBroadcastEvent(evento domain.EventoVoto) {
	c.mu.Lock()
	epoca := c.epoca
	c.mu.Unlock()
	c.aplicar(epoca, evento)
}

func (c *Client) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

// Wait bloqueia até os snapshots em andamento terminarem (aplicados ou descartados).
func (c *Client) Wait() {
	c.pendentes.Wait()
}

func (c *Client) aplicar(epoca uint64, evento domain.EventoVoto) {
	c.mu.Lock()
	if c.epoca != epoca || c.estado == Idle || evento.ItemID != c.item {
		c.mu.Unlock()
		return
	}
	if c.staleGuard && evento.Versao != 0 && evento.Versao < c.versao {
		c.mu.Unlock()
		c.logger.Debug("evento antigo descartado", "item", evento.ItemID, "versao", evento.Versao)
		return
	}
	c.total = evento.Total
	if evento.Versao > c.versao {
		c.versao = evento.Versao
	}
	view := c.viewLocked()
	c.mu.Unlock()

	c.notificar(view)
}

func (c *Client) sincronizar(ctx context.Context, epoca, busca uint64, item domain.ItemID) {
	defer c.pendentes.Done()

	placares, err := c.store.FetchTotals(ctx)

	c.mu.Lock()
	if c.epoca != epoca || c.busca != busca {
		// Desativado, reativado ou já existe uma busca mais nova.
		c.mu.Unlock()
		return
	}

	if err != nil {
		// Falha no snapshot não bloqueia: segue ao vivo com o que tiver (0 se nada chegou).
		c.logger.Warn("falha ao buscar snapshot", "item", item, "err", err)
	} else {
		snapshot := domain.Placar{ItemID: item}
		for _, p := range placares {
			if p.ItemID == item {
				snapshot = p
				break
			}
		}
		if !c.staleGuard || snapshot.Versao == 0 || snapshot.Versao >= c.versao {
			c.total = snapshot.Total
			if snapshot.Versao > c.versao {
				c.versao = snapshot.Versao
			}
		}
	}
	c.estado = Live
	view := c.viewLocked()
	c.mu.Unlock()

	c.notificar(view)
}

func (c *Client) liberarLocked() (func(), context.CancelFunc) {
	sub, req := c.cancelarSub, c.cancelarReq
	c.cancelarSub, c.cancelarReq, c.ctxReq = nil, nil, nil
	return sub, req
}

func liberar(sub func(), req context.CancelFunc) {
	if sub != nil {
		sub()
	}
	if req != nil {
		req()
	}
}

func (c *Client) viewLocked() View {
	return View{
		ItemID:  c.item,
		Total:   c.total,
		Estado:  c.estado,
		Conexao: c.canal.State(),
	}
}

func (c *Client) notificar(view View) {
	if c.onChange != nil {
		c.onChange(view)
	}
}

type comStatus interface {
	StatusCode() int
}

// MensagemVoto traduz o resultado de SubmitVote para o texto exibido ao usuário.
// Resposta não-2xx do Vote Store vira "registrar"; falha de rede ou canal
// desconectado vira "conexión".
func MensagemVoto(err error) string {
	var status comStatus
	switch {
	case err == nil:
		return "Voto registrado!"
	case errors.As(err, &status), errors.Is(err, ErrInativo):
		return "Error al registrar el voto"
	default:
		return "Error de conexión"
	}
}
