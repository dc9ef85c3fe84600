// Pacote voting implementa as regras do Vote Store: registro de votos, leitura de totais e publicação de eventos.
package voting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/marcelojr/zelda-votos/internal/domain"
	"github.com/marcelojr/zelda-votos/internal/platform/ids"
	"github.com/marcelojr/zelda-votos/internal/platform/metrics"
)

var (
	ErrItemInvalido       = errors.New("item invalido")
	ErrValorInvalido      = errors.New("valor de voto invalido")
	ErrVotanteObrigatorio = errors.New("voter_id obrigatorio")
)

// Service concentra as regras de votação e delega acesso a repositório, fila e barramento.
type Service struct {
	votos      domain.VotoRepository
	contador   domain.Contador
	fila       domain.Fila
	canal      domain.Canal
	antifraude domain.Antifraude
	clock      domain.Clock
	ids        *ids.Generator
	logger     *slog.Logger
}

func NewService(
	votos domain.VotoRepository,
	contador domain.Contador,
	fila domain.Fila,
	canal domain.Canal,
	antifraude domain.Antifraude,
	clock domain.Clock,
	idsGen *ids.Generator,
	logger *slog.Logger,
) *Service {
	if idsGen == nil {
		idsGen = ids.DefaultGenerator()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		votos:      votos,
		contador:   contador,
		fila:       fila,
		canal:      canal,
		antifraude: antifraude,
		clock:      clock,
		ids:        idsGen,
		logger:     logger,
	}
}

// Assincrono indica se os votos passam pela fila antes de serem gravados.
func (s *Service) Assincrono() bool {
	return s.fila != nil
}

// RegistrarVoto valida a submissão e grava direto ou enfileira para o worker.
// Não há deduplicação por votante: cada clique gera um voto novo.
func (s *Service) RegistrarVoto(ctx context.Context, voto domain.Voto) error {
	if !voto.ItemID.Valido() {
		return ErrItemInvalido
	}
	if voto.Valor == 0 {
		voto.Valor = 1
	}
	if voto.Valor != 1 {
		return fmt.Errorf("%w: %d", ErrValorInvalido, voto.Valor)
	}
	if voto.VotanteID == "" {
		return ErrVotanteObrigatorio
	}

	if s.antifraude != nil {
		if err := s.antifraude.Validar(ctx, voto); err != nil {
			return err
		}
	}

	voto.ID = domain.VotoID(s.ids.New())
	voto.CriadoEm = s.clock.Agora()

	if s.fila != nil {
		// No modo assíncrono basta publicar; o worker cuidará da persistência e do evento.
		return s.fila.PublicarVoto(ctx, voto)
	}

	if err := s.votos.Registrar(ctx, voto); err != nil {
		return err
	}

	if err := PublicarTotal(ctx, s.votos, s.contador, s.canal, voto.ItemID); err != nil {
		// O voto já foi contado; quem perdeu o evento recupera pelo snapshot.
		s.logger.Error("falha ao publicar total", "item", voto.ItemID, "err", err)
	}
	return nil
}

// Totais devolve o placar de todos os itens com a versão corrente de cada um.
func (s *Service) Totais(ctx context.Context) ([]domain.Placar, error) {
	placares, err := s.votos.Totais(ctx)
	if err != nil {
		return nil, err
	}

	sort.Slice(placares, func(i, j int) bool { return placares[i].ItemID < placares[j].ItemID })

	if s.contador == nil || len(placares) == 0 {
		return placares, nil
	}

	chaves := make([]string, len(placares))
	for i, p := range placares {
		chaves[i] = CounterKeyVersao(p.ItemID)
	}
	versoes, err := s.contador.ObterTodos(ctx, chaves)
	if err != nil {
		// Sem versão o cliente cai no last-write-wins; o total continua válido.
		s.logger.Warn("falha ao ler versoes", "err", err)
		return placares, nil
	}
	for i := range placares {
		placares[i].Versao = versoes[chaves[i]]
	}
	return placares, nil
}

// PublicarTotal avança a versão do item, lê o total autoritativo e publica o evento.
// API (modo síncrono) e worker compartilham este passo.
func PublicarTotal(ctx context.Context, repo domain.VotoRepository, contador domain.Contador, canal domain.Canal, item domain.ItemID) error {
	if canal == nil {
		return nil
	}

	var versao int64
	if contador != nil {
		v, err := contador.Incrementar(ctx, CounterKeyVersao(item), 1)
		if err != nil {
			return fmt.Errorf("voting: versao item %d: %w", item, err)
		}
		versao = v
	}

	total, err := repo.TotalPorItem(ctx, item)
	if err != nil {
		return fmt.Errorf("voting: total item %d: %w", item, err)
	}

	if err := canal.Publicar(ctx, domain.EventoVoto{ItemID: item, Total: total, Versao: versao}); err != nil {
		return fmt.Errorf("voting: publicar evento item %d: %w", item, err)
	}
	metrics.IncBroadcastPublished()
	return nil
}
