// Pacote worker contém a lógica de processamento assíncrono dos votos provenientes da fila Redis.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/marcelojr/zelda-votos/internal/app/voting"
	"github.com/marcelojr/zelda-votos/internal/domain"
	"github.com/marcelojr/zelda-votos/internal/platform/metrics"
)

// VoteProcessor grava votos no repositório e publica o novo total do item.
type VoteProcessor struct {
	repo     domain.VotoRepository
	contador domain.Contador
	canal    domain.Canal
	clock    domain.Clock
}

func NewVoteProcessor(repo domain.VotoRepository, contador domain.Contador, canal domain.Canal, clock domain.Clock) *VoteProcessor {
	return &VoteProcessor{
		repo:     repo,
		contador: contador,
		canal:    canal,
		clock:    clock,
	}
}

func (p *VoteProcessor) Process(ctx context.Context, voto domain.Voto) error {
	start := time.Now()

	// Se o voto veio da fila sem carimbo de data, usamos o clock do worker para registrar a chegada.
	if voto.CriadoEm.IsZero() {
		voto.CriadoEm = p.clock.Agora()
	}

	if err := p.repo.Registrar(ctx, voto); err != nil {
		return fmt.Errorf("worker: registrar voto %s: %w", voto.ID, err)
	}

	if err := voting.PublicarTotal(ctx, p.repo, p.contador, p.canal, voto.ItemID); err != nil {
		return fmt.Errorf("worker: publicar total item %d: %w", voto.ItemID, err)
	}

	metrics.IncVoteProcessed()
	metrics.ObserveProcessingDuration(time.Since(start).Seconds())

	return nil
}
