package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/marcelojr/zelda-votos/internal/domain"
)

// Canal distribui EventoVoto via PUB/SUB para todas as réplicas da API.
type Canal struct {
	client *redis.Client
	nome   string
	logger *slog.Logger
}

func NewCanal(client *redis.Client, nome string, logger *slog.Logger) *Canal {
	if logger == nil {
		logger = slog.Default()
	}
	return &Canal{client: client, nome: nome, logger: logger}
}

func (c *Canal) Publicar(ctx context.Context, evento domain.EventoVoto) error {
	payload, err := json.Marshal(evento)
	if err != nil {
		return fmt.Errorf("redis canal: falha serializando evento: %w", err)
	}
	if err := c.client.Publish(ctx, c.nome, payload).Err(); err != nil {
		return fmt.Errorf("redis canal: falha ao publicar evento: %w", err)
	}
	return nil
}

// Assinar bloqueia entregando eventos ao handler até o contexto encerrar.
// Payloads inválidos são descartados para não derrubar o gateway.
func (c *Canal) Assinar(ctx context.Context, handler func(domain.EventoVoto)) error {
	sub := c.client.Subscribe(ctx, c.nome)
	defer sub.Close()

	// Receive confirma a inscrição antes de começarmos a ler o canal de mensagens.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis canal: falha ao assinar %s: %w", c.nome, err)
	}

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("redis canal: assinatura %s encerrada", c.nome)
			}
			var evento domain.EventoVoto
			if err := json.Unmarshal([]byte(msg.Payload), &evento); err != nil {
				c.logger.Warn("evento invalido no canal", "canal", c.nome, "err", err)
				continue
			}
			handler(evento)
		}
	}
}

var _ domain.Canal = (*Canal)(nil)
