// Pacote natsbus implementa domain.Canal sobre NATS core (sem JetStream): eventos de total
// são efêmeros e quem perder um recupera pelo snapshot de GET /votes.
package natsbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/marcelojr/zelda-votos/internal/domain"
)

type Config struct {
	URL           string
	Subject       string
	MaxReconnects int
	ReconnectWait time.Duration
}

func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		Subject:       "votos.eventos",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
	}
}

// Canal publica e assina EventoVoto num subject NATS.
type Canal struct {
	nc      *nats.Conn
	subject string
	logger  *slog.Logger
}

func Connect(cfg Config, logger *slog.Logger) (*Canal, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts := []nats.Option{
		nats.Name("zelda-votos"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Error("nats desconectado", "err", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconectado", "url", nc.ConnectedUrl())
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("natsbus: conectar: %w", err)
	}
	return New(nc, cfg.Subject, logger), nil
}

func New(nc *nats.Conn, subject string, logger *slog.Logger) *Canal {
	if logger == nil {
		logger = slog.Default()
	}
	return &Canal{nc: nc, subject: subject, logger: logger}
}

func (c *Canal) Publicar(_ context.Context, evento domain.EventoVoto) error {
	payload, err := encode(evento)
	if err != nil {
		return err
	}
	if err := c.nc.Publish(c.subject, payload); err != nil {
		return fmt.Errorf("natsbus: publicar: %w", err)
	}
	return nil
}

// Assinar entrega eventos ao handler até o contexto encerrar.
func (c *Canal) Assinar(ctx context.Context, handler func(domain.EventoVoto)) error {
	msgs := make(chan *nats.Msg, 256)
	sub, err := c.nc.ChanSubscribe(c.subject, msgs)
	if err != nil {
		return fmt.Errorf("natsbus: assinar %s: %w", c.subject, err)
	}
	defer func() {
		if err := sub.Unsubscribe(); err != nil {
			c.logger.Warn("falha ao cancelar assinatura nats", "err", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-msgs:
			evento, err := decode(msg.Data)
			if err != nil {
				c.logger.Warn("evento invalido no nats", "subject", msg.Subject, "err", err)
				continue
			}
			handler(evento)
		}
	}
}

func (c *Canal) Conectado() bool {
	return c.nc.IsConnected()
}

// Close drena assinaturas pendentes antes de fechar a conexão.
func (c *Canal) Close() error {
	return c.nc.Drain()
}

func encode(evento domain.EventoVoto) ([]byte, error) {
	payload, err := json.Marshal(evento)
	if err != nil {
		return nil, fmt.Errorf("natsbus: serializar evento: %w", err)
	}
	return payload, nil
}

func decode(data []byte) (domain.EventoVoto, error) {
	var evento domain.EventoVoto
	if err := json.Unmarshal(data, &evento); err != nil {
		return domain.EventoVoto{}, fmt.Errorf("natsbus: payload invalido: %w", err)
	}
	if !evento.ItemID.Valido() {
		return domain.EventoVoto{}, fmt.Errorf("natsbus: item invalido %d", evento.ItemID)
	}
	return evento, nil
}

var _ domain.Canal = (*Canal)(nil)
