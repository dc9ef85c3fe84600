// Pacote broadcast escolhe o barramento de eventos conforme a configuração.
package broadcast

import (
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/marcelojr/zelda-votos/internal/domain"
	"github.com/marcelojr/zelda-votos/internal/platform/broadcast/natsbus"
	"github.com/marcelojr/zelda-votos/internal/platform/config"
	"github.com/marcelojr/zelda-votos/internal/platform/health"
	redisstorage "github.com/marcelojr/zelda-votos/internal/platform/storage/redis"
)

// Barramento agrupa o canal aberto, o check de readiness e o encerramento.
type Barramento struct {
	Canal domain.Canal
	Check health.Check
	Close func() error
}

// Open abre o Canal do backend configurado. Redis reaproveita o client já conectado;
// NATS abre conexão própria.
func Open(cfg config.Config, redisClient *redis.Client, logger *slog.Logger) (Barramento, error) {
	switch cfg.BroadcastBackend {
	case config.BroadcastRedis, "":
		if redisClient == nil {
			return Barramento{}, fmt.Errorf("broadcast: redis indisponivel")
		}
		return Barramento{
			Canal: redisstorage.NewCanal(redisClient, cfg.BroadcastChannel, logger),
			// O Ping do redis já é coberto pelo RedisCheck.
			Check: health.Check{Nome: "broadcast"},
			Close: func() error { return nil },
		}, nil
	case config.BroadcastNATS:
		natsCfg := natsbus.DefaultConfig()
		natsCfg.URL = cfg.NATSURL
		natsCfg.Subject = cfg.BroadcastChannel
		canal, err := natsbus.Connect(natsCfg, logger)
		if err != nil {
			return Barramento{}, err
		}
		return Barramento{
			Canal: canal,
			Check: health.StatusCheck("nats", canal.Conectado),
			Close: canal.Close,
		}, nil
	default:
		return Barramento{}, fmt.Errorf("broadcast: backend desconhecido %q", cfg.BroadcastBackend)
	}
}
