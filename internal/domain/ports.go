package domain

import (
	"context"
	"time"
)

type VotoRepository interface {
	Registrar(ctx context.Context, voto Voto) error
	TotalPorItem(ctx context.Context, id ItemID) (int64, error)
	Totais(ctx context.Context) ([]Placar, error)
}

type Contador interface {
	Incrementar(ctx context.Context, chave string, delta int64) (int64, error)
	ObterTodos(ctx context.Context, chaves []string) (map[string]int64, error)
}

type Fila interface {
	PublicarVoto(ctx context.Context, voto Voto) error
	ConsumirVotos(ctx context.Context, handler func(context.Context, Voto) error) error
}

// Canal é o barramento que leva EventoVoto do processo que grava até os gateways websocket.
type Canal interface {
	Publicar(ctx context.Context, evento EventoVoto) error
	Assinar(ctx context.Context, handler func(EventoVoto)) error
}

type Antifraude interface {
	Validar(ctx context.Context, voto Voto) error
}

type Clock interface {
	Agora() time.Time
}

type VotingService interface {
	RegistrarVoto(ctx context.Context, voto Voto) error
	Totais(ctx context.Context) ([]Placar, error)
	Assincrono() bool
}

// EstadoConexao é o estado da conexão física com o canal de broadcast, exposto só para exibição.
type EstadoConexao string

const (
	Conectado    EstadoConexao = "connected"
	Desconectado EstadoConexao = "disconnected"
)
