// Pacote health expõe o readiness dos binários a partir de uma lista ordenada de dependências.
package health

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

// Check testa uma dependência; o nome aparece na resposta de indisponibilidade.
type Check struct {
	Nome string
	Ping func(ctx context.Context) error
}

type Checker struct {
	checks  []Check
	timeout time.Duration
}

func NewChecker(checks ...Check) *Checker {
	validos := make([]Check, 0, len(checks))
	for _, c := range checks {
		if c.Ping != nil {
			validos = append(validos, c)
		}
	}
	return &Checker{checks: validos, timeout: 2 * time.Second}
}

// SQLCheck devolve um Check vazio quando db é nil, o que o Checker ignora.
func SQLCheck(db *sql.DB) Check {
	if db == nil {
		return Check{Nome: "database"}
	}
	return Check{Nome: "database", Ping: db.PingContext}
}

func RedisCheck(client *redis.Client) Check {
	if client == nil {
		return Check{Nome: "redis"}
	}
	return Check{Nome: "redis", Ping: func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}}
}

// StatusCheck adapta dependências que só sabem dizer se estão conectadas.
func StatusCheck(nome string, conectado func() bool) Check {
	if conectado == nil {
		return Check{Nome: nome}
	}
	return Check{Nome: nome, Ping: func(context.Context) error {
		if !conectado() {
			return errors.New(nome + " desconectado")
		}
		return nil
	}}
}

func (c *Checker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), c.timeout)
		defer cancel()

		for _, check := range c.checks {
			if err := check.Ping(ctx); err != nil {
				http.Error(w, check.Nome+" unavailable", http.StatusServiceUnavailable)
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
