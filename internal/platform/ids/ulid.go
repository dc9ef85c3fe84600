// Pacote ids gera identificadores ULID ordenáveis para os votos gravados.
package ids

import (
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

type Generator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
	agora   func() time.Time
}

func NewGenerator() *Generator {
	return NewGeneratorWithClock(func() time.Time { return time.Now().UTC() })
}

// NewGeneratorWithClock carimba os ULIDs com o relógio informado.
func NewGeneratorWithClock(agora func() time.Time) *Generator {
	src := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Generator{
		entropy: ulid.Monotonic(src, 0),
		agora:   agora,
	}
}

func (g *Generator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(g.agora()), g.entropy).String()
}

var (
	defaultOnce sync.Once
	defaultGen  *Generator
)

func DefaultGenerator() *Generator {
	defaultOnce.Do(func() {
		defaultGen = NewGenerator()
	})
	return defaultGen
}
