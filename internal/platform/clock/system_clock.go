package clock

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// SystemClock satisfaz domain.Clock sobre um clockwork.Clock, trocável por um FakeClock em testes.
type SystemClock struct {
	base clockwork.Clock
}

func NewSystemClock() SystemClock {
	return SystemClock{base: clockwork.NewRealClock()}
}

func NewWith(base clockwork.Clock) SystemClock {
	return SystemClock{base: base}
}

func (c SystemClock) Agora() time.Time {
	return c.base.Now().UTC()
}

// Base expõe o relógio subjacente para quem precisa de timers (reconexão do websocket).
func (c SystemClock) Base() clockwork.Clock {
	return c.base
}
