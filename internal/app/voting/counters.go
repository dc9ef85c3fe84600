package voting

import (
	"fmt"

	"github.com/marcelojr/zelda-votos/internal/domain"
)

// CounterKeyVersao guarda a sequência monotônica de eventos publicados para o item.
func CounterKeyVersao(id domain.ItemID) string {
	return fmt.Sprintf("item:%d:versao", id)
}
