package domain

import (
	"encoding/json"
	"errors"
	"time"
)

type VotoID string

// ErrNotFound é devolvido pelos repositórios quando o registro não existe.
var ErrNotFound = errors.New("registro nao encontrado")

// TopicoVoto identifica as mensagens de atualização de total no canal de broadcast.
const TopicoVoto = "vote:update"

// Voto é uma submissão individual. VotanteID é gerado a cada clique, sem reaproveitar sessão.
type Voto struct {
	ID        VotoID    `gorm:"column:id;type:char(26);primaryKey" json:"id,omitempty"`
	ItemID    ItemID    `gorm:"column:item_id;not null;index:idx_votos_item" json:"item_id"`
	VotanteID string    `gorm:"column:votante_id;type:text;not null" json:"voter_id"`
	Valor     int       `gorm:"column:valor;not null;default:1" json:"value"`
	OrigemIP  string    `gorm:"column:origem_ip;type:text" json:"origem_ip,omitempty"`
	UserAgent string    `gorm:"column:user_agent;type:text" json:"user_agent,omitempty"`
	CriadoEm  time.Time `gorm:"column:criado_em;autoCreateTime" json:"criado_em,omitempty"`
}

// Placar é o total agregado de um item. Versao vem do contador de eventos e é zero quando desconhecida.
type Placar struct {
	ItemID ItemID `json:"item_id"`
	Total  int64  `json:"total"`
	Versao int64  `json:"version,omitempty"`
}

// EventoVoto é publicado para todos os assinantes depois de cada voto aceito.
type EventoVoto struct {
	ItemID ItemID `json:"item_id"`
	Total  int64  `json:"total"`
	Versao int64  `json:"version,omitempty"`
}

// Mensagem é o envelope trafegado no websocket.
type Mensagem struct {
	Tipo  string          `json:"type"`
	Dados json.RawMessage `json:"data"`
}

func (Voto) TableName() string { return "votos" }

// UnmarshalJSON aceita também as chaves antigas do front (`id_num`, `user_id`).
func (v *Voto) UnmarshalJSON(data []byte) error {
	type alias Voto
	aux := struct {
		*alias
		IDNum  *ItemID `json:"id_num"`
		UserID string  `json:"user_id"`
	}{alias: (*alias)(v)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if v.ItemID == 0 && aux.IDNum != nil {
		v.ItemID = *aux.IDNum
	}
	if v.VotanteID == "" {
		v.VotanteID = aux.UserID
	}
	return nil
}

func (e *EventoVoto) UnmarshalJSON(data []byte) error {
	type alias EventoVoto
	aux := struct {
		*alias
		IDNum *ItemID `json:"id_num"`
	}{alias: (*alias)(e)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if e.ItemID == 0 && aux.IDNum != nil {
		e.ItemID = *aux.IDNum
	}
	return nil
}

func (p *Placar) UnmarshalJSON(data []byte) error {
	type alias Placar
	aux := struct {
		*alias
		IDNum *ItemID `json:"id_num"`
	}{alias: (*alias)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if p.ItemID == 0 && aux.IDNum != nil {
		p.ItemID = *aux.IDNum
	}
	return nil
}
