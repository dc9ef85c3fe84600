package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/marcelojr/zelda-votos/internal/domain"
)

// VotoRepository guarda o log de votos e expõe os totais agregados por item.
type VotoRepository struct {
	db *gorm.DB
}

func NewVotoRepository(db *gorm.DB) *VotoRepository {
	return &VotoRepository{db: db}
}

type votoModel struct {
	ID        string    `gorm:"column:id;primaryKey"`
	ItemID    int64     `gorm:"column:item_id;index"`
	VotanteID string    `gorm:"column:votante_id"`
	Valor     int       `gorm:"column:valor"`
	OrigemIP  string    `gorm:"column:origem_ip"`
	UserAgent string    `gorm:"column:user_agent"`
	CriadoEm  time.Time `gorm:"column:criado_em"`
}

func (votoModel) TableName() string {
	return "votos"
}

func fromDomainVoto(v domain.Voto) votoModel {
	return votoModel{
		ID:        string(v.ID),
		ItemID:    int64(v.ItemID),
		VotanteID: v.VotanteID,
		Valor:     v.Valor,
		OrigemIP:  v.OrigemIP,
		UserAgent: v.UserAgent,
		CriadoEm:  v.CriadoEm,
	}
}

func (r *VotoRepository) Registrar(ctx context.Context, voto domain.Voto) error {
	model := fromDomainVoto(voto)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("gorm votos: inserir: %w", err)
	}
	return nil
}

// TotalPorItem soma os valores em vez de contar linhas; hoje todo voto vale 1.
func (r *VotoRepository) TotalPorItem(ctx context.Context, id domain.ItemID) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).
		Model(&votoModel{}).
		Select("COALESCE(SUM(valor), 0)").
		Where("item_id = ?", int64(id)).
		Scan(&total).Error; err != nil {
		return 0, fmt.Errorf("gorm votos: total item: %w", err)
	}
	return total, nil
}

func (r *VotoRepository) Totais(ctx context.Context) ([]domain.Placar, error) {
	type resultado struct {
		ItemID int64
		Total  int64
	}
	var res []resultado
	if err := r.db.WithContext(ctx).
		Model(&votoModel{}).
		Select("item_id as item_id, SUM(valor) as total").
		Group("item_id").
		Order("item_id ASC").
		Scan(&res).Error; err != nil {
		return nil, fmt.Errorf("gorm votos: totais: %w", err)
	}

	placares := make([]domain.Placar, len(res))
	for i, item := range res {
		placares[i] = domain.Placar{
			ItemID: domain.ItemID(item.ItemID),
			Total:  item.Total,
		}
	}
	return placares, nil
}

var _ domain.VotoRepository = (*VotoRepository)(nil)
