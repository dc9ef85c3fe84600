package voting

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/marcelojr/zelda-votos/internal/domain"
	"github.com/marcelojr/zelda-votos/internal/platform/ids"
)

func TestServiceRegistrarVotoSincronoPublicaTotal(t *testing.T) {
	deps := newServiceDeps()
	service := deps.service(nil)

	for i := 0; i < 2; i++ {
		err := service.RegistrarVoto(context.Background(), domain.Voto{
			ItemID:    42,
			VotanteID: "votante",
			Valor:     1,
		})
		if err != nil {
			t.Fatalf("esperava registrar voto sem erro, mas veio: %v", err)
		}
	}

	if len(deps.votoRepo.lista) != 2 {
		t.Fatalf("esperava 2 votos persistidos, veio %d", len(deps.votoRepo.lista))
	}

	eventos := deps.canal.Eventos()
	if len(eventos) != 2 {
		t.Fatalf("esperava 2 eventos publicados, veio %d", len(eventos))
	}
	ultimo := eventos[1]
	if ultimo.ItemID != 42 || ultimo.Total != 2 || ultimo.Versao != 2 {
		t.Fatalf("evento inesperado: %+v", ultimo)
	}
}

func TestServiceRegistrarVotoAssincronoEnfileira(t *testing.T) {
	deps := newServiceDeps()
	service := deps.service(deps.queue)

	err := service.RegistrarVoto(context.Background(), domain.Voto{ItemID: 7, VotanteID: "v1"})
	if err != nil {
		t.Fatalf("esperava registrar voto sem erro, mas veio: %v", err)
	}

	if !service.Assincrono() {
		t.Fatal("servico com fila deveria ser assincrono")
	}
	if deps.queue.Len() != 1 {
		t.Fatalf("voto deveria ter sido enfileirado; total esperado 1, veio %d", deps.queue.Len())
	}
	if len(deps.votoRepo.lista) != 0 {
		t.Fatalf("voto não deveria ter sido persistido antes do worker, total persistido %d", len(deps.votoRepo.lista))
	}
	if len(deps.canal.Eventos()) != 0 {
		t.Fatal("nenhum evento deveria ser publicado antes do worker")
	}

	enfileirado := deps.queue.Drain()[0]
	if enfileirado.ID == "" {
		t.Fatal("voto enfileirado deveria ter ID")
	}
	if enfileirado.Valor != 1 {
		t.Fatalf("valor padrao deveria ser 1, veio %d", enfileirado.Valor)
	}
	if !enfileirado.CriadoEm.Equal(deps.baseTime) {
		t.Fatalf("CriadoEm deveria vir do clock, veio %v", enfileirado.CriadoEm)
	}
}

func TestServiceRegistrarVotoRepetidoNaoDeduplica(t *testing.T) {
	deps := newServiceDeps()
	service := deps.service(nil)

	for i := 0; i < 3; i++ {
		if err := service.RegistrarVoto(context.Background(), domain.Voto{ItemID: 1, VotanteID: "mesmo"}); err != nil {
			t.Fatalf("erro registrando voto: %v", err)
		}
	}

	total, _ := deps.votoRepo.TotalPorItem(context.Background(), 1)
	if total != 3 {
		t.Fatalf("votos repetidos devem contar; esperado 3, veio %d", total)
	}
}

func TestServiceRegistrarVotoComValidacoes(t *testing.T) {
	deps := newServiceDeps()
	service := deps.service(nil)

	tests := []struct {
		name    string
		voto    domain.Voto
		wantErr error
	}{
		{
			name:    "voto válido",
			voto:    domain.Voto{ItemID: 3, VotanteID: "a", Valor: 1},
			wantErr: nil,
		},
		{
			name:    "item zero",
			voto:    domain.Voto{ItemID: 0, VotanteID: "a"},
			wantErr: ErrItemInvalido,
		},
		{
			name:    "item negativo",
			voto:    domain.Voto{ItemID: -4, VotanteID: "a"},
			wantErr: ErrItemInvalido,
		},
		{
			name:    "downvote",
			voto:    domain.Voto{ItemID: 3, VotanteID: "a", Valor: -1},
			wantErr: ErrValorInvalido,
		},
		{
			name:    "sem votante",
			voto:    domain.Voto{ItemID: 3},
			wantErr: ErrVotanteObrigatorio,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := service.RegistrarVoto(context.Background(), tt.voto)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("RegistrarVoto() erro inesperado = %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("RegistrarVoto() erro = %v, esperado %v", err, tt.wantErr)
			}
		})
	}
}

func TestServiceRegistrarVotoAntifraudeBloqueia(t *testing.T) {
	deps := newServiceDeps()
	bloqueio := errors.New("bloqueado")
	deps.antifraude = antifraudeFixa{err: bloqueio}
	service := deps.service(nil)

	err := service.RegistrarVoto(context.Background(), domain.Voto{ItemID: 3, VotanteID: "a"})
	if !errors.Is(err, bloqueio) {
		t.Fatalf("esperava erro do antifraude, veio %v", err)
	}
	if len(deps.votoRepo.lista) != 0 {
		t.Fatal("voto bloqueado nao deveria ser persistido")
	}
}

func TestServiceRegistrarVotoFalhaNoCanalNaoDerrubaVoto(t *testing.T) {
	deps := newServiceDeps()
	deps.canal.err = errors.New("barramento fora")
	service := deps.service(nil)

	if err := service.RegistrarVoto(context.Background(), domain.Voto{ItemID: 9, VotanteID: "a"}); err != nil {
		t.Fatalf("falha de publicacao nao deveria ser devolvida: %v", err)
	}
	if len(deps.votoRepo.lista) != 1 {
		t.Fatal("voto deveria continuar persistido")
	}
}

func TestServiceTotaisOrdenadosComVersao(t *testing.T) {
	deps := newServiceDeps()
	service := deps.service(nil)

	for _, item := range []domain.ItemID{5, 2, 5} {
		if err := service.RegistrarVoto(context.Background(), domain.Voto{ItemID: item, VotanteID: "x"}); err != nil {
			t.Fatalf("erro registrando voto: %v", err)
		}
	}

	totais, err := service.Totais(context.Background())
	if err != nil {
		t.Fatalf("erro lendo totais: %v", err)
	}
	if len(totais) != 2 {
		t.Fatalf("esperava 2 itens, veio %d", len(totais))
	}
	if totais[0].ItemID != 2 || totais[0].Total != 1 || totais[0].Versao != 1 {
		t.Fatalf("placar do item 2 inesperado: %+v", totais[0])
	}
	if totais[1].ItemID != 5 || totais[1].Total != 2 || totais[1].Versao != 2 {
		t.Fatalf("placar do item 5 inesperado: %+v", totais[1])
	}
}

func TestServiceTotaisSemContadorDevolveVersaoZero(t *testing.T) {
	deps := newServiceDeps()
	deps.contador = nil
	service := deps.service(nil)

	if err := service.RegistrarVoto(context.Background(), domain.Voto{ItemID: 1, VotanteID: "x"}); err != nil {
		t.Fatalf("erro registrando voto: %v", err)
	}

	totais, err := service.Totais(context.Background())
	if err != nil {
		t.Fatalf("erro lendo totais: %v", err)
	}
	if len(totais) != 1 || totais[0].Versao != 0 || totais[0].Total != 1 {
		t.Fatalf("placar inesperado: %+v", totais)
	}
}

func TestServiceRegistrarVotoConcorrente(t *testing.T) {
	deps := newServiceDeps()
	service := deps.service(nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = service.RegistrarVoto(context.Background(), domain.Voto{ItemID: 11, VotanteID: "c"})
		}()
	}
	wg.Wait()

	total, _ := deps.votoRepo.TotalPorItem(context.Background(), 11)
	if total != 20 {
		t.Fatalf("esperava 20 votos, veio %d", total)
	}
	if len(deps.canal.Eventos()) != 20 {
		t.Fatalf("esperava 20 eventos, veio %d", len(deps.canal.Eventos()))
	}
}

type serviceDeps struct {
	votoRepo   *memVotoRepo
	contador   *memContador
	queue      *recordingQueue
	canal      *recordingCanal
	antifraude domain.Antifraude
	clock      *staticClock
	idGen      *ids.Generator
	baseTime   time.Time
}

func newServiceDeps() *serviceDeps {
	base := time.Date(2024, 11, 1, 12, 0, 0, 0, time.UTC)
	return &serviceDeps{
		votoRepo:   &memVotoRepo{},
		contador:   &memContador{valores: make(map[string]int64)},
		queue:      &recordingQueue{},
		canal:      &recordingCanal{},
		antifraude: antifraudeNoop{},
		clock:      &staticClock{now: base},
		idGen:      ids.NewGenerator(),
		baseTime:   base,
	}
}

func (d *serviceDeps) service(fila domain.Fila) *Service {
	var contador domain.Contador
	if d.contador != nil {
		contador = d.contador
	}
	return NewService(d.votoRepo, contador, fila, d.canal, d.antifraude, d.clock, d.idGen, nil)
}

type memVotoRepo struct {
	mu    sync.Mutex
	lista []domain.Voto
}

func (m *memVotoRepo) Registrar(_ context.Context, voto domain.Voto) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lista = append(m.lista, voto)
	return nil
}

func (m *memVotoRepo) TotalPorItem(_ context.Context, id domain.ItemID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, v := range m.lista {
		if v.ItemID == id {
			total += int64(v.Valor)
		}
	}
	return total, nil
}

func (m *memVotoRepo) Totais(_ context.Context) ([]domain.Placar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	totais := make(map[domain.ItemID]int64)
	var ordem []domain.ItemID
	for _, v := range m.lista {
		if _, ok := totais[v.ItemID]; !ok {
			ordem = append(ordem, v.ItemID)
		}
		totais[v.ItemID] += int64(v.Valor)
	}
	placares := make([]domain.Placar, len(ordem))
	for i, id := range ordem {
		placares[i] = domain.Placar{ItemID: id, Total: totais[id]}
	}
	return placares, nil
}

type memContador struct {
	mu      sync.Mutex
	valores map[string]int64
}

func (m *memContador) Incrementar(_ context.Context, chave string, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.valores[chave] += delta
	return m.valores[chave], nil
}

func (m *memContador) ObterTodos(_ context.Context, chaves []string) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	resultado := make(map[string]int64, len(chaves))
	for _, chave := range chaves {
		resultado[chave] = m.valores[chave]
	}
	return resultado, nil
}

type recordingQueue struct {
	mu    sync.Mutex
	votos []domain.Voto
}

func (r *recordingQueue) PublicarVoto(_ context.Context, voto domain.Voto) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.votos = append(r.votos, voto)
	return nil
}

func (r *recordingQueue) ConsumirVotos(ctx context.Context, handler func(context.Context, domain.Voto) error) error {
	for _, voto := range r.Drain() {
		if err := handler(ctx, voto); err != nil {
			return err
		}
	}
	return nil
}

func (r *recordingQueue) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.votos)
}

func (r *recordingQueue) Drain() []domain.Voto {
	r.mu.Lock()
	defer r.mu.Unlock()
	copia := make([]domain.Voto, len(r.votos))
	copy(copia, r.votos)
	r.votos = nil
	return copia
}

type recordingCanal struct {
	mu      sync.Mutex
	eventos []domain.EventoVoto
	err     error
}

func (r *recordingCanal) Publicar(_ context.Context, evento domain.EventoVoto) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.eventos = append(r.eventos, evento)
	return nil
}

func (r *recordingCanal) Assinar(ctx context.Context, _ func(domain.EventoVoto)) error {
	<-ctx.Done()
	return ctx.Err()
}

func (r *recordingCanal) Eventos() []domain.EventoVoto {
	r.mu.Lock()
	defer r.mu.Unlock()
	copia := make([]domain.EventoVoto, len(r.eventos))
	copy(copia, r.eventos)
	return copia
}

type antifraudeNoop struct{}

func (antifraudeNoop) Validar(_ context.Context, _ domain.Voto) error { return nil }

type antifraudeFixa struct {
	err error
}

func (a antifraudeFixa) Validar(_ context.Context, _ domain.Voto) error { return a.err }

type staticClock struct {
	now time.Time
}

func (s *staticClock) Agora() time.Time {
	return s.now
}
