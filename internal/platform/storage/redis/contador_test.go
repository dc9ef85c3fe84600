package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	return client, mr
}

func TestContador_Incrementar_QuandoChaveNova_DeveComecarEmUm(t *testing.T) {
	client, mr := setupRedis(t)
	repo := NewContador(client, "versao")

	ctx := context.Background()

	// Act
	resultado, err := repo.Incrementar(ctx, "item:42:versao", 1)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(1), resultado)
	valor, err := mr.Get("versao:item:42:versao")
	require.NoError(t, err)
	assert.Equal(t, "1", valor)
}

func TestContador_Incrementar_QuandoMultiplasChamadas_DeveAcumular(t *testing.T) {
	client, _ := setupRedis(t)
	repo := NewContador(client, "versao")

	ctx := context.Background()
	chave := "item:7:versao"

	resultado1, err := repo.Incrementar(ctx, chave, 1)
	require.NoError(t, err)
	resultado2, err := repo.Incrementar(ctx, chave, 2)
	require.NoError(t, err)
	resultado3, err := repo.Incrementar(ctx, chave, 1)
	require.NoError(t, err)

	assert.Equal(t, int64(1), resultado1)
	assert.Equal(t, int64(3), resultado2)
	assert.Equal(t, int64(4), resultado3)
}

func TestContador_ObterTodos_QuandoAlgumasChavesExistem_DeveRetornarZeroParaAusentes(t *testing.T) {
	client, _ := setupRedis(t)
	repo := NewContador(client, "versao")

	ctx := context.Background()
	chaves := []string{"chave1", "chave2", "chave3"}

	_, err := repo.Incrementar(ctx, chaves[0], 5)
	require.NoError(t, err)
	_, err = repo.Incrementar(ctx, chaves[1], 10)
	require.NoError(t, err)

	// Act
	resultado, err := repo.ObterTodos(ctx, chaves)

	// Assert
	assert.NoError(t, err)
	assert.Equal(t, int64(5), resultado[chaves[0]])
	assert.Equal(t, int64(10), resultado[chaves[1]])
	assert.Equal(t, int64(0), resultado[chaves[2]])
}

func TestContador_ObterTodos_QuandoListaVazia_DeveRetornarMapaVazio(t *testing.T) {
	client, _ := setupRedis(t)
	repo := NewContador(client, "versao")

	resultado, err := repo.ObterTodos(context.Background(), nil)

	assert.NoError(t, err)
	assert.Empty(t, resultado)
}

func TestContador_ObterTodos_QuandoValorNaoNumerico_DeveFalhar(t *testing.T) {
	client, mr := setupRedis(t)
	repo := NewContador(client, "")

	require.NoError(t, mr.Set("lixo", "abc"))

	_, err := repo.ObterTodos(context.Background(), []string{"lixo"})

	assert.Error(t, err)
}

func TestContador_key_QuandoPrefixVazio_DeveRetornarChaveSemPrefixo(t *testing.T) {
	client, _ := setupRedis(t)
	repo := NewContador(client, "")

	assert.Equal(t, "minha-chave", repo.key("minha-chave"))
}

func TestContador_key_QuandoPrefixExiste_DeveRetornarChaveComPrefixo(t *testing.T) {
	client, _ := setupRedis(t)
	repo := NewContador(client, "prefixo")

	assert.Equal(t, "prefixo:minha-chave", repo.key("minha-chave"))
}
