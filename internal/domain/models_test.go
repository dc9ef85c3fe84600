package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVoto_UnmarshalJSON_QuandoChavesLegadas_DeveAceitar(t *testing.T) {
	var voto Voto
	require.NoError(t, json.Unmarshal([]byte(`{"id_num":"42","user_id":"u-1","value":1}`), &voto))

	assert.Equal(t, ItemID(42), voto.ItemID)
	assert.Equal(t, "u-1", voto.VotanteID)
	assert.Equal(t, 1, voto.Valor)
}

func TestVoto_UnmarshalJSON_QuandoChavesNovasEAntigas_DevePreferirNovas(t *testing.T) {
	var voto Voto
	require.NoError(t, json.Unmarshal([]byte(`{"item_id":1,"id_num":2,"voter_id":"novo","user_id":"velho"}`), &voto))

	assert.Equal(t, ItemID(1), voto.ItemID)
	assert.Equal(t, "novo", voto.VotanteID)
}

func TestEventoVoto_UnmarshalJSON_QuandoIdString_DeveNormalizar(t *testing.T) {
	var evento EventoVoto
	require.NoError(t, json.Unmarshal([]byte(`{"item_id":"1","total":4,"version":3}`), &evento))
	assert.Equal(t, EventoVoto{ItemID: 1, Total: 4, Versao: 3}, evento)

	var legado EventoVoto
	require.NoError(t, json.Unmarshal([]byte(`{"id_num":8,"total":2}`), &legado))
	assert.Equal(t, EventoVoto{ItemID: 8, Total: 2}, legado)
}

func TestPlacar_MarshalJSON_QuandoSemVersao_DeveOmitirCampo(t *testing.T) {
	data, err := json.Marshal(Placar{ItemID: 3, Total: 9})
	require.NoError(t, err)
	assert.JSONEq(t, `{"item_id":3,"total":9}`, string(data))
}

func TestMensagem_QuandoEnvelopeDeVoto_DeveCarregarDados(t *testing.T) {
	var msg Mensagem
	require.NoError(t, json.Unmarshal([]byte(`{"type":"vote:update","data":{"item_id":5,"total":1}}`), &msg))
	assert.Equal(t, TopicoVoto, msg.Tipo)

	var placar Placar
	require.NoError(t, json.Unmarshal(msg.Dados, &placar))
	assert.Equal(t, Placar{ItemID: 5, Total: 1}, placar)
}
