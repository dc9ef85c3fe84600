package votestore

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcelojr/zelda-votos/internal/domain"
)

func TestFetchTotals_QuandoRespostaValida_DeveDecodificarIdsTolerantes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/votes", r.URL.Path)
		_, _ = w.Write([]byte(`[{"item_id":1,"total":3,"version":2},{"item_id":"42","total":7},{"id_num":9.0,"total":1}]`))
	}))
	defer srv.Close()

	placares, err := New(srv.URL + "/").FetchTotals(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []domain.Placar{
		{ItemID: 1, Total: 3, Versao: 2},
		{ItemID: 42, Total: 7},
		{ItemID: 9, Total: 1},
	}, placares)
}

func TestFetchTotals_QuandoStatus500_DeveRetornarErrStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := New(srv.URL).FetchTotals(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStatus)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusInternalServerError, statusErr.Code)
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode())
	assert.Equal(t, "boom", statusErr.Body)
}

func TestFetchTotals_QuandoJSONInvalido_DeveRetornarErro(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{nao e lista`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).FetchTotals(context.Background())

	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrStatus)
}

func TestFetchTotals_QuandoServidorLento_DeveRespeitarTimeout(t *testing.T) {
	liberar := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-liberar:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(liberar)

	client := New(srv.URL)
	client.SetTimeout(50 * time.Millisecond)

	_, err := client.FetchTotals(context.Background())

	assert.Error(t, err)
}

func TestSubmit_DeveEnviarPayloadDoVoto(t *testing.T) {
	var recebido map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "teste", r.Header.Get("X-Origem"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&recebido))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"status":"registrado"}`))
	}))
	defer srv.Close()

	client := New(srv.URL)
	client.SetHeader("X-Origem", "teste")
	err := client.Submit(context.Background(), domain.Voto{ItemID: 42, VotanteID: "abc", Valor: 1, OrigemIP: "1.2.3.4"})

	require.NoError(t, err)
	assert.Equal(t, map[string]any{"item_id": float64(42), "voter_id": "abc", "value": float64(1)}, recebido)
}

func TestSubmit_QuandoAceitoAssincrono_DeveRetornarNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	assert.NoError(t, New(srv.URL).Submit(context.Background(), domain.Voto{ItemID: 1, VotanteID: "x", Valor: 1}))
}

func TestSubmit_QuandoRateLimit_DeveRetornarErrStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := New(srv.URL).Submit(context.Background(), domain.Voto{ItemID: 1, VotanteID: "x", Valor: 1})

	assert.ErrorIs(t, err, ErrStatus)
}

func TestSubmit_QuandoServidorFora_DeveRetornarErro(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := New(url).Submit(context.Background(), domain.Voto{ItemID: 1, VotanteID: "x", Valor: 1})

	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrStatus)
}
