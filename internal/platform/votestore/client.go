// Pacote votestore é o cliente HTTP do Vote Store (GET/POST /votes).
package votestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/marcelojr/zelda-votos/internal/domain"
)

// ErrStatus indica resposta fora da faixa 2xx.
var ErrStatus = errors.New("votestore: status inesperado")

// StatusError carrega o código devolvido pela API; casa com ErrStatus via errors.Is.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("votestore: status %d: %s", e.Code, e.Body)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrStatus
}

func (e *StatusError) StatusCode() int {
	return e.Code
}

type Client struct {
	baseURL string
	http    *http.Client
	headers map[string]string
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
		headers: map[string]string{"Accept": "application/json"},
	}
}

func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

func (c *Client) SetTimeout(timeout time.Duration) {
	c.http.Timeout = timeout
}

// FetchTotals busca o placar de todos os itens; o filtro por item fica com quem chama.
func (c *Client) FetchTotals(ctx context.Context) ([]domain.Placar, error) {
	body, err := c.do(ctx, http.MethodGet, "/votes", nil)
	if err != nil {
		return nil, err
	}

	var placares []domain.Placar
	if err := json.Unmarshal(body, &placares); err != nil {
		return nil, fmt.Errorf("votestore: decodificar totais: %w", err)
	}
	return placares, nil
}

// Submit envia o voto. A resposta não traz o total novo.
func (c *Client) Submit(ctx context.Context, voto domain.Voto) error {
	payload, err := json.Marshal(struct {
		ItemID    domain.ItemID `json:"item_id"`
		VotanteID string        `json:"voter_id"`
		Valor     int           `json:"value"`
	}{voto.ItemID, voto.VotanteID, voto.Valor})
	if err != nil {
		return fmt.Errorf("votestore: codificar voto: %w", err)
	}

	_, err = c.do(ctx, http.MethodPost, "/votes", bytes.NewReader(payload))
	return err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("votestore: criar request: %w", err)
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("votestore: %s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("votestore: ler resposta: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}
	return respBody, nil
}
