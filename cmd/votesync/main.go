// Cliente de terminal: acompanha o total de um item ao vivo e vota a cada Enter.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/marcelojr/zelda-votos/internal/app/votesync"
	"github.com/marcelojr/zelda-votos/internal/domain"
	"github.com/marcelojr/zelda-votos/internal/platform/config"
	"github.com/marcelojr/zelda-votos/internal/platform/logger"
	"github.com/marcelojr/zelda-votos/internal/platform/realtime/wsclient"
	"github.com/marcelojr/zelda-votos/internal/platform/votestore"
)

type opcoes struct {
	item       int64
	apiURL     string
	wsURL      string
	staleGuard bool
}

func parseFlags(args []string, cfg config.Config) (opcoes, error) {
	fs := flag.NewFlagSet("votesync", flag.ContinueOnError)
	var o opcoes
	fs.Int64Var(&o.item, "item", 42, "ID do item acompanhado")
	fs.StringVar(&o.apiURL, "api", cfg.VoteSyncAPIURL, "URL base do Vote Store")
	fs.StringVar(&o.wsURL, "ws", cfg.VoteSyncWSURL, "URL do websocket de broadcast")
	fs.BoolVar(&o.staleGuard, "stale-guard", cfg.VoteSyncStaleGuard, "descarta eventos com versão antiga")
	if err := fs.Parse(args); err != nil {
		return opcoes{}, err
	}
	if !domain.ItemID(o.item).Valido() {
		return opcoes{}, fmt.Errorf("item invalido: %d", o.item)
	}
	return o, nil
}

// tela serializa as escritas no terminal; callbacks chegam de goroutines diferentes.
type tela struct {
	mu  sync.Mutex
	out io.Writer
}

func (t *tela) render(v votesync.View) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, "Ítem #%d | votos: %d | %s | %s\n", v.ItemID, v.Total, v.Estado, v.Conexao)
}

func (t *tela) println(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.out, msg)
}

type comando struct {
	sair bool
	item domain.ItemID
	err  error
}

// interpretar: linha vazia vota, `:item N` troca de item, `:q` sai.
func interpretar(linha string) comando {
	linha = strings.TrimSpace(linha)
	switch {
	case linha == "":
		return comando{}
	case linha == ":q":
		return comando{sair: true}
	case strings.HasPrefix(linha, ":item"):
		id, err := domain.ParseItemID(strings.TrimPrefix(linha, ":item"))
		if err == nil && !id.Valido() {
			err = fmt.Errorf("item invalido: %d", id)
		}
		return comando{item: id, err: err}
	default:
		return comando{err: fmt.Errorf("comando desconhecido: %q", linha)}
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("configuracao invalida", "err", err)
	}
	// stdout é a tela; log vai para stderr.
	logger.SetOutput(os.Stderr, logger.ParseLevel(cfg.LogLevel))

	o, err := parseFlags(os.Args[1:], cfg)
	if err != nil {
		logger.Fatal("flags invalidas", "err", err)
	}

	out := &tela{out: os.Stdout}
	store := votestore.New(o.apiURL)
	conn := wsclient.New(wsclient.DefaultConfig(o.wsURL), logger.L())

	client := votesync.New(store, conn,
		votesync.WithLogger(logger.L()),
		votesync.WithStaleGuard(o.staleGuard),
		votesync.WithOnChange(out.render),
	)
	conn.OnStateChange(func(estado domain.EstadoConexao) {
		// Eventos perdidos enquanto o canal estava fora não voltam: refaz o snapshot.
		if estado == domain.Conectado {
			_ = client.Resync()
		}
		out.render(client.View())
	})

	connCtx, cancelConn := context.WithCancel(ctx)
	connDone := make(chan struct{})
	go func() {
		defer close(connDone)
		_ = conn.Run(connCtx)
	}()

	if err := client.Activate(ctx, domain.ItemID(o.item)); err != nil {
		logger.Fatal("falha ao ativar item", "item", o.item, "err", err)
	}
	out.println("Enter vota, :item <id> troca de item, :q sai")

	linhas := make(chan string)
	go func() {
		defer close(linhas)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			linhas <- scanner.Text()
		}
	}()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case linha, ok := <-linhas:
			if !ok {
				break loop
			}
			cmd := interpretar(linha)
			switch {
			case cmd.err != nil:
				out.println(cmd.err.Error())
			case cmd.sair:
				break loop
			case cmd.item != 0:
				if err := client.Activate(ctx, cmd.item); err != nil {
					out.println(err.Error())
				}
			default:
				out.println(votesync.MensagemVoto(client.SubmitVote(ctx)))
			}
		}
	}

	client.Deactivate()
	client.Wait()
	cancelConn()
	<-connDone
	logger.Info("votesync finalizado")
}
