// Command guess plays guess-my-number, the smallest game the engine can
// run. It works in three modes: solo (a referee and some AIs in one
// process), -serve (host a lobby over websockets), and -join (connect to a
// host). Add -play to type guesses yourself.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"stagecraft"
	"stagecraft/journal"
	"stagecraft/logging"
	"stagecraft/logging/sinks"
	"stagecraft/relay"
	"stagecraft/wire"
)

func main() {
	var (
		serve       = flag.Bool("serve", false, "host a game and wait for clients")
		join        = flag.String("join", "", "ws://host:port/ws address of a game to join")
		aiCount     = flag.Int("ai", 1, "number of AI players to run locally")
		interactive = flag.Bool("play", false, "read guesses from stdin")
		tickMillis  = flag.Int("tick", 50, "frame interval in milliseconds")
		lower       = flag.Int("lower", 0, "lower bound of the secret number range")
		upper       = flag.Int("upper", 5000, "upper bound of the secret number range")
		journalPath = flag.String("journal", "", "record accepted messages to this sqlite file")
		logPath     = flag.String("log-json", "", "also write events to this newline-delimited JSON file")
		verbose     = flag.Bool("v", false, "log debug events")
	)
	flag.Parse()

	if *lower < 0 || *upper <= *lower+1 {
		fmt.Fprintf(os.Stderr, "the range (%d, %d) leaves no number to guess\n", *lower, *upper)
		os.Exit(1)
	}

	router, err := buildRouter(*verbose, *logPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to construct logging router: %v\n", err)
		os.Exit(1)
	}
	defer router.Close(context.Background())

	tick := time.Duration(*tickMillis) * time.Millisecond
	switch {
	case *serve:
		err = runServer(router, *lower, *upper, *journalPath)
	case *join != "":
		err = runClient(router, *join, *aiCount, *interactive, tick)
	default:
		err = runSolo(router, *lower, *upper, *aiCount, *interactive, *journalPath, tick)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func buildRouter(verbose bool, logPath string) (*logging.Router, error) {
	cfg := logging.DefaultConfig()
	if verbose {
		cfg.MinimumSeverity = logging.SeverityDebug
	}
	named := []logging.NamedSink{
		{Name: "console", Sink: sinks.NewConsoleSink(os.Stdout, cfg.Console)},
	}
	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		named = append(named, logging.NamedSink{
			Name: "json",
			Sink: sinks.NewJSON(f, cfg.JSON.FlushInterval),
		})
	}
	return logging.NewRouter(nil, cfg, named)
}

func runSolo(log logging.Publisher, lower, upper, aiCount int, interactive bool, journalPath string, tick time.Duration) error {
	world := NewGuessWorld()
	forum := stagecraft.NewForum()
	forum.Log = log
	forum.Telemetry = stagecraft.NewTelemetry()
	if journalPath != "" {
		store, err := journal.Open(journalPath)
		if err != nil {
			return err
		}
		forum.Journal = store
		forum.Codec = wire.NewCodec(world)
	}

	actors := []stagecraft.Actor{
		NewGuessReferee(lower, upper),
		NewConsoleActor(os.Stdout, interactive),
	}
	for i := 0; i < aiCount; i++ {
		actors = append(actors, NewAIActor())
	}

	game := stagecraft.NewGame(world, forum, actors...)
	return stagecraft.NewTheater(stagecraft.NewGameStage(game)).Run(tick)
}

func runServer(log logging.Publisher, lower, upper int, journalOverride string) error {
	cfg, err := relay.LoadConfig()
	if err != nil {
		return err
	}
	if journalOverride != "" {
		cfg.JournalPath = journalOverride
	}

	telemetry := stagecraft.NewTelemetry()
	server := relay.NewServer(cfg, log, telemetry)
	go func() {
		if err := http.ListenAndServe(cfg.Addr, server.Handler()); err != nil {
			fmt.Fprintf(os.Stderr, "http server failed: %v\n", err)
			os.Exit(1)
		}
	}()

	fmt.Printf("waiting for %d players on %s\n", cfg.Clients, cfg.Addr)
	clients, err := server.AwaitClients(context.Background())
	if err != nil {
		return fmt.Errorf("lobby never filled: %w", err)
	}

	world := NewGuessWorld()
	codec := wire.NewCodec(world)

	forum := stagecraft.NewForum()
	forum.Log = log
	forum.Telemetry = telemetry
	if cfg.JournalPath != "" {
		store, err := journal.Open(cfg.JournalPath)
		if err != nil {
			return err
		}
		forum.Journal = store
		forum.Codec = codec
	}

	actors := []stagecraft.Actor{NewGuessReferee(lower, upper)}
	for _, client := range clients {
		proxy := stagecraft.NewServerActor(client.Pipe, codec)
		proxy.SetSession(client.Session)
		proxy.Log = log
		proxy.Telemetry = telemetry
		actors = append(actors, proxy)
	}

	game := stagecraft.NewGame(world, forum, actors...)
	return stagecraft.NewTheater(stagecraft.NewGameStage(game)).Run(cfg.TickInterval())
}

func runClient(log logging.Publisher, url string, aiCount int, interactive bool, tick time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pipe, err := relay.Dial(ctx, url)
	if err != nil {
		return err
	}

	world := NewGuessWorld()
	forum := stagecraft.NewClientForum(pipe, wire.NewCodec(world))
	forum.Log = log
	forum.Telemetry = stagecraft.NewTelemetry()

	actors := []stagecraft.Actor{NewConsoleActor(os.Stdout, interactive)}
	for i := 0; i < aiCount; i++ {
		actors = append(actors, NewAIActor())
	}

	stage := stagecraft.NewClientConnectionStage(forum, func() *stagecraft.Game {
		return stagecraft.NewGame(world, forum, actors...)
	})
	return stagecraft.NewTheater(stage).Run(tick)
}
