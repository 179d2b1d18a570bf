// Command tickpush replays tracker ticks into a running worker over gRPC.
// It reads one JSON tick per line from stdin:
//
//	{"timestamp":"2026-03-01T10:00:00Z","entities":[{"id":1,"x":700,"y":790}]}
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"tour-counter-go/internal/models"
	"tour-counter-go/internal/transport/grpcingest"
)

func main() {
	addr := flag.String("addr", "localhost:50051", "tick ingest address")
	gate := flag.String("gate", "", "gate id (default gate when empty)")
	timeout := flag.Duration("timeout", 5*time.Second, "per-tick timeout")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	client, err := grpcingest.Dial(*addr)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect")
	}
	defer client.Close()

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}

		var req models.TickRequest
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			log.Warn().Err(err).Int("line", line).Msg("Skipping invalid tick")
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		accepted, err := client.PushTick(ctx, *gate, req.Tick(time.Now()))
		cancel()
		if err != nil {
			log.Fatal().Err(err).Int("line", line).Msg("Push failed")
		}

		log.Debug().
			Str("gate_id", accepted.GateID).
			Int("entities", accepted.Entities).
			Int("malformed", accepted.Malformed).
			Msg("Tick accepted")
	}
	if err := scanner.Err(); err != nil {
		log.Fatal().Err(err).Msg("Failed to read stdin")
	}

	log.Info().Int("lines", line).Msg("Replay complete")
}
