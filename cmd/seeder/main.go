package main

import (
	"context"
	"flag"
	"fmt"
	"iter"
	"log/slog"
	"math/rand/v2"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/sift"
	"github.com/poiesic/sift/core"
	"github.com/poiesic/sift/ingestion"
)

var (
	firstNames = []string{
		"Mario", "Luigi", "Anna", "Giulia", "Marco", "Sofia", "Luca", "Chiara",
		"John", "Jane", "Alice", "Bob", "Carol", "David", "Emma", "Frank",
		"Grace", "Henry", "Isabel", "Jack", "Karen", "Liam", "Maria", "Noah",
	}
	lastNames = []string{
		"Rossi", "Bianchi", "Romano", "Colombo", "Ricci", "Marino", "Greco",
		"Smith", "Doe", "Johnson", "Brown", "Taylor", "Anderson", "Thomas",
		"Martin", "Lee", "Walker", "Hall", "Young", "King", "Wright",
	}
	streets = []string{
		"Via Roma", "Corso Italia", "Piazza Duomo", "Via Garibaldi", "Viale Mazzini",
		"Main Street", "Oak Avenue", "Maple Drive", "Elm Road", "Cedar Lane",
		"Sunset Boulevard", "Harbor View", "Mill Lane", "Church Street",
	}
	noteWords = strings.Fields(`
		prefers morning calls about the renewal and asked for a paper invoice
		moved offices last spring so the old address still shows on some orders
		interested in the premium plan once the pilot finishes next quarter
		mentioned a referral from a colleague at the regional branch
		requested that reminders go by text rather than email
		follow up after the holidays with the updated price list
	`)
)

var (
	dbPath    = flag.String("db", "./sift_db", "database directory")
	count     = flag.Int("count", 10000, "number of users to generate")
	batchSize = flag.Int("batch", 1000, "records per ingest batch")
	seed      = flag.Uint64("seed", 0, "random seed (0 picks one from the clock)")
)

func init() {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
	flag.Parse()
}

// randomUser builds a user record with name, address, phone and note fields.
func randomUser(r *rand.Rand) *core.Record {
	name := pick(r, firstNames) + " " + pick(r, lastNames)
	address := fmt.Sprintf("%s %d", pick(r, streets), 1+r.IntN(200))
	phone := fmt.Sprintf("+39 %03d %03d %04d", r.IntN(1000), r.IntN(1000), r.IntN(10000))

	n := 6 + r.IntN(18)
	note := make([]string, n)
	for i := range note {
		note[i] = pick(r, noteWords)
	}

	return core.NewRecord(core.ID(uuid.NewString()),
		"name", name,
		"address", address,
		"phoneNumber", phone,
		"note", strings.Join(note, " "),
	)
}

func pick(r *rand.Rand, words []string) string {
	return words[r.IntN(len(words))]
}

// users yields n random users.
func users(r *rand.Rand, n int) iter.Seq[*core.Record] {
	return func(yield func(*core.Record) bool) {
		for range n {
			if !yield(randomUser(r)) {
				return
			}
		}
	}
}

// ingestBatched ingests records from source in batches.
func ingestBatched(ctx context.Context, pipeline *ingestion.Pipeline, source iter.Seq[*core.Record], batchSize int) error {
	batch := make([]*core.Record, 0, batchSize)

	for record := range source {
		batch = append(batch, record)
		if len(batch) == batchSize {
			if err := pipeline.Ingest(ctx, batch...); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}

	if len(batch) > 0 {
		if err := pipeline.Ingest(ctx, batch...); err != nil {
			return err
		}
	}

	return nil
}

func main() {
	if *count <= 0 || *batchSize <= 0 {
		fmt.Fprintln(os.Stderr, "count and batch must be greater than 0")
		os.Exit(2)
	}

	db, err := sift.NewDatabase(*dbPath)
	if err != nil {
		panic(err)
	}
	defer db.Close()

	ingester, err := db.NewIngestionPipeline()
	if err != nil {
		panic(err)
	}
	defer ingester.Release()

	s := *seed
	if s == 0 {
		s = uint64(time.Now().UnixNano())
	}
	r := rand.New(rand.NewPCG(s, s>>1))

	ctx := context.Background()
	start := time.Now()
	if err := ingestBatched(ctx, ingester, users(r, *count), *batchSize); err != nil {
		panic(err)
	}
	took := time.Since(start)

	stats, err := db.Stats(ctx)
	if err != nil {
		panic(err)
	}
	slog.Info("seeded database",
		"users", *count,
		"took_ms", took.Milliseconds(),
		"records", stats.Records,
		"words", stats.Words,
		"seed", s)
}
