// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/poiesic/sift"
	"github.com/poiesic/sift/core"
	"github.com/poiesic/sift/search"
)

var (
	dbPath   = flag.String("db", "./sift_db", "database directory")
	modeName = flag.String("mode", string(search.ModeContains), "search mode (startsWith, contains, containsBrute)")
	limit    = flag.Int("limit", 10, "hits to print")
)

func init() {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
	flag.Parse()
}

func main() {
	mode, err := search.ParseMode(*modeName)
	if err != nil {
		panic(err)
	}

	db, err := sift.NewDatabase(*dbPath)
	if err != nil {
		panic(err)
	}
	defer db.Close()
	searcher, err := db.NewSearcher()
	if err != nil {
		panic(err)
	}

	term := "mario"
	if flag.NArg() > 0 {
		term = strings.Join(flag.Args(), " ")
	}

	ctx := context.Background()
	start := time.Now()
	var results []*core.Record
	results, err = searcher.Search(ctx, mode, term)
	if err != nil {
		panic(err)
	}
	took := time.Since(start)

	fmt.Printf("Found %d hits for %q (%s) in %dms\n", len(results), term, mode, took.Milliseconds())
	for i, hit := range results {
		if i >= *limit {
			break
		}
		fmt.Printf("%d: %s '%s'\n", i, hit.Id, hit.RawText())
	}
}
