package main

import (
	"flag"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"

	"ambrosial/internal/fixture"
	"ambrosial/internal/logger"
	"ambrosial/internal/model"
	"ambrosial/internal/store"
)

func main() {
	var (
		count   int
		firstID int64
		output  string
		format  string
		seed    int64
	)
	flag.IntVar(&count, "count", 100, "number of orders to generate")
	flag.Int64Var(&firstID, "first-id", 150000000000, "order id of the newest order")
	flag.StringVar(&output, "output", "", "store path (default data/<format default name>)")
	flag.StringVar(&format, "format", "json", "store format: json|binary|pebble|badger")
	flag.Int64Var(&seed, "seed", 1, "random seed")
	flag.Parse()

	if err := logger.Init("genorders", "info"); err != nil {
		log.Fatal().Err(err).Msg("init logger")
	}
	f, err := store.ParseFormat(format)
	if err != nil {
		log.Fatal().Err(err).Msg("bad format")
	}
	if output == "" {
		output = "data/" + f.DefaultName()
	}
	if err := generateOrders(count, firstID, seed, f, output); err != nil {
		log.Fatal().Err(err).Msg("generation failed")
	}
}

// generateOrders writes count orders, newest first, drawn from small pools
// of items, restaurants and address versions so lookups have repeats.
func generateOrders(count int, firstID, seed int64, format store.Format, output string) error {
	st, err := store.Open(format, output)
	if err != nil {
		return err
	}
	rng := rand.New(rand.NewSource(seed))
	restaurants := []string{"R1", "R2", "R3", "R4"}
	items := []string{"I1", "I2", "I3", "I4", "I5", "I6", "I7", "I8"}
	base := time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC)

	orders := make([]model.RawOrder, 0, count)
	for i := 0; i < count; i++ {
		n := 1 + rng.Intn(3)
		ids := make([]string, 0, n)
		for j := 0; j < n; j++ {
			ids = append(ids, items[rng.Intn(len(items))])
		}
		orders = append(orders, fixture.Order(fixture.Spec{
			OrderID:        firstID - int64(i),
			RestaurantID:   restaurants[rng.Intn(len(restaurants))],
			AddressID:      fmt.Sprintf("%d", 1+rng.Intn(2)),
			AddressVersion: 1 + rng.Intn(2),
			ItemIDs:        ids,
			SLADifference:  rng.Intn(50) - 30,
			OrderTime:      base.Add(-time.Duration(i) * 26 * time.Hour),
			Total:          float64(100 + rng.Intn(900)),
			WithOffer:      rng.Intn(3) == 0,
			WithRating:     rng.Intn(2) == 0,
		}))
	}

	res, err := st.Save(orders)
	if err != nil {
		return fmt.Errorf("save: %w", err)
	}
	log.Info().Int("generated", count).Int("added", len(res.Added)).Int("total", res.Total).
		Str("path", st.Location()).Msg("orders written")
	return nil
}
