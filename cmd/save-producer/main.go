package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/clicker-admin/internal/domain"
	"github.com/clicker-admin/internal/kafka"
)

var playerPrefixes = []string{
	"Phoenix", "Shadow", "Thunder", "Storm", "Blaze", "Ninja", "Dragon", "Wolf", "Hawk", "Viper",
	"Ghost", "Titan", "Frost", "Cyber", "Nova", "Raven", "Omega", "Alpha", "Delta", "Sigma",
	"Ace", "Bolt", "Crash", "Dash", "Edge", "Flash", "Glitch", "Haze", "Ion", "Jade",
	"Knight", "Luna", "Mystic", "Neon", "Orion", "Pulse", "Quantum", "Rebel", "Spark", "Turbo",
}

func getPlayerName(idx int) string {
	prefixIdx := idx % len(playerPrefixes)
	suffix := idx/len(playerPrefixes) + 1
	return fmt.Sprintf("%s%d", playerPrefixes[prefixIdx], suffix)
}

// clientState is the document the game client autosaves. Upgrade levels
// are client-only and must survive ingestion untouched.
type clientState struct {
	domain.PlayerRecord
	UpgradeAmounts []int `json:"upgradeAmounts"`
}

// player is the simulated client state of one account
type player struct {
	id     string
	record domain.PlayerRecord
	levels []int
}

// tick advances a player by one autosave interval of play.
func (p *player) tick(seconds float64, rng *rand.Rand) {
	clicks := int64(rng.Intn(40) + 1)
	earned := float64(clicks) * p.record.MoneyPerClick

	p.record.ClicksTotal += clicks
	p.record.Money += earned
	p.record.TotalTimePlayed += seconds
	p.record.Stats.OnlineTime += seconds
	p.record.Stats.AllTimeMoneyEarned += earned

	// Occasional upgrades and gem drops keep every category moving
	if rng.Intn(10) == 0 {
		p.record.MoneyPerClick *= 1.15
		p.record.TotalTiers++
		p.levels = append(p.levels, 1)
		if p.record.TotalTiers > p.record.HighestTier {
			p.record.HighestTier = p.record.TotalTiers
		}
	}
	if rng.Intn(20) == 0 {
		p.record.Gems++
		p.record.Stats.AllTimeGemsEarned++
	}
}

func (p *player) save() (domain.GameSave, error) {
	rec := p.record
	now := time.Now().UnixMilli()
	save, err := domain.NewGameSave(p.id, clientState{PlayerRecord: rec, UpgradeAmounts: p.levels}, now)
	if err != nil {
		return domain.GameSave{}, err
	}
	save.Leaderboard = domain.ProjectEntry(p.id, &rec, now)
	return save, nil
}

func main() {
	// Command line flags
	brokers := flag.String("brokers", "localhost:9094", "Kafka brokers (comma-separated)")
	topic := flag.String("topic", "game-saves", "Kafka topic")
	totalPlayers := flag.Int("players", 1000, "Total number of players to simulate")
	savesPerSecond := flag.Int("rate", 100, "Saves per second")
	batchSize := flag.Int("batch", 10, "Batch size for initial population")
	devRatio := flag.Float64("dev-ratio", 0.02, "Fraction of players that used developer grants")
	duration := flag.Duration("duration", 0, "Duration to run (0 = forever)")
	initialOnly := flag.Bool("initial-only", false, "Only create initial saves, no continuous updates")
	flag.Parse()

	if *totalPlayers <= 20 || *savesPerSecond <= 0 || *batchSize <= 0 {
		log.Fatalf("players must be > 20, rate and batch must be positive")
	}

	brokerList := strings.Split(*brokers, ",")

	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println("  🚀 Kafka Game Save Producer")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("  Brokers:          %s\n", *brokers)
	fmt.Printf("  Topic:            %s\n", *topic)
	fmt.Printf("  Total Players:    %d\n", *totalPlayers)
	fmt.Printf("  Saves/sec:        %d\n", *savesPerSecond)
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	// Configure Sarama producer
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Flush.Frequency = 100 * time.Millisecond
	config.Producer.Flush.Messages = 100
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true

	// Create producer
	producer, err := sarama.NewAsyncProducer(brokerList, config)
	if err != nil {
		log.Fatalf("Failed to create producer: %v", err)
	}
	defer producer.Close()

	// Handle producer errors and successes
	var successCount, errorCount int64
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for range producer.Successes() {
			atomic.AddInt64(&successCount, 1)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for err := range producer.Errors() {
			atomic.AddInt64(&errorCount, 1)
			log.Printf("Producer error: %v", err)
		}
	}()

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	finish := func(reason string) {
		fmt.Printf("\n\n%s\n", reason)
		close(done)
		producer.AsyncClose()
		wg.Wait()
		fmt.Printf("\n✓ Completed. Sent: %d, Errors: %d\n", atomic.LoadInt64(&successCount), atomic.LoadInt64(&errorCount))
	}

	// Send message helper
	sendSave := func(p *player) {
		save, err := p.save()
		if err != nil {
			log.Printf("Failed to build save: %v", err)
			return
		}
		msg, err := kafka.NewSaveMessage(*topic, save)
		if err != nil {
			log.Printf("Failed to encode save: %v", err)
			return
		}

		select {
		case producer.Input() <- msg:
		case <-done:
			return
		}
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	players := make([]*player, *totalPlayers)

	// Create initial saves in batches
	fmt.Printf("Creating %d initial saves...\n", *totalPlayers)
	for i := 0; i < *totalPlayers; i += *batchSize {
		end := i + *batchSize
		if end > *totalPlayers {
			end = *totalPlayers
		}

		for j := i; j < end; j++ {
			p := &player{
				id: fmt.Sprintf("user_%d_%06d", time.Now().Unix(), j),
				record: domain.PlayerRecord{
					Username:      getPlayerName(j),
					MoneyPerClick: 1,
					HighestTier:   1,
					TotalTiers:    1,
				},
			}
			if rng.Float64() < *devRatio {
				p.record.Stats.DevStats = &domain.DevStats{MoneyAdded: 1e6}
			}
			p.tick(float64(rng.Intn(3600)), rng)
			players[j] = p
			sendSave(p)
		}

		progress := float64(end) / float64(*totalPlayers) * 100
		fmt.Printf("\r  Progress: %d/%d players (%.1f%%)", end, *totalPlayers, progress)
	}
	fmt.Printf("\n✓ Created %d saves\n\n", *totalPlayers)

	if *initialOnly {
		finish("Initial-only mode: Exiting after creating saves")
		return
	}

	// Start continuous autosaves
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("Starting continuous autosaves (%d/sec)\n", *savesPerSecond)
	fmt.Println("Top players have 70% chance to be picked (to create movement)")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	interval := time.Second / time.Duration(*savesPerSecond)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	statsTicker := time.NewTicker(5 * time.Second)
	defer statsTicker.Stop()

	var endTime time.Time
	if *duration > 0 {
		endTime = time.Now().Add(*duration)
	}

	var saveCount int64

	for {
		select {
		case <-sigChan:
			finish("Shutting down...")
			return

		case <-ticker.C:
			if *duration > 0 && time.Now().After(endTime) {
				finish("Duration reached, shutting down...")
				return
			}

			// 70% chance to pick from top 20 players
			var idx int
			if rng.Intn(100) < 70 {
				idx = rng.Intn(20)
			} else {
				idx = rng.Intn(*totalPlayers-20) + 20
			}

			p := players[idx]
			p.tick(30, rng)
			sendSave(p)
			atomic.AddInt64(&saveCount, 1)

		case <-statsTicker.C:
			fmt.Printf("[%s] Saves: %d | Sent: %d | Errors: %d\n",
				time.Now().Format("15:04:05"),
				atomic.LoadInt64(&saveCount),
				atomic.LoadInt64(&successCount),
				atomic.LoadInt64(&errorCount),
			)
		}
	}
}
