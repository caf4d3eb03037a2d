package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/viper"
	"golang.org/x/exp/rand"

	"github.com/Arturo1s/benor"
	"github.com/Arturo1s/benor/consensus"
	"github.com/Arturo1s/benor/logging"
	"github.com/Arturo1s/benor/network"
	"github.com/Arturo1s/benor/participant"
	"github.com/Arturo1s/benor/runstore"
)

type runConfig struct {
	Participants   int           `mapstructure:"participants"`
	FaultTolerance int           `mapstructure:"fault-tolerance"`
	Faulty         []int         `mapstructure:"faulty"`
	InitialValues  []int         `mapstructure:"initial-values"`
	Host           string        `mapstructure:"host"`
	BasePort       int           `mapstructure:"base-port"`
	CollectWindow  time.Duration `mapstructure:"collect-window"`
	RoundCap       uint32        `mapstructure:"round-cap"`
	FallbackValue  int           `mapstructure:"fallback-value"`
	Seed           uint64        `mapstructure:"seed"`
	CoinBias       uint          `mapstructure:"coin-bias"`
	RateLimit      float64       `mapstructure:"rate-limit"`
	StartTimeout   time.Duration `mapstructure:"start-timeout"`
	Output         string        `mapstructure:"output"`
	LogLevel       string        `mapstructure:"log-level"`
}

func runLocal() error {
	var cfg runConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	logging.SetLogLevel(cfg.LogLevel)
	logger := logging.New("driver")

	initial, faulty, err := groupLayout(&cfg)
	if err != nil {
		return err
	}
	fallback, err := toValue(cfg.FallbackValue)
	if err != nil {
		return fmt.Errorf("fallback-value: %w", err)
	}
	policy := benor.Policy{
		RoundCap:      benor.Round(cfg.RoundCap),
		FallbackValue: fallback,
		CollectWindow: cfg.CollectWindow,
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.StartTimeout)
	defer cancel()

	// Bring up one server plus one vote sender per participant, then connect
	// everyone once all endpoints are bound.
	var (
		servers []*network.Server
		senders []*network.Sender
	)
	defer func() {
		for _, s := range senders {
			s.Close()
		}
		for _, s := range servers {
			s.Close()
		}
	}()
	for i := 0; i < cfg.Participants; i++ {
		id := benor.ID(i)
		var senderOpts []network.SenderOption
		if cfg.RateLimit > 0 {
			senderOpts = append(senderOpts, network.WithRateLimit(cfg.RateLimit))
		}
		sender := network.NewSender(logging.New(fmt.Sprintf("send%d", id)), id, senderOpts...)
		c, err := coin(&cfg, id)
		if err != nil {
			return err
		}
		ctrl := participant.New(
			logging.New(fmt.Sprintf("p%d", id)),
			sender,
			c,
			benor.Identity{ID: id, N: cfg.Participants, F: cfg.FaultTolerance, Faulty: faulty[id]},
			initial[i],
			policy,
		)
		srv := network.NewServer(logging.New(fmt.Sprintf("srv%d", id)), ctrl)
		if err := srv.Start(network.Address(cfg.Host, cfg.BasePort, id)); err != nil {
			return fmt.Errorf("participant %d: %w", id, err)
		}
		servers = append(servers, srv)
		senders = append(senders, sender)
	}
	for i, sender := range senders {
		for j := 0; j < cfg.Participants; j++ {
			if i == j {
				continue
			}
			id := benor.ID(j)
			if err := sender.Connect(ctx, id, network.Address(cfg.Host, cfg.BasePort, id)); err != nil {
				return fmt.Errorf("connect %d->%d: %w", i, j, err)
			}
		}
	}

	client := network.NewClient(logging.New("client"))
	defer client.Close()
	for i := 0; i < cfg.Participants; i++ {
		id := benor.ID(i)
		if err := client.Connect(ctx, id, network.Address(cfg.Host, cfg.BasePort, id)); err != nil {
			return fmt.Errorf("connect driver->%d: %w", i, err)
		}
	}

	logger.Infof("starting consensus: n=%d f=%d faulty=%v", cfg.Participants, cfg.FaultTolerance, cfg.Faulty)
	results := startAll(ctx, client, cfg.Participants)

	printSummary(cfg.Participants, faulty, results)

	if cfg.Output != "" {
		if err := record(cfg.Output, results, logger); err != nil {
			return err
		}
	}

	for id, res := range results {
		if res.err != nil && !faulty[id] {
			return fmt.Errorf("participant %d: %w", id, res.err)
		}
	}
	return nil
}

type startResult struct {
	outcome benor.Outcome
	err     error
}

func startAll(ctx context.Context, client *network.Client, n int) map[benor.ID]startResult {
	var (
		wg      sync.WaitGroup
		mut     sync.Mutex
		results = make(map[benor.ID]startResult)
	)
	for i := 0; i < n; i++ {
		id := benor.ID(i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := client.Start(ctx, id)
			mut.Lock()
			results[id] = startResult{outcome: outcome, err: err}
			mut.Unlock()
		}()
	}
	wg.Wait()
	return results
}

// groupLayout resolves the per-participant initial beliefs and the faulty
// set from the configuration.
func groupLayout(cfg *runConfig) (initial []benor.Value, faulty map[benor.ID]bool, err error) {
	if cfg.Participants < 2 {
		return nil, nil, fmt.Errorf("need at least 2 participants, got %d", cfg.Participants)
	}
	if cfg.FaultTolerance < 0 {
		return nil, nil, fmt.Errorf("fault-tolerance must be non-negative, got %d", cfg.FaultTolerance)
	}

	faulty = make(map[benor.ID]bool, len(cfg.Faulty))
	for _, i := range cfg.Faulty {
		if i < 0 || i >= cfg.Participants {
			return nil, nil, fmt.Errorf("faulty id %d out of range [0, %d)", i, cfg.Participants)
		}
		faulty[benor.ID(i)] = true
	}
	if len(faulty) > cfg.FaultTolerance {
		return nil, nil, fmt.Errorf("%d faulty participants exceed fault-tolerance %d", len(faulty), cfg.FaultTolerance)
	}

	switch len(cfg.InitialValues) {
	case 0:
		rnd := rand.New(rand.NewSource(initialSeed(cfg.Seed)))
		for i := 0; i < cfg.Participants; i++ {
			initial = append(initial, benor.Value(rnd.Intn(2)))
		}
	case cfg.Participants:
		for i, raw := range cfg.InitialValues {
			v, err := toValue(raw)
			if err != nil {
				return nil, nil, fmt.Errorf("initial-values[%d]: %w", i, err)
			}
			initial = append(initial, v)
		}
	default:
		return nil, nil, fmt.Errorf("got %d initial values, want %d", len(cfg.InitialValues), cfg.Participants)
	}
	return initial, faulty, nil
}

func initialSeed(seed uint64) uint64 {
	if seed != 0 {
		return seed
	}
	return rand.Uint64()
}

func coin(cfg *runConfig, id benor.ID) (consensus.Coin, error) {
	// Distinct per-participant seeds: identical coins would make every tie
	// break the same way across the group.
	seed := initialSeed(cfg.Seed) + uint64(id) + 1
	if cfg.CoinBias != 50 {
		if cfg.CoinBias > 100 {
			return nil, fmt.Errorf("coin-bias must be in [0, 100], got %d", cfg.CoinBias)
		}
		return consensus.NewWeightedCoin(100-cfg.CoinBias, cfg.CoinBias, int64(seed))
	}
	if cfg.Seed == 0 {
		return consensus.NewCoin(), nil
	}
	return consensus.NewSeededCoin(seed), nil
}

func toValue(raw int) (benor.Value, error) {
	switch raw {
	case 0:
		return benor.Zero, nil
	case 1:
		return benor.One, nil
	default:
		return benor.Abstain, fmt.Errorf("value must be 0 or 1, got %d", raw)
	}
}

func printSummary(n int, faulty map[benor.ID]bool, results map[benor.ID]startResult) {
	data := pterm.TableData{{"id", "role", "result", "belief", "decided", "round"}}
	for i := 0; i < n; i++ {
		id := benor.ID(i)
		res := results[id]
		role := "live"
		if faulty[id] {
			role = "faulty"
		}
		if res.err != nil {
			data = append(data, []string{fmt.Sprint(id), role, "error: " + res.err.Error(), "-", "-", "-"})
			continue
		}
		state := res.outcome.State
		data = append(data, []string{
			fmt.Sprint(id), role, res.outcome.Status.String(),
			fmtPtr(state.Belief), fmtPtr(state.Decided), fmtPtr(state.Round),
		})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		pterm.Error.Printfln("render summary: %v", err)
	}
}

func fmtPtr[T any](p *T) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprint(*p)
}

func record(output string, results map[benor.ID]startResult, logger logging.Logger) error {
	store, err := runstore.Open(filepath.Join(output, "runs"), logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warnf("close run store: %v", err)
		}
	}()

	run := time.Now().UTC().Format("20060102T150405Z")
	for id, res := range results {
		if res.err != nil {
			continue
		}
		if err := store.Put(run, id, res.outcome.State); err != nil {
			return err
		}
	}
	logger.Infof("recorded run %s in %s", run, output)
	return nil
}
