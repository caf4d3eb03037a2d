package consensus

import (
	"fmt"
	mrand "math/rand"
	"sync"

	wr "github.com/mroth/weightedrand"
	"golang.org/x/exp/rand"

	"github.com/Arturo1s/benor"
)

// Coin is the tie-break randomness source. When a round's tally is an exact
// tie, the engine adopts the coin's outcome as its new belief. The coin is a
// separate dependency so that tests can force either outcome.
type Coin interface {
	// Flip returns Zero or One.
	Flip() benor.Value
}

type prngCoin struct {
	mut sync.Mutex
	rng *rand.Rand
}

// NewCoin returns an unbiased coin seeded from the global generator.
func NewCoin() Coin {
	return NewSeededCoin(rand.Uint64())
}

// NewSeededCoin returns an unbiased coin with a fixed seed, for reproducible
// runs.
func NewSeededCoin(seed uint64) Coin {
	return &prngCoin{rng: rand.New(rand.NewSource(seed))}
}

func (c *prngCoin) Flip() benor.Value {
	c.mut.Lock()
	defer c.mut.Unlock()
	if c.rng.Intn(2) == 0 {
		return benor.Zero
	}
	return benor.One
}

type weightedCoin struct {
	mut     sync.Mutex
	chooser *wr.Chooser
	rng     *mrand.Rand
}

// NewWeightedCoin returns a biased coin that lands on Zero and One in
// proportion to the given weights. A biased coin breaks the protocol's
// termination analysis, so this is for experiments only.
func NewWeightedCoin(zeroWeight, oneWeight uint, seed int64) (Coin, error) {
	chooser, err := wr.NewChooser(
		wr.Choice{Item: benor.Zero, Weight: zeroWeight},
		wr.Choice{Item: benor.One, Weight: oneWeight},
	)
	if err != nil {
		return nil, fmt.Errorf("weighted coin: %w", err)
	}
	return &weightedCoin{
		chooser: chooser,
		rng:     mrand.New(mrand.NewSource(seed)),
	}, nil
}

func (c *weightedCoin) Flip() benor.Value {
	c.mut.Lock()
	defer c.mut.Unlock()
	return c.chooser.PickSource(c.rng).(benor.Value)
}
