package service

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// AutoStart starts tables that have waited long enough with enough players.
// It never touches game state itself; Publish hands a start action to the
// game service on behalf of the first seated player.
type AutoStart struct {
	Games      WaitingLister
	MinPlayers int
	After      time.Duration
	Publish    func(gameID, playerID int64) error
}

// Sweep runs one pass and returns how many starts were requested.
func (a *AutoStart) Sweep(ctx context.Context) (int, error) {
	if a.MinPlayers <= 0 {
		return 0, nil
	}
	waiting, err := a.Games.WaitingGames(ctx, a.MinPlayers, a.After)
	if err != nil {
		return 0, err
	}

	started := 0
	for _, w := range waiting {
		if err := a.Publish(w.ID, w.FirstPlayerID); err != nil {
			log.Errorf("Error [AutoStart.Publish] game %d: %s", w.ID, err)
			continue
		}
		started++
	}
	return started, nil
}

func (a *AutoStart) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.Sweep(ctx)
			if err != nil {
				log.Errorf("Error [AutoStart.Sweep] %s", err)
				continue
			}
			if n > 0 {
				log.Infof("auto-start requested for %d games", n)
			}
		}
	}
}
