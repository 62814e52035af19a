// Package dataset charge le fichier scoré une seule fois et le partage,
// en lecture seule, pour toute la durée du process.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"churn-dashboard/pkg/logging"
	"churn-dashboard/pkg/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Source produit la liste complète des clients scorés.
type Source interface {
	Name() string
	Load(ctx context.Context) ([]models.CustomerRecord, error)
}

// Snapshot est le handle immuable retourné par Cache.
// Records ne doit jamais être modifié par les appelants.
type Snapshot struct {
	ID       uuid.UUID
	Source   string
	LoadedAt time.Time
	Records  []models.CustomerRecord
}

// Len retourne le nombre de clients chargés.
func (s *Snapshot) Len() int { return len(s.Records) }

// Cache : le premier chargement abouti (ou en échec définitif) est retenu, les
// appels suivants retournent le même *Snapshot (ou la même erreur). Un
// chargement interrompu par le contexte de l'appelant n'est pas retenu.
type Cache struct {
	src    Source
	logger *zap.Logger
	now    func() time.Time

	mu   sync.Mutex
	done bool
	snap *Snapshot
	err  error
}

// NewCache ne déclenche aucun chargement.
func NewCache(src Source, logger *zap.Logger) *Cache {
	return &Cache{src: src, logger: logging.OrNop(logger), now: time.Now}
}

// Get charge la source au premier appel. Les appels concurrents attendent la
// fin de ce chargement. Si ctx est annulé pendant le chargement, l'erreur est
// retournée à cet appelant seulement et le prochain Get recharge.
func (c *Cache) Get(ctx context.Context) (*Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return c.snap, c.err
	}

	start := c.now()
	c.logger.Info("loading dataset", zap.String("source", c.src.Name()))
	records, err := c.src.Load(ctx)
	if err != nil {
		err = fmt.Errorf("load %s: %w", c.src.Name(), err)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			c.logger.Warn("dataset load interrupted", zap.Error(err))
			return nil, err
		}
		c.done, c.err = true, err
		c.logger.Error("dataset load failed", zap.Error(err))
		return nil, err
	}
	c.done = true
	c.snap = &Snapshot{
		ID:       uuid.New(),
		Source:   c.src.Name(),
		LoadedAt: c.now().UTC(),
		Records:  records,
	}
	c.logger.Info("dataset loaded",
		zap.String("snapshot", c.snap.ID.String()),
		zap.Int("rows", len(records)),
		zap.Duration("elapsed", c.now().Sub(start)))
	return c.snap, nil
}
