package genesis

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fraudledger/migrate/ledger"
	"github.com/fraudledger/migrate/log"
	"github.com/fraudledger/migrate/metrics"
)

// Importer submits the fraud records of a CSV export to a running ledger.
type Importer struct {
	client     ledger.Client
	mapper     *Mapper
	entropy    io.Reader
	ackTimeout time.Duration
	now        func() time.Time
	logger     *log.Logger
	metrics    metrics.MigrationMetrics
}

// NewImporter returns an importer that waits up to ackTimeout for every
// transaction.
func NewImporter(client ledger.Client, mapper *Mapper, entropy io.Reader, ackTimeout time.Duration, logger *log.Logger) *Importer {
	return &Importer{
		client:     client,
		mapper:     mapper,
		entropy:    entropy,
		ackTimeout: ackTimeout,
		now:        time.Now,
		logger:     logger.WithModule(moduleName).With("flow", "import"),
		metrics:    metrics.NewDefaultMigrationMetrics(metrics.DefaultNamespace),
	}
}

// Import registers the domain and a freshly keyed admin account on behalf
// of signer, then submits one transaction per CSV row signed by the admin.
// It returns the admin key pair and the number of rows imported. Rows
// acknowledged before a failure stay on the ledger.
func (im *Importer) Import(ctx context.Context, signer ledger.Signer, records io.Reader) (*ledger.KeyPair, int, error) {
	keys, err := ledger.GenerateKeyPair(im.entropy)
	if err != nil {
		return nil, 0, err
	}
	admin := im.mapper.Admin()

	setup, err := ledger.NewTransaction(signer.Account).
		Add(
			ledger.RegisterDomain{ID: im.mapper.Domain()},
			ledger.RegisterAccount{ID: admin, Signatories: []ledger.PublicKey{keys.Public}},
		).
		BuildSigned(signer.Keys, im.now())
	if err != nil {
		return nil, 0, err
	}
	hash, err := ledger.Submit(ctx, im.client, setup, im.ackTimeout)
	if err != nil {
		return nil, 0, fmt.Errorf("registering domain %s and admin %s: %w", im.mapper.Domain(), admin, err)
	}
	im.logger.Info("registered admin account", "admin", admin, "tx", hash)

	rows := 0
	err = readRows(records, func(line int, record []string) error {
		instructions, err := im.mapper.MapRow(record)
		if err != nil {
			return err
		}
		tx, err := ledger.NewTransaction(admin).Add(instructions...).BuildSigned(keys, im.now())
		if err != nil {
			return err
		}
		hash, err := ledger.Submit(ctx, im.client, tx, im.ackTimeout)
		if err != nil {
			return err
		}
		rows++
		im.metrics.RowsMapped("import").Inc()
		im.logger.Debug("imported row", "line", line, "tx", hash)
		return nil
	})
	if err != nil {
		return keys, rows, err
	}
	im.logger.Info("imported rows", "rows", rows)
	return keys, rows, nil
}
