package genesis

import (
	"fmt"
	"io"

	"github.com/fraudledger/migrate/ledger"
	"github.com/fraudledger/migrate/log"
	"github.com/fraudledger/migrate/metrics"
)

const moduleName = "genesis"

// Assembler appends the fraud records of a CSV export to a genesis block.
type Assembler struct {
	mapper  *Mapper
	entropy io.Reader
	logger  *log.Logger
	metrics metrics.MigrationMetrics
}

// NewAssembler returns an assembler. The admin key pair is generated from
// entropy, normally crypto/rand.Reader.
func NewAssembler(mapper *Mapper, entropy io.Reader, logger *log.Logger) *Assembler {
	return &Assembler{
		mapper:  mapper,
		entropy: entropy,
		logger:  logger.WithModule(moduleName),
		metrics: metrics.NewDefaultMigrationMetrics(metrics.DefaultNamespace),
	}
}

// Assemble reads the block in doc and appends one transaction registering
// the domain and the admin account, followed by the instructions of every
// CSV row. It returns the block and the generated admin key pair.
func (a *Assembler) Assemble(doc io.Reader, records io.Reader) (*Block, *ledger.KeyPair, error) {
	block, err := ReadBlock(doc)
	if err != nil {
		return nil, nil, err
	}
	keys, err := ledger.GenerateKeyPair(a.entropy)
	if err != nil {
		return nil, nil, err
	}

	instructions := []ledger.Instruction{
		ledger.RegisterDomain{ID: a.mapper.Domain()},
		ledger.RegisterAccount{ID: a.mapper.Admin(), Signatories: []ledger.PublicKey{keys.Public}},
	}
	rows := 0
	err = readRows(records, func(_ int, record []string) error {
		mapped, err := a.mapper.MapRow(record)
		if err != nil {
			return err
		}
		instructions = append(instructions, mapped...)
		rows++
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if err := block.Append(instructions); err != nil {
		return nil, nil, fmt.Errorf("appending genesis transaction: %w", err)
	}
	a.metrics.RowsMapped(moduleName).Add(float64(rows))
	a.logger.Info("assembled genesis transaction",
		"rows", rows,
		"instructions", len(instructions),
		"transactions", len(block.Transactions),
		"admin", a.mapper.Admin(),
		"admin_public_key", keys.Public,
	)
	return block, keys, nil
}
