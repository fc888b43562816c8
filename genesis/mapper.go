// Package genesis turns fraud record CSV exports into ledger instructions,
// either appended to a genesis block or submitted to a running ledger.
package genesis

import (
	"fmt"

	"github.com/fraudledger/migrate/ledger"
)

// Mapper converts CSV rows into the instructions that create one asset per
// row under the admin account.
type Mapper struct {
	schema Schema
	domain ledger.DomainID
	admin  ledger.AccountID
}

// NewMapper validates schema and returns a mapper creating assets in domain
// held by admin.
func NewMapper(schema Schema, domain ledger.DomainID, admin ledger.AccountID) (*Mapper, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	return &Mapper{schema: schema, domain: domain, admin: admin}, nil
}

// Domain is the domain assets are registered in.
func (m *Mapper) Domain() ledger.DomainID {
	return m.domain
}

// Admin is the account holding the assets.
func (m *Mapper) Admin() ledger.AccountID {
	return m.admin
}

// MapRow returns, in order: the asset definition registration, the id
// stored on the definition, each schema attribute stored on the asset,
// the expiry date, and the grant letting the admin edit the asset.
func (m *Mapper) MapRow(record []string) ([]ledger.Instruction, error) {
	rawID, err := column(record, m.schema.ID)
	if err != nil {
		return nil, err
	}
	name, err := ledger.ParseName(rawID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidField, m.schema.ID.Name, err)
	}
	definition := ledger.AssetDefinitionID{Name: name, Domain: m.domain}
	asset := ledger.AssetID{Definition: definition, Account: m.admin}

	instructions := make([]ledger.Instruction, 0, len(m.schema.Attributes)+4)
	instructions = append(instructions,
		ledger.RegisterAssetDefinition{ID: definition, ValueType: ledger.AssetValueTypeStore},
		ledger.SetAssetDefinitionKeyValue(definition, m.schema.ID.Name, ledger.StringValue(rawID)),
	)

	for _, f := range m.schema.Attributes {
		raw, err := column(record, f)
		if err != nil {
			return nil, err
		}
		v, err := m.schema.value(f, raw)
		if err != nil {
			return nil, err
		}
		instructions = append(instructions, ledger.SetAssetKeyValue(asset, f.Name, v))
	}

	raw, err := column(record, m.schema.Expiry)
	if err != nil {
		return nil, err
	}
	date, err := m.schema.parseDate(m.schema.Expiry, raw)
	if err != nil {
		return nil, err
	}
	expiry := date.Add(m.schema.ExpiryOffset).Unix()
	instructions = append(instructions,
		ledger.SetAssetKeyValue(asset, m.schema.Expiry.Name, ledger.IntValue(expiry)),
		ledger.GrantSetKeyValueAsset(asset, m.admin),
	)
	return instructions, nil
}
