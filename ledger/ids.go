// Package ledger contains the data model used to talk to a ledger node:
// identifiers, values, instructions, triggers, queries and signed
// transactions, plus the Client interface consumed by the migration tools.
package ledger

import (
	"fmt"
	"strings"
	"unicode"
)

// Name is a ledger identifier component (domain, account, asset or trigger name).
type Name string

// ParseName validates s as a ledger name.
func ParseName(s string) (Name, error) {
	if s == "" {
		return "", fmt.Errorf("empty name")
	}
	for _, r := range s {
		if unicode.IsSpace(r) || r == '@' || r == '#' {
			return "", fmt.Errorf("name %q contains illegal character %q", s, r)
		}
	}
	return Name(s), nil
}

// DomainID identifies a domain.
type DomainID struct {
	Name Name
}

func (id DomainID) String() string {
	return string(id.Name)
}

func (id DomainID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *DomainID) UnmarshalText(text []byte) error {
	name, err := ParseName(string(text))
	if err != nil {
		return fmt.Errorf("domain id: %w", err)
	}
	id.Name = name
	return nil
}

// AccountID identifies an account as `name@domain`.
type AccountID struct {
	Name   Name
	Domain DomainID
}

// ParseAccountID parses an account identifier of the form `name@domain`.
func ParseAccountID(s string) (AccountID, error) {
	name, domain, ok := strings.Cut(s, "@")
	if !ok {
		return AccountID{}, fmt.Errorf("account id %q: missing '@'", s)
	}
	n, err := ParseName(name)
	if err != nil {
		return AccountID{}, fmt.Errorf("account id %q: %w", s, err)
	}
	d, err := ParseName(domain)
	if err != nil {
		return AccountID{}, fmt.Errorf("account id %q: %w", s, err)
	}
	return AccountID{Name: n, Domain: DomainID{Name: d}}, nil
}

func (id AccountID) String() string {
	return fmt.Sprintf("%s@%s", id.Name, id.Domain)
}

func (id AccountID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *AccountID) UnmarshalText(text []byte) error {
	parsed, err := ParseAccountID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// AssetDefinitionID identifies an asset definition as `name#domain`.
type AssetDefinitionID struct {
	Name   Name
	Domain DomainID
}

// ParseAssetDefinitionID parses an asset definition identifier of the form `name#domain`.
func ParseAssetDefinitionID(s string) (AssetDefinitionID, error) {
	name, domain, ok := strings.Cut(s, "#")
	if !ok {
		return AssetDefinitionID{}, fmt.Errorf("asset definition id %q: missing '#'", s)
	}
	n, err := ParseName(name)
	if err != nil {
		return AssetDefinitionID{}, fmt.Errorf("asset definition id %q: %w", s, err)
	}
	d, err := ParseName(domain)
	if err != nil {
		return AssetDefinitionID{}, fmt.Errorf("asset definition id %q: %w", s, err)
	}
	return AssetDefinitionID{Name: n, Domain: DomainID{Name: d}}, nil
}

func (id AssetDefinitionID) String() string {
	return fmt.Sprintf("%s#%s", id.Name, id.Domain)
}

func (id AssetDefinitionID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *AssetDefinitionID) UnmarshalText(text []byte) error {
	parsed, err := ParseAssetDefinitionID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// AssetID identifies an asset of a given definition held by an account,
// written as `name#domain#account@domain`.
type AssetID struct {
	Definition AssetDefinitionID
	Account    AccountID
}

// ParseAssetID parses an asset identifier of the form `name#domain#account@domain`.
func ParseAssetID(s string) (AssetID, error) {
	i := strings.LastIndex(s, "#")
	if i < 0 {
		return AssetID{}, fmt.Errorf("asset id %q: missing '#'", s)
	}
	def, err := ParseAssetDefinitionID(s[:i])
	if err != nil {
		return AssetID{}, fmt.Errorf("asset id %q: %w", s, err)
	}
	acc, err := ParseAccountID(s[i+1:])
	if err != nil {
		return AssetID{}, fmt.Errorf("asset id %q: %w", s, err)
	}
	return AssetID{Definition: def, Account: acc}, nil
}

func (id AssetID) String() string {
	return fmt.Sprintf("%s#%s", id.Definition, id.Account)
}

func (id AssetID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *AssetID) UnmarshalText(text []byte) error {
	parsed, err := ParseAssetID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// TriggerID identifies a trigger by name.
type TriggerID struct {
	Name Name
}

func (id TriggerID) String() string {
	return string(id.Name)
}

func (id TriggerID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *TriggerID) UnmarshalText(text []byte) error {
	name, err := ParseName(string(text))
	if err != nil {
		return fmt.Errorf("trigger id: %w", err)
	}
	id.Name = name
	return nil
}
