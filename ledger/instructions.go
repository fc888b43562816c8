package ledger

import (
	"encoding/json"
	"fmt"
)

// Instruction is a single ledger instruction carried by a transaction.
type Instruction interface {
	// Kind is the tag under which the instruction is encoded.
	Kind() string
}

const (
	KindRegisterDomain          = "RegisterDomain"
	KindRegisterAccount         = "RegisterAccount"
	KindRegisterAssetDefinition = "RegisterAssetDefinition"
	KindSetKeyValue             = "SetKeyValue"
	KindGrantPermission         = "GrantPermission"
	KindRegisterTrigger         = "RegisterTrigger"
	KindUnregisterTrigger       = "UnregisterTrigger"
)

var instructionDecoders = map[string]func(json.RawMessage) (Instruction, error){
	KindRegisterDomain:          decodeInstruction[RegisterDomain],
	KindRegisterAccount:         decodeInstruction[RegisterAccount],
	KindRegisterAssetDefinition: decodeInstruction[RegisterAssetDefinition],
	KindSetKeyValue:             decodeInstruction[SetKeyValue],
	KindGrantPermission:         decodeInstruction[GrantPermission],
	KindRegisterTrigger:         decodeInstruction[RegisterTrigger],
	KindUnregisterTrigger:       decodeInstruction[UnregisterTrigger],
}

func decodeInstruction[T Instruction](body json.RawMessage) (Instruction, error) {
	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// RegisterDomain registers a new domain.
type RegisterDomain struct {
	ID DomainID `json:"id"`
}

func (RegisterDomain) Kind() string { return KindRegisterDomain }

// RegisterAccount registers a new account controlled by the given signatories.
type RegisterAccount struct {
	ID          AccountID   `json:"id"`
	Signatories []PublicKey `json:"signatories"`
}

func (RegisterAccount) Kind() string { return KindRegisterAccount }

// AssetValueType is the value type of an asset definition.
type AssetValueType string

// AssetValueTypeStore is a key-value store asset.
const AssetValueTypeStore AssetValueType = "Store"

// RegisterAssetDefinition registers a new asset definition.
type RegisterAssetDefinition struct {
	ID        AssetDefinitionID `json:"id"`
	ValueType AssetValueType    `json:"value_type"`
}

func (RegisterAssetDefinition) Kind() string { return KindRegisterAssetDefinition }

// ObjectID points at the entity a SetKeyValue writes to. Exactly one field is set.
type ObjectID struct {
	AssetDefinition *AssetDefinitionID `json:"AssetDefinitionId,omitempty"`
	Asset           *AssetID           `json:"AssetId,omitempty"`
}

func (o ObjectID) String() string {
	switch {
	case o.AssetDefinition != nil:
		return o.AssetDefinition.String()
	case o.Asset != nil:
		return o.Asset.String()
	default:
		return ""
	}
}

// SetKeyValue stores Value under Key in the metadata of Object.
type SetKeyValue struct {
	Object ObjectID `json:"object_id"`
	Key    Name     `json:"key"`
	Value  Value    `json:"value"`
}

func (SetKeyValue) Kind() string { return KindSetKeyValue }

// SetAssetDefinitionKeyValue builds a SetKeyValue on an asset definition.
func SetAssetDefinitionKeyValue(id AssetDefinitionID, key Name, value Value) SetKeyValue {
	return SetKeyValue{Object: ObjectID{AssetDefinition: &id}, Key: key, Value: value}
}

// SetAssetKeyValue builds a SetKeyValue on an asset.
func SetAssetKeyValue(id AssetID, key Name, value Value) SetKeyValue {
	return SetKeyValue{Object: ObjectID{Asset: &id}, Key: key, Value: value}
}

// PermissionToken names a permission and its parameters.
type PermissionToken struct {
	Name   Name            `json:"name"`
	Params map[Name]string `json:"params"`
}

// PermissionSetKeyValueInUserAsset allows writing key-values of a user's asset.
const PermissionSetKeyValueInUserAsset Name = "can_set_key_value_in_user_asset"

// GrantPermission grants Permission to Destination.
type GrantPermission struct {
	Permission  PermissionToken `json:"permission"`
	Destination AccountID       `json:"destination_id"`
}

func (GrantPermission) Kind() string { return KindGrantPermission }

// GrantSetKeyValueAsset allows account to modify the key-values of asset.
func GrantSetKeyValueAsset(asset AssetID, account AccountID) GrantPermission {
	return GrantPermission{
		Permission: PermissionToken{
			Name:   PermissionSetKeyValueInUserAsset,
			Params: map[Name]string{"asset_id": asset.String()},
		},
		Destination: account,
	}
}

// RegisterTrigger registers a trigger.
type RegisterTrigger struct {
	Trigger Trigger `json:"trigger"`
}

func (RegisterTrigger) Kind() string { return KindRegisterTrigger }

// UnregisterTrigger removes a trigger.
type UnregisterTrigger struct {
	ID TriggerID `json:"id"`
}

func (UnregisterTrigger) Kind() string { return KindUnregisterTrigger }

// InstructionBox gives an Instruction its tagged JSON encoding: `{"<Kind>": {...}}`.
type InstructionBox struct {
	Instruction
}

func (b InstructionBox) MarshalJSON() ([]byte, error) {
	if b.Instruction == nil {
		return nil, fmt.Errorf("instruction: nil")
	}
	return json.Marshal(map[string]Instruction{b.Kind(): b.Instruction})
}

func (b *InstructionBox) UnmarshalJSON(data []byte) error {
	kind, body, err := singleVariant(data)
	if err != nil {
		return fmt.Errorf("instruction: %w", err)
	}
	decode, ok := instructionDecoders[kind]
	if !ok {
		return fmt.Errorf("instruction: unsupported kind %q", kind)
	}
	inst, err := decode(body)
	if err != nil {
		return fmt.Errorf("instruction %s: %w", kind, err)
	}
	b.Instruction = inst
	return nil
}

// Box wraps instructions for encoding.
func Box(instructions ...Instruction) []InstructionBox {
	boxes := make([]InstructionBox, len(instructions))
	for i, inst := range instructions {
		boxes[i] = InstructionBox{inst}
	}
	return boxes
}

// singleVariant splits a `{"<tag>": body}` object.
func singleVariant(data []byte) (string, json.RawMessage, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return "", nil, err
	}
	if len(raw) != 1 {
		return "", nil, fmt.Errorf("expected exactly one variant, got %d", len(raw))
	}
	for tag, body := range raw {
		return tag, body, nil
	}
	panic("unreachable")
}
