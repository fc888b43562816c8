package ledger

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/oasisprotocol/curve25519-voi/primitives/ed25519"
)

// Multihash prefix of an ed25519 public key (code 0xed, length 0x20).
const ed25519Multihash = "ed0120"

// PublicKey is an ed25519 public key, rendered as a multihash hex string.
type PublicKey []byte

// ParsePublicKey parses a multihash hex encoded ed25519 public key.
func ParsePublicKey(s string) (PublicKey, error) {
	s = strings.ToLower(s)
	if !strings.HasPrefix(s, ed25519Multihash) {
		return nil, fmt.Errorf("public key: unsupported multihash prefix in %q", s)
	}
	raw, err := hex.DecodeString(strings.TrimPrefix(s, ed25519Multihash))
	if err != nil {
		return nil, fmt.Errorf("public key: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("public key: invalid length %d", len(raw))
	}
	return PublicKey(raw), nil
}

func (pk PublicKey) String() string {
	return ed25519Multihash + hex.EncodeToString(pk)
}

func (pk PublicKey) MarshalText() ([]byte, error) {
	return []byte(pk.String()), nil
}

func (pk *PublicKey) UnmarshalText(text []byte) error {
	parsed, err := ParsePublicKey(string(text))
	if err != nil {
		return err
	}
	*pk = parsed
	return nil
}

// HexBytes is a byte string that is hex encoded in text form.
type HexBytes []byte

func (b HexBytes) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(b)), nil
}

func (b *HexBytes) UnmarshalText(text []byte) error {
	raw, err := hex.DecodeString(string(text))
	if err != nil {
		return err
	}
	*b = raw
	return nil
}

// Signature is an ed25519 signature together with the signing public key.
type Signature struct {
	PublicKey PublicKey `json:"public_key"`
	Payload   HexBytes  `json:"payload"`
}

// Verify checks the signature over message.
func (s Signature) Verify(message []byte) bool {
	if len(s.PublicKey) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(s.PublicKey), message, s.Payload)
}

// KeyPair is an ed25519 signing key pair.
type KeyPair struct {
	Public  PublicKey
	private ed25519.PrivateKey
}

// GenerateKeyPair creates a fresh key pair reading seed material from entropy.
func GenerateKeyPair(entropy io.Reader) (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(entropy)
	if err != nil {
		return nil, fmt.Errorf("generating ed25519 key: %w", err)
	}
	return &KeyPair{Public: PublicKey(pub), private: priv}, nil
}

// KeyPairFromSeed derives a key pair from a 32 byte seed.
func KeyPairFromSeed(seed []byte) (*KeyPair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("invalid seed length %d", len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &KeyPair{
		Public:  PublicKey(priv[ed25519.SeedSize:]),
		private: priv,
	}, nil
}

// ParsePrivateKey parses a hex encoded private key. Both the 32 byte seed
// and the 64 byte expanded form are accepted.
func ParsePrivateKey(s string) (*KeyPair, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("private key: %w", err)
	}
	switch len(raw) {
	case ed25519.SeedSize:
		return KeyPairFromSeed(raw)
	case ed25519.PrivateKeySize:
		kp, err := KeyPairFromSeed(raw[:ed25519.SeedSize])
		if err != nil {
			return nil, err
		}
		if !strings.EqualFold(hex.EncodeToString(kp.Public), hex.EncodeToString(raw[ed25519.SeedSize:])) {
			return nil, fmt.Errorf("private key: public half does not match seed")
		}
		return kp, nil
	default:
		return nil, fmt.Errorf("private key: invalid length %d", len(raw))
	}
}

// Sign signs message with the private key.
func (kp *KeyPair) Sign(message []byte) Signature {
	return Signature{
		PublicKey: kp.Public,
		Payload:   ed25519.Sign(kp.private, message),
	}
}

// PrivateKeyHex returns the hex encoded 64 byte private key.
func (kp *KeyPair) PrivateKeyHex() string {
	return hex.EncodeToString(kp.private)
}

type keyPairJSON struct {
	PublicKey  PublicKey `json:"public_key"`
	PrivateKey string    `json:"private_key"`
}

func (kp *KeyPair) MarshalJSON() ([]byte, error) {
	return json.Marshal(keyPairJSON{
		PublicKey:  kp.Public,
		PrivateKey: kp.PrivateKeyHex(),
	})
}

func (kp *KeyPair) UnmarshalJSON(data []byte) error {
	var raw keyPairJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParsePrivateKey(raw.PrivateKey)
	if err != nil {
		return err
	}
	if raw.PublicKey != nil && raw.PublicKey.String() != parsed.Public.String() {
		return fmt.Errorf("key pair: public key does not match private key")
	}
	*kp = *parsed
	return nil
}
