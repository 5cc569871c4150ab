package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cuemby/catena/pkg/types"
	"golang.org/x/crypto/scrypt"
	"golang.org/x/crypto/ssh"
)

const (
	// BlockType is the PEM type of an encrypted private key blob
	BlockType = "CATENA ENCRYPTED PRIVATE KEY"

	cipherTag = "AES-256-GCM"
	kdfTag    = "scrypt"
	saltSize  = 16
	keySize   = 32

	// scrypt cost limits; memory use is 128*N*R bytes
	maxKDFN      = 1 << 20
	maxKDFR      = 32
	maxKDFP      = 16
	maxKDFMemory = 1 << 30
)

// MinPassphraseLength is the shortest accepted passphrase
const MinPassphraseLength = 4

// KDFParams are the scrypt cost parameters
type KDFParams struct {
	N int
	R int
	P int
}

func (p KDFParams) validate() error {
	switch {
	case p.N < 2 || p.N > maxKDFN || p.N&(p.N-1) != 0:
		return fmt.Errorf("%w: scrypt N must be a power of two up to %d", types.ErrCredential, maxKDFN)
	case p.R < 1 || p.R > maxKDFR:
		return fmt.Errorf("%w: scrypt r must be between 1 and %d", types.ErrCredential, maxKDFR)
	case p.P < 1 || p.P > maxKDFP:
		return fmt.Errorf("%w: scrypt p must be between 1 and %d", types.ErrCredential, maxKDFP)
	case 128*p.N*p.R > maxKDFMemory:
		return fmt.Errorf("%w: scrypt parameters exceed the memory limit", types.ErrCredential)
	}
	return nil
}

// DefaultKDFParams are used for every newly encrypted blob
var DefaultKDFParams = KDFParams{N: 32768, R: 8, P: 1}

// SecretsManager protects private key material with a passphrase-derived key
type SecretsManager struct {
	passphrase string
	kdf        KDFParams
	tempDir    string
}

// Option configures a SecretsManager
type Option func(*SecretsManager)

// WithKDFParams overrides the scrypt cost used when encrypting
func WithKDFParams(p KDFParams) Option {
	return func(sm *SecretsManager) {
		sm.kdf = p
	}
}

// WithTempDir sets the directory used for scoped key files
func WithTempDir(dir string) Option {
	return func(sm *SecretsManager) {
		sm.tempDir = dir
	}
}

// NewSecretsManager creates a secrets manager bound to a passphrase
func NewSecretsManager(passphrase string, opts ...Option) (*SecretsManager, error) {
	if len(passphrase) < MinPassphraseLength {
		return nil, fmt.Errorf("%w: passphrase must be at least %d characters", types.ErrConfig, MinPassphraseLength)
	}

	sm := &SecretsManager{
		passphrase: passphrase,
		kdf:        DefaultKDFParams,
	}
	for _, opt := range opts {
		opt(sm)
	}
	if err := sm.kdf.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrConfig, err)
	}
	return sm, nil
}

// Encrypt encrypts plaintext under the manager's passphrase
func (sm *SecretsManager) Encrypt(plaintext []byte) (string, error) {
	return encrypt(plaintext, sm.passphrase, sm.kdf)
}

// Decrypt decrypts a blob produced by Encrypt
func (sm *SecretsManager) Decrypt(blob string) ([]byte, error) {
	return Decrypt(blob, sm.passphrase)
}

// EncryptPrivateKey encrypts a PEM encoded SSH private key.
// The input must parse as a private key.
func (sm *SecretsManager) EncryptPrivateKey(privateKey string) (string, error) {
	if _, err := ssh.ParseRawPrivateKey([]byte(privateKey)); err != nil {
		return "", fmt.Errorf("%w: invalid private key: %v", types.ErrCredential, err)
	}
	return sm.Encrypt([]byte(privateKey))
}

// Encrypt derives a key from passphrase with scrypt and a random salt, seals
// plaintext with AES-256-GCM and returns a self-describing PEM block.
func Encrypt(plaintext []byte, passphrase string) (string, error) {
	return encrypt(plaintext, passphrase, DefaultKDFParams)
}

func encrypt(plaintext []byte, passphrase string, params KDFParams) (string, error) {
	if len(plaintext) == 0 {
		return "", fmt.Errorf("cannot encrypt empty data")
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	gcm, err := newGCM(passphrase, salt, params)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	block := &pem.Block{
		Type: BlockType,
		Headers: map[string]string{
			"Proc-Type": "4,ENCRYPTED",
			"DEK-Info":  cipherTag + "," + hex.EncodeToString(nonce),
			"KDF":       fmt.Sprintf("%s,%s,%d,%d,%d", kdfTag, hex.EncodeToString(salt), params.N, params.R, params.P),
		},
		Bytes: gcm.Seal(nil, nonce, plaintext, nil),
	}
	return string(pem.EncodeToMemory(block)), nil
}

// Decrypt reverses Encrypt. A wrong passphrase or malformed blob yields an
// error wrapping types.ErrCredential.
func Decrypt(blob, passphrase string) ([]byte, error) {
	block, _ := pem.Decode([]byte(blob))
	if block == nil || block.Type != BlockType {
		return nil, fmt.Errorf("%w: not an encrypted key blob", types.ErrCredential)
	}

	nonce, err := parseDEKInfo(block.Headers["DEK-Info"])
	if err != nil {
		return nil, err
	}
	salt, params, err := parseKDF(block.Headers["KDF"])
	if err != nil {
		return nil, err
	}

	gcm, err := newGCM(passphrase, salt, params)
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("%w: invalid nonce size", types.ErrCredential)
	}

	plaintext, err := gcm.Open(nil, nonce, block.Bytes, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decrypt: wrong passphrase or corrupted data", types.ErrCredential)
	}
	return plaintext, nil
}

// IsEncrypted reports whether blob is an encrypted key blob
func IsEncrypted(blob string) bool {
	block, _ := pem.Decode([]byte(blob))
	return block != nil && block.Type == BlockType && block.Headers["Proc-Type"] == "4,ENCRYPTED"
}

func newGCM(passphrase string, salt []byte, params KDFParams) (cipher.AEAD, error) {
	key, err := scrypt.Key([]byte(passphrase), salt, params.N, params.R, params.P, keySize)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to derive key: %v", types.ErrCredential, err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

func parseDEKInfo(v string) ([]byte, error) {
	tag, nonceHex, ok := strings.Cut(v, ",")
	if !ok || tag != cipherTag {
		return nil, fmt.Errorf("%w: unsupported cipher %q", types.ErrCredential, tag)
	}
	nonce, err := hex.DecodeString(nonceHex)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid nonce", types.ErrCredential)
	}
	return nonce, nil
}

func parseKDF(v string) ([]byte, KDFParams, error) {
	parts := strings.Split(v, ",")
	if len(parts) != 5 || parts[0] != kdfTag {
		return nil, KDFParams{}, fmt.Errorf("%w: unsupported key derivation %q", types.ErrCredential, v)
	}

	salt, err := hex.DecodeString(parts[1])
	if err != nil || len(salt) == 0 {
		return nil, KDFParams{}, fmt.Errorf("%w: invalid salt", types.ErrCredential)
	}

	var nums [3]int
	for i, s := range parts[2:] {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, KDFParams{}, fmt.Errorf("%w: invalid key derivation parameter %q", types.ErrCredential, s)
		}
		nums[i] = n
	}
	params := KDFParams{N: nums[0], R: nums[1], P: nums[2]}
	if err := params.validate(); err != nil {
		return nil, KDFParams{}, err
	}
	return salt, params, nil
}
