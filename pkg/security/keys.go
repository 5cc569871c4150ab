package security

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"strings"

	"golang.org/x/crypto/ssh"
)

// KeySize is the RSA modulus size of generated node keys
const KeySize = 2048

// GenerateKeyPair creates an RSA key pair for a node. It returns the public
// key in authorized_keys format and the private key encrypted for storage.
func (sm *SecretsManager) GenerateKeyPair() (publicKey string, encryptedPrivateKey string, err error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, KeySize)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate private key: %w", err)
	}

	sshPub, err := ssh.NewPublicKey(&privateKey.PublicKey)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode public key: %w", err)
	}

	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
	})
	defer wipe(privPEM)

	encrypted, err := sm.Encrypt(privPEM)
	if err != nil {
		return "", "", fmt.Errorf("failed to encrypt private key: %w", err)
	}

	publicKey = strings.TrimSpace(string(ssh.MarshalAuthorizedKey(sshPub)))
	return publicKey, encrypted, nil
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
