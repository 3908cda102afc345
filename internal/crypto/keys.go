package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Параметры Argon2id для деривации ключа хранилища
const (
	// Argon2Time количество итераций (time cost)
	Argon2Time = 1
	// Argon2Memory объем памяти в KB (64 MB)
	Argon2Memory = 64 * 1024
	// Argon2Threads количество параллельных потоков
	Argon2Threads = 4
	// SaltSize размер соли в байтах
	SaltSize = 32
)

// GenerateSalt генерирует криптографически случайную соль.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

// DeriveKey выводит 32-байтовый ключ шифрования из парольной фразы и соли.
// Соль хранится рядом с базой открыто: она защищает от радужных таблиц,
// а не от перебора.
func DeriveKey(passphrase string, salt []byte) ([]byte, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("passphrase cannot be empty")
	}
	if len(salt) != SaltSize {
		return nil, fmt.Errorf("salt must be %d bytes, got %d", SaltSize, len(salt))
	}

	key := argon2.IDKey([]byte(passphrase), salt, Argon2Time, Argon2Memory, Argon2Threads, KeySize)
	return key, nil
}

// DeriveKeyFromBase64Salt как DeriveKey, но принимает соль в Base64
// (формат, в котором соль хранится в конфиге).
func DeriveKeyFromBase64Salt(passphrase, saltB64 string) ([]byte, error) {
	salt, err := base64.StdEncoding.DecodeString(saltB64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode salt: %w", err)
	}
	return DeriveKey(passphrase, salt)
}
