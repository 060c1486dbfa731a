// Package pii реализует шифрование персональных данных пользователя
// (телефон, дата рождения, адрес) перед записью в хранилище и расшифровку
// после чтения.
//
// Используется AES-256-GCM со случайным nonce: одинаковые открытые тексты
// дают разные шифртексты, а подделка или усечение шифртекста обнаруживается
// при проверке аутентификационного тега. Шифртекст хранится в base64.
//
// Ключ загружается один раз при старте процесса из конфигурации; ключ
// неверного размера — фатальная ошибка запуска, а не ошибка отдельного вызова.
package pii

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// KeySize — требуемый размер ключа в байтах (AES-256).
const KeySize = 32

var (
	// ErrInvalidKeySize возвращается конструктором, если ключ короче или длиннее 32 байт.
	ErrInvalidKeySize = errors.New("encryption key must be exactly 32 bytes")
	// ErrDecryptionFailed возвращается, если шифртекст поврежден, усечен
	// или не проходит проверку аутентификационного тега.
	ErrDecryptionFailed = errors.New("decryption failed")
)

// Codec шифрует и расшифровывает строковые поля. Не хранит изменяемого
// состояния кроме неизменяемого ключа, безопасен для конкурентного использования.
type Codec struct {
	aead cipher.AEAD
}

// New создает Codec из 32-байтового ключа.
func New(key []byte) (*Codec, error) {
	const op = "pii.New"
	if len(key) != KeySize {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidKeySize)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Codec{aead: aead}, nil
}

// Encrypt шифрует открытый текст и возвращает base64-строку вида nonce||ciphertext||tag.
func (c *Codec) Encrypt(plaintext string) (string, error) {
	const op = "pii.Encrypt"
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt расшифровывает строку, полученную из Encrypt.
//
// Возвращает ErrDecryptionFailed, если шифртекст не является корректным base64,
// короче nonce или не проходит проверку тега (подделка либо чужой ключ).
func (c *Codec) Decrypt(ciphertext string) (string, error) {
	const op = "pii.Decrypt"
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, ErrDecryptionFailed)
	}
	nonceSize := c.aead.NonceSize()
	if len(raw) < nonceSize {
		return "", fmt.Errorf("%s: %w", op, ErrDecryptionFailed)
	}
	nonce, sealed := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, ErrDecryptionFailed)
	}
	return string(plaintext), nil
}
