package runtime

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/argon2"
)

// MaxPasswordBytes caps passwords at 72 bytes of UTF-8. Longer inputs are
// rejected at signup; at verify time the same truncation is applied so both
// sides always hash identical bytes.
const MaxPasswordBytes = 72

const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
	saltLen      = 16
)

// ErrPasswordTooLong is returned when a password exceeds MaxPasswordBytes.
var ErrPasswordTooLong = fmt.Errorf("password is too long when encoded (max %d bytes)", MaxPasswordBytes)

// PasswordByteLengthOK reports whether the password fits in MaxPasswordBytes.
func PasswordByteLengthOK(password string) bool {
	return len(password) <= MaxPasswordBytes
}

// TruncatePasswordBytes cuts the password to MaxPasswordBytes, dropping any
// partial multibyte rune at the cut point.
func TruncatePasswordBytes(password string) string {
	if len(password) <= MaxPasswordBytes {
		return password
	}
	b := []byte(password)[:MaxPasswordBytes]
	for len(b) > 0 && !utf8.Valid(b) {
		b = b[:len(b)-1]
	}
	return string(b)
}

// HashPassword hashes the byte-truncated password with argon2id and encodes
// the result in the standard PHC string format.
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	pw := TruncatePasswordBytes(password)
	key := argon2.IDKey([]byte(pw), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key)), nil
}

// VerifyPassword checks the password against a PHC-encoded argon2id hash,
// applying the same truncation used at hash time.
func VerifyPassword(password, encoded string) bool {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false
	}
	var memory, time uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return false
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}
	pw := TruncatePasswordBytes(password)
	got := argon2.IDKey([]byte(pw), salt, time, memory, threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1
}
