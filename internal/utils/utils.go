package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"net/http"

	"github.com/KromaEnergia/api-guias/internal/apperr"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// GenerateTemporaryPassword returns a random 16 character alphanumeric password.
func GenerateTemporaryPassword() (string, error) {
	const chars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const length = 16
	result := make([]byte, length)
	for i := 0; i < length; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(chars))))
		if err != nil {
			return "", err
		}
		result[i] = chars[num.Int64()]
	}
	return string(result), nil
}

// PathUUID reads a UUID route variable.
func PathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		return uuid.Nil, apperr.New(apperr.BadRequest, fmt.Sprintf("invalid %s", name))
	}
	return id, nil
}
